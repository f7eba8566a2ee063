package domain

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Meeting membership errors
var (
	ErrNotPermitted   = errors.New("user is not permitted to join this meeting")
	ErrAlreadyPresent = errors.New("user is already present in this meeting")
	ErrNotParticipant = errors.New("user is not a participant of this meeting")
)

// MeetingParticipant binds a user to a meeting while they are in the room
type MeetingParticipant struct {
	ParticipantID uuid.UUID  `json:"participant_id"`
	MeetingID     uuid.UUID  `json:"meeting_id"`
	UserID        uuid.UUID  `json:"user_id"`
	JoinedAt      time.Time  `json:"joined_at"`
	LeftAt        *time.Time `json:"left_at,omitempty"`
	Muted         bool       `json:"muted"`
}

// MembershipChanges lists set mutations made since the meeting was loaded
type MembershipChanges struct {
	Joined         []*MeetingParticipant
	Left           []*MeetingParticipant
	AllowedAdded   []uuid.UUID
	WaitingAdded   []uuid.UUID
	WaitingRemoved []uuid.UUID
}

// Empty reports whether nothing needs persisting
func (c *MembershipChanges) Empty() bool {
	return len(c.Joined) == 0 && len(c.Left) == 0 && len(c.AllowedAdded) == 0 &&
		len(c.WaitingAdded) == 0 && len(c.WaitingRemoved) == 0
}

// Meeting is the aggregate root for a multi-party room.
// Membership sets are only mutated through its methods.
type Meeting struct {
	MeetingID   uuid.UUID
	MeetingCode string
	CreatedBy   uuid.UUID
	CreatedAt   time.Time

	participants map[uuid.UUID]*MeetingParticipant // keyed by user id, active records only
	allowed      map[uuid.UUID]struct{}
	waiting      map[uuid.UUID]struct{}

	changes MembershipChanges
}

// NewMeeting creates an empty meeting administered by adminID
func NewMeeting(code string, adminID uuid.UUID, now time.Time) *Meeting {
	return &Meeting{
		MeetingID:    uuid.New(),
		MeetingCode:  code,
		CreatedBy:    adminID,
		CreatedAt:    now,
		participants: make(map[uuid.UUID]*MeetingParticipant),
		allowed:      make(map[uuid.UUID]struct{}),
		waiting:      make(map[uuid.UUID]struct{}),
	}
}

// RestoreMeeting rebuilds a meeting from storage without recording changes
func RestoreMeeting(m Meeting, participants []*MeetingParticipant, allowed, waiting []uuid.UUID) *Meeting {
	restored := NewMeeting(m.MeetingCode, m.CreatedBy, m.CreatedAt)
	restored.MeetingID = m.MeetingID
	for _, p := range participants {
		if p.LeftAt == nil {
			restored.participants[p.UserID] = p
		}
	}
	for _, id := range allowed {
		restored.allowed[id] = struct{}{}
	}
	for _, id := range waiting {
		if _, present := restored.participants[id]; !present {
			restored.waiting[id] = struct{}{}
		}
	}
	return restored
}

// Changes returns the pending membership mutations
func (m *Meeting) Changes() MembershipChanges {
	return m.changes
}

// ClearChanges marks pending mutations as persisted
func (m *Meeting) ClearChanges() {
	m.changes = MembershipChanges{}
}

// IsAdmin reports whether userID created the meeting
func (m *Meeting) IsAdmin(userID uuid.UUID) bool {
	return m.CreatedBy == userID
}

// IsAllowed reports whether userID is on the allow-list
func (m *Meeting) IsAllowed(userID uuid.UUID) bool {
	_, ok := m.allowed[userID]
	return ok
}

// IsWaiting reports whether userID is in the waiting room
func (m *Meeting) IsWaiting(userID uuid.UUID) bool {
	_, ok := m.waiting[userID]
	return ok
}

// HasPermissionToJoin reports whether userID may enter without admin approval
func (m *Meeting) HasPermissionToJoin(userID uuid.UUID) bool {
	return m.IsAdmin(userID) || m.IsAllowed(userID)
}

// ActiveParticipant returns userID's active participant record, or nil
func (m *Meeting) ActiveParticipant(userID uuid.UUID) *MeetingParticipant {
	return m.participants[userID]
}

// Join admits userID into the room
func (m *Meeting) Join(userID uuid.UUID, now time.Time) (*MeetingParticipant, error) {
	if !m.HasPermissionToJoin(userID) {
		return nil, ErrNotPermitted
	}
	if m.ActiveParticipant(userID) != nil {
		return nil, ErrAlreadyPresent
	}

	p := &MeetingParticipant{
		ParticipantID: uuid.New(),
		MeetingID:     m.MeetingID,
		UserID:        userID,
		JoinedAt:      now,
	}
	m.participants[userID] = p
	m.changes.Joined = append(m.changes.Joined, p)
	m.removeWaiting(userID)
	return p, nil
}

// Leave removes userID's active participant record
func (m *Meeting) Leave(userID uuid.UUID) (*MeetingParticipant, error) {
	p := m.ActiveParticipant(userID)
	if p == nil {
		return nil, ErrNotParticipant
	}
	delete(m.participants, userID)
	m.changes.Left = append(m.changes.Left, p)
	return p, nil
}

// RequestAdmission puts userID in the waiting room. It returns false when nothing changed
// (already waiting, or currently in the room).
func (m *Meeting) RequestAdmission(userID uuid.UUID) bool {
	if m.ActiveParticipant(userID) != nil || m.IsWaiting(userID) {
		return false
	}
	m.waiting[userID] = struct{}{}
	m.changes.WaitingAdded = append(m.changes.WaitingAdded, userID)
	return true
}

// Grant adds userIDs to the allow-list and takes them out of the waiting room.
// It returns the distinct ids granted, in input order.
func (m *Meeting) Grant(userIDs []uuid.UUID) []uuid.UUID {
	granted := make([]uuid.UUID, 0, len(userIDs))
	seen := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		granted = append(granted, id)

		if !m.IsAllowed(id) {
			m.allowed[id] = struct{}{}
			m.changes.AllowedAdded = append(m.changes.AllowedAdded, id)
		}
	}
	for _, id := range granted {
		m.removeWaiting(id)
	}
	return granted
}

func (m *Meeting) removeWaiting(userID uuid.UUID) {
	if !m.IsWaiting(userID) {
		return
	}
	delete(m.waiting, userID)
	m.changes.WaitingRemoved = append(m.changes.WaitingRemoved, userID)
}

// WaitingUserIDs returns the waiting room, sorted for stable output
func (m *Meeting) WaitingUserIDs() []uuid.UUID {
	return sortedIDs(m.waiting)
}

// AllowedUserIDs returns the allow-list, sorted for stable output
func (m *Meeting) AllowedUserIDs() []uuid.UUID {
	return sortedIDs(m.allowed)
}

// Participants returns the active participants ordered by join time
func (m *Meeting) Participants() []*MeetingParticipant {
	out := make([]*MeetingParticipant, 0, len(m.participants))
	for _, p := range m.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out
}

func sortedIDs(set map[uuid.UUID]struct{}) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// MeetingResponse is returned when a meeting is created
type MeetingResponse struct {
	MeetingID   uuid.UUID `json:"meeting_id"`
	MeetingCode string    `json:"meeting_code"`
	CreatedAt   time.Time `json:"created_at"`
}

// ParticipantResponse describes one occupant of a meeting
type ParticipantResponse struct {
	ParticipantID uuid.UUID     `json:"participant_id"`
	User          *UserResponse `json:"user"`
	JoinedAt      time.Time     `json:"joined_at"`
	Muted         bool          `json:"muted"`
	IsAdmin       bool          `json:"is_admin"`
}

// NewParticipantResponse pairs a participant record with its user profile
func NewParticipantResponse(p *MeetingParticipant, u *User, isAdmin bool) *ParticipantResponse {
	return &ParticipantResponse{
		ParticipantID: p.ParticipantID,
		User:          u.ToResponse(),
		JoinedAt:      p.JoinedAt,
		Muted:         p.Muted,
		IsAdmin:       isAdmin,
	}
}

// AllowedNotice is sent to a user once the admin lets them in
type AllowedNotice struct {
	UserID uuid.UUID `json:"user_id"`
}
