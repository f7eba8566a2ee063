package meeting

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"talkbridge-backend/internal/broadcast"
	"talkbridge-backend/internal/domain"
	"talkbridge-backend/pkg/codegen"
	"talkbridge-backend/pkg/constants"
	apperrors "talkbridge-backend/pkg/errors"
	"talkbridge-backend/pkg/logger"
	"talkbridge-backend/pkg/metrics"
)

// MeetingRepository interface
type MeetingRepository interface {
	Create(ctx context.Context, m *domain.Meeting) error
	Exists(ctx context.Context, code string) (bool, error)
	GetByCode(ctx context.Context, code string) (*domain.Meeting, error)
	Update(ctx context.Context, code string, fn func(m *domain.Meeting) error) (*domain.Meeting, error)
}

// UserRepository interface
type UserRepository interface {
	GetByIDs(ctx context.Context, userIDs []uuid.UUID) ([]*domain.User, error)
}

// Service coordinates meeting rooms: admission, permissions and participants
type Service struct {
	meetingRepo MeetingRepository
	userRepo    UserRepository
	publisher   broadcast.Publisher
	newCode     func() (string, error)
	now         func() time.Time
}

// NewService creates a new meeting service
func NewService(meetingRepo MeetingRepository, userRepo UserRepository, publisher broadcast.Publisher) *Service {
	return &Service{
		meetingRepo: meetingRepo,
		userRepo:    userRepo,
		publisher:   publisher,
		newCode:     codegen.MeetingCode,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a new meeting administered by user
func (s *Service) Create(ctx context.Context, user domain.AuthenticatedUser) (*domain.MeetingResponse, error) {
	for attempt := 1; attempt <= constants.MeetingCodeRetries; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, apperrors.InternalError("Failed to generate meeting code")
		}

		m := domain.NewMeeting(code, user.UserID, s.now())
		err = s.meetingRepo.Create(ctx, m)
		if errors.Is(err, domain.ErrDuplicate) {
			logger.FromContext(ctx).Warn("Meeting code collision, retrying",
				zap.String("meeting_code", code),
				zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, s.fail(err)
		}

		metrics.MeetingsCreatedTotal.Inc()
		logger.FromContext(ctx).Info("Meeting created", zap.String("meeting_code", code))

		return &domain.MeetingResponse{
			MeetingID:   m.MeetingID,
			MeetingCode: m.MeetingCode,
			CreatedAt:   m.CreatedAt,
		}, nil
	}
	return nil, apperrors.ConflictError("Could not allocate a unique meeting code")
}

// IsExist reports whether a meeting with code exists
func (s *Service) IsExist(ctx context.Context, code string) (bool, error) {
	if !codegen.IsMeetingCode(code) {
		return false, nil
	}
	exists, err := s.meetingRepo.Exists(ctx, code)
	if err != nil {
		return false, apperrors.DatabaseError(err)
	}
	return exists, nil
}

// IsAdmin reports whether user created the meeting
func (s *Service) IsAdmin(ctx context.Context, user domain.AuthenticatedUser, code string) (bool, error) {
	m, err := s.load(ctx, code)
	if err != nil {
		return false, err
	}
	return m.IsAdmin(user.UserID), nil
}

// HasPermissionToJoin reports whether user may enter without asking the admin
func (s *Service) HasPermissionToJoin(ctx context.Context, user domain.AuthenticatedUser, code string) (bool, error) {
	m, err := s.load(ctx, code)
	if err != nil {
		return false, err
	}
	return m.HasPermissionToJoin(user.UserID), nil
}

// AddUserInMeeting admits user into the room and announces the new participant
func (s *Service) AddUserInMeeting(ctx context.Context, user domain.AuthenticatedUser, code string) (*domain.ParticipantResponse, error) {
	var participant *domain.MeetingParticipant
	m, err := s.meetingRepo.Update(ctx, code, func(m *domain.Meeting) error {
		p, err := m.Join(user.UserID, s.now())
		switch {
		case errors.Is(err, domain.ErrNotPermitted):
			return apperrors.ForbiddenError("You do not have permission to join this meeting")
		case errors.Is(err, domain.ErrAlreadyPresent):
			return apperrors.ForbiddenError("User is already present in this meeting")
		case err != nil:
			return err
		}
		participant = p
		return nil
	})
	if err != nil {
		return nil, s.fail(err)
	}

	users, err := s.users(ctx, user.UserID)
	if err != nil {
		return nil, err
	}

	metrics.MeetingParticipantEventsTotal.WithLabelValues("join").Inc()

	resp := domain.NewParticipantResponse(participant, users[user.UserID], m.IsAdmin(user.UserID))
	broadcast.Notify(ctx, s.publisher, broadcast.MeetingParticipantAdd(code), resp)
	return resp, nil
}

// RemoveFromMeeting takes user out of the room
func (s *Service) RemoveFromMeeting(ctx context.Context, user domain.AuthenticatedUser, code string) error {
	var participant *domain.MeetingParticipant
	m, err := s.meetingRepo.Update(ctx, code, func(m *domain.Meeting) error {
		p, err := m.Leave(user.UserID)
		if errors.Is(err, domain.ErrNotParticipant) {
			return apperrors.IllegalStateError("User is not a participant of this meeting")
		}
		participant = p
		return err
	})
	if err != nil {
		return s.fail(err)
	}

	users, err := s.users(ctx, user.UserID)
	if err != nil {
		return err
	}

	metrics.MeetingParticipantEventsTotal.WithLabelValues("leave").Inc()

	resp := domain.NewParticipantResponse(participant, users[user.UserID], m.IsAdmin(user.UserID))
	broadcast.Notify(ctx, s.publisher, broadcast.MeetingParticipantRemove(code), resp)
	return nil
}

// GetAdminPermission puts user in the waiting room and tells the admin
func (s *Service) GetAdminPermission(ctx context.Context, user domain.AuthenticatedUser, code string) error {
	m, err := s.meetingRepo.Update(ctx, code, func(m *domain.Meeting) error {
		m.RequestAdmission(user.UserID)
		return nil
	})
	if err != nil {
		return s.fail(err)
	}

	users, err := s.users(ctx, user.UserID, m.CreatedBy)
	if err != nil {
		return err
	}

	metrics.MeetingParticipantEventsTotal.WithLabelValues("waiting").Inc()

	broadcast.Notify(ctx, s.publisher, broadcast.MeetingWaitingUsers(code, users[m.CreatedBy].Email),
		users[user.UserID].ToResponse())
	return nil
}

// GeneratePermissionToUsers lets the admin allow users into the meeting.
// Ids that do not resolve to a user are skipped. It returns the granted ids.
func (s *Service) GeneratePermissionToUsers(ctx context.Context, user domain.AuthenticatedUser, code string, userIDs []uuid.UUID) ([]uuid.UUID, error) {
	resolved, err := s.userRepo.GetByIDs(ctx, userIDs)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	known := make(map[uuid.UUID]struct{}, len(resolved))
	for _, u := range resolved {
		known[u.UserID] = struct{}{}
	}
	candidates := make([]uuid.UUID, 0, len(userIDs))
	for _, id := range userIDs {
		if _, ok := known[id]; ok {
			candidates = append(candidates, id)
		}
	}

	var granted []uuid.UUID
	_, err = s.meetingRepo.Update(ctx, code, func(m *domain.Meeting) error {
		if !m.IsAdmin(user.UserID) {
			return apperrors.ForbiddenError("Only the meeting admin can grant permission")
		}
		granted = m.Grant(candidates)
		return nil
	})
	if err != nil {
		return nil, s.fail(err)
	}

	metrics.MeetingParticipantEventsTotal.WithLabelValues("granted").Add(float64(len(granted)))

	for _, id := range granted {
		broadcast.Notify(ctx, s.publisher, broadcast.MeetingAllowed(code, id), &domain.AllowedNotice{UserID: id})
	}
	return granted, nil
}

// GetWaitingUsers lists the waiting room for the admin
func (s *Service) GetWaitingUsers(ctx context.Context, user domain.AuthenticatedUser, code string) ([]*domain.UserResponse, error) {
	m, err := s.load(ctx, code)
	if err != nil {
		return nil, err
	}
	if !m.IsAdmin(user.UserID) {
		return nil, apperrors.ForbiddenError("Only the meeting admin can see the waiting room")
	}

	ids := m.WaitingUserIDs()
	users, err := s.users(ctx, ids...)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.UserResponse, 0, len(ids))
	for _, id := range ids {
		if u := users[id]; u != nil {
			out = append(out, u.ToResponse())
		}
	}
	return out, nil
}

// GetMeetingParticipants lists the other participants in the room, without admin flags
func (s *Service) GetMeetingParticipants(ctx context.Context, user domain.AuthenticatedUser, code string) ([]*domain.ParticipantResponse, error) {
	m, err := s.load(ctx, code)
	if err != nil {
		return nil, err
	}

	participants := m.Participants()
	users, err := s.participantUsers(ctx, participants)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.ParticipantResponse, 0, len(participants))
	for _, p := range participants {
		if p.UserID == user.UserID || users[p.UserID] == nil {
			continue
		}
		out = append(out, domain.NewParticipantResponse(p, users[p.UserID], false))
	}
	return out, nil
}

// GetMeetingParticipantsAll lists everyone in the room with admin flags, the caller first
func (s *Service) GetMeetingParticipantsAll(ctx context.Context, user domain.AuthenticatedUser, code string) ([]*domain.ParticipantResponse, error) {
	m, err := s.load(ctx, code)
	if err != nil {
		return nil, err
	}

	participants := m.Participants()
	users, err := s.participantUsers(ctx, participants)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.ParticipantResponse, 0, len(participants))
	if self := m.ActiveParticipant(user.UserID); self != nil && users[user.UserID] != nil {
		out = append(out, domain.NewParticipantResponse(self, users[user.UserID], m.IsAdmin(user.UserID)))
	}
	for _, p := range participants {
		if p.UserID == user.UserID || users[p.UserID] == nil {
			continue
		}
		out = append(out, domain.NewParticipantResponse(p, users[p.UserID], m.IsAdmin(p.UserID)))
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, code string) (*domain.Meeting, error) {
	m, err := s.meetingRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, s.fail(err)
	}
	return m, nil
}

func (s *Service) participantUsers(ctx context.Context, participants []*domain.MeetingParticipant) (map[uuid.UUID]*domain.User, error) {
	ids := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	return s.users(ctx, ids...)
}

// users resolves ids to a lookup map; every requested id must exist
func (s *Service) users(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*domain.User, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]*domain.User{}, nil
	}
	list, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	byID := make(map[uuid.UUID]*domain.User, len(list))
	for _, u := range list {
		byID[u.UserID] = u
	}
	for _, id := range ids {
		if byID[id] == nil {
			return nil, apperrors.UserNotFoundError()
		}
	}
	return byID, nil
}

func (s *Service) fail(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return apperrors.MeetingNotFoundError()
	case errors.Is(err, domain.ErrContention):
		return apperrors.ContentionError()
	case apperrors.IsAppError(err):
		return err
	}
	return apperrors.DatabaseError(err)
}
