package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeeting_AdminCanJoinOnce(t *testing.T) {
	admin := uuid.New()
	m := NewMeeting("abc-defg-hij", admin, time.Now())

	p, err := m.Join(admin, time.Now())
	require.NoError(t, err)
	assert.Equal(t, admin, p.UserID)
	assert.False(t, p.Muted)

	_, err = m.Join(admin, time.Now())
	assert.ErrorIs(t, err, ErrAlreadyPresent)
}

func TestMeeting_StrangerNeedsGrant(t *testing.T) {
	admin, stranger := uuid.New(), uuid.New()
	m := NewMeeting("abc-defg-hij", admin, time.Now())

	assert.True(t, m.RequestAdmission(stranger))
	assert.False(t, m.RequestAdmission(stranger))

	_, err := m.Join(stranger, time.Now())
	assert.ErrorIs(t, err, ErrNotPermitted)

	granted := m.Grant([]uuid.UUID{stranger, stranger})
	assert.Equal(t, []uuid.UUID{stranger}, granted)
	assert.True(t, m.HasPermissionToJoin(stranger))
	assert.False(t, m.IsWaiting(stranger))

	_, err = m.Join(stranger, time.Now())
	assert.NoError(t, err)
}

func TestMeeting_JoinLeavesWaitingRoom(t *testing.T) {
	admin, user := uuid.New(), uuid.New()
	m := RestoreMeeting(Meeting{MeetingID: uuid.New(), MeetingCode: "abc-defg-hij", CreatedBy: admin},
		nil, []uuid.UUID{user}, []uuid.UUID{user})
	require.True(t, m.IsWaiting(user))

	_, err := m.Join(user, time.Now())
	require.NoError(t, err)

	assert.False(t, m.IsWaiting(user))
	changes := m.Changes()
	assert.Len(t, changes.Joined, 1)
	assert.Equal(t, []uuid.UUID{user}, changes.WaitingRemoved)
}

func TestMeeting_ParticipantCannotWait(t *testing.T) {
	admin := uuid.New()
	m := NewMeeting("abc-defg-hij", admin, time.Now())
	_, err := m.Join(admin, time.Now())
	require.NoError(t, err)

	assert.False(t, m.RequestAdmission(admin))
	assert.Empty(t, m.WaitingUserIDs())
}

func TestMeeting_Leave(t *testing.T) {
	admin := uuid.New()
	m := NewMeeting("abc-defg-hij", admin, time.Now())

	_, err := m.Leave(admin)
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = m.Join(admin, time.Now())
	require.NoError(t, err)
	m.ClearChanges()

	p, err := m.Leave(admin)
	require.NoError(t, err)
	assert.Equal(t, admin, p.UserID)
	assert.Nil(t, m.ActiveParticipant(admin))
	assert.Len(t, m.Changes().Left, 1)

	// Leaving frees the slot for a new join.
	_, err = m.Join(admin, time.Now())
	assert.NoError(t, err)
}

func TestMeeting_GrantIsIdempotentForAllowList(t *testing.T) {
	admin, user := uuid.New(), uuid.New()
	m := RestoreMeeting(Meeting{MeetingID: uuid.New(), CreatedBy: admin}, nil, []uuid.UUID{user}, nil)

	granted := m.Grant([]uuid.UUID{user})

	assert.Equal(t, []uuid.UUID{user}, granted)
	changes := m.Changes()
	assert.True(t, changes.Empty())
}
