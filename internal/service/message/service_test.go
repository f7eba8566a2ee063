package message

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"talkbridge-backend/internal/broadcast"
	"talkbridge-backend/internal/domain"
	apperrors "talkbridge-backend/pkg/errors"
)

// MockMessageRepository is a mock implementation of MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) CreateInCall(ctx context.Context, callID uuid.UUID, fn func(state *domain.CallState) (*domain.Message, error)) (*domain.CallState, *domain.Message, error) {
	args := m.Called(ctx, callID)
	state, ok := args.Get(0).(*domain.CallState)
	if !ok {
		return nil, nil, args.Error(1)
	}
	msg, err := fn(state)
	if err != nil {
		return nil, nil, err
	}
	return state, msg, args.Error(1)
}

func (m *MockMessageRepository) ListByCall(ctx context.Context, callID uuid.UUID) ([]*domain.Message, error) {
	args := m.Called(ctx, callID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

// MockCallRepository is a mock implementation of CallRepository
type MockCallRepository struct {
	mock.Mock
}

func (m *MockCallRepository) GetByID(ctx context.Context, callID uuid.UUID) (*domain.CallState, error) {
	args := m.Called(ctx, callID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CallState), args.Error(1)
}

// MockPublisher is a mock implementation of broadcast.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic broadcast.Topic, payload interface{}) error {
	args := m.Called(ctx, topic, payload)
	return args.Error(0)
}

func setup(status domain.CallStatus) (*Service, *MockMessageRepository, *MockCallRepository, *MockPublisher, *domain.CallState) {
	messages := new(MockMessageRepository)
	calls := new(MockCallRepository)
	publisher := new(MockPublisher)

	caller := &domain.User{UserID: uuid.New(), Email: "alice@example.com", FullName: "Alice"}
	receiver := &domain.User{UserID: uuid.New(), Email: "bob@example.com", FullName: "Bob"}
	call := domain.NewCall(caller.UserID, receiver.UserID, domain.CallModeAudio, time.Now())
	call.Status = status

	return NewService(messages, calls, publisher), messages, calls, publisher,
		&domain.CallState{Call: call, Caller: caller, Receiver: receiver}
}

func auth(u *domain.User) domain.AuthenticatedUser {
	return domain.AuthenticatedUser{UserID: u.UserID, Email: u.Email, FullName: u.FullName}
}

func TestSend(t *testing.T) {
	service, messages, _, publisher, st := setup(domain.CallStatusAccepted)
	messages.On("CreateInCall", mock.Anything, st.Call.CallID).Return(st, nil)
	publisher.On("Publish", mock.Anything, broadcast.CallMessages(st.Call.CallID, "alice@example.com"), mock.AnythingOfType("*domain.MessageResponse")).
		Return(nil)

	resp, err := service.Send(context.Background(), auth(st.Receiver), st.Call.CallID, "  see you soon \n")

	require.NoError(t, err)
	assert.Equal(t, "see you soon", resp.Content)
	assert.Equal(t, st.Receiver.UserID, resp.SenderID)
	assert.Equal(t, st.Caller.UserID, resp.ReceiverID)
	assert.Equal(t, "Bob", resp.SenderName)
	publisher.AssertExpectations(t)
}

func TestSend_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		status  domain.CallStatus
		sender  func(st *domain.CallState) domain.AuthenticatedUser
		content string
		code    apperrors.ErrorCode
		message string
	}{
		{
			name:    "ringing call",
			status:  domain.CallStatusRinging,
			sender:  func(st *domain.CallState) domain.AuthenticatedUser { return auth(st.Caller) },
			content: "hi",
			code:    apperrors.ErrCodeForbidden,
			message: "Call is ended or not accepted yet.",
		},
		{
			name:    "ended call",
			status:  domain.CallStatusEnded,
			sender:  func(st *domain.CallState) domain.AuthenticatedUser { return auth(st.Caller) },
			content: "hi",
			code:    apperrors.ErrCodeForbidden,
			message: "Call is ended or not accepted yet.",
		},
		{
			name:    "outsider",
			status:  domain.CallStatusAccepted,
			sender:  func(*domain.CallState) domain.AuthenticatedUser { return domain.AuthenticatedUser{UserID: uuid.New()} },
			content: "hi",
			code:    apperrors.ErrCodeForbidden,
		},
		{
			name:    "blank content",
			status:  domain.CallStatusAccepted,
			sender:  func(st *domain.CallState) domain.AuthenticatedUser { return auth(st.Caller) },
			content: "   ",
			code:    apperrors.ErrCodeValidation,
		},
		{
			name:    "too long",
			status:  domain.CallStatusAccepted,
			sender:  func(st *domain.CallState) domain.AuthenticatedUser { return auth(st.Caller) },
			content: strings.Repeat("a", 4001),
			code:    apperrors.ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, messages, _, publisher, st := setup(tt.status)
			messages.On("CreateInCall", mock.Anything, st.Call.CallID).Return(st, nil)

			_, err := service.Send(context.Background(), tt.sender(st), st.Call.CallID, tt.content)

			assert.True(t, apperrors.HasCode(err, tt.code), err)
			if tt.message != "" {
				assert.Equal(t, tt.message, apperrors.GetAppError(err).Message)
			}
			publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSend_UnknownCall(t *testing.T) {
	service, messages, _, _, _ := setup(domain.CallStatusAccepted)
	callID := uuid.New()
	messages.On("CreateInCall", mock.Anything, callID).Return(nil, domain.ErrNotFound)

	_, err := service.Send(context.Background(), domain.AuthenticatedUser{UserID: uuid.New()}, callID, "hi")

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCallNotFound))
}

func TestListByCall(t *testing.T) {
	service, messages, calls, _, st := setup(domain.CallStatusEnded)
	calls.On("GetByID", mock.Anything, st.Call.CallID).Return(st, nil)
	messages.On("ListByCall", mock.Anything, st.Call.CallID).Return([]*domain.Message{
		{MessageID: uuid.New(), CallID: st.Call.CallID, SenderID: st.Caller.UserID, ReceiverID: st.Receiver.UserID, Content: "first"},
		{MessageID: uuid.New(), CallID: st.Call.CallID, SenderID: st.Receiver.UserID, ReceiverID: st.Caller.UserID, Content: "second"},
	}, nil)

	list, err := service.ListByCall(context.Background(), auth(st.Caller), st.Call.CallID)

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Content)
	assert.Equal(t, "Alice", list[0].SenderName)
	assert.Equal(t, "Bob", list[1].SenderName)

	_, err = service.ListByCall(context.Background(), domain.AuthenticatedUser{UserID: uuid.New()}, st.Call.CallID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))
}
