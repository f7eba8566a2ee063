package message

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"talkbridge-backend/internal/broadcast"
	"talkbridge-backend/internal/domain"
	"talkbridge-backend/pkg/constants"
	apperrors "talkbridge-backend/pkg/errors"
	"talkbridge-backend/pkg/metrics"
	"talkbridge-backend/pkg/sanitize"
)

// MessageRepository interface
type MessageRepository interface {
	CreateInCall(ctx context.Context, callID uuid.UUID, fn func(state *domain.CallState) (*domain.Message, error)) (*domain.CallState, *domain.Message, error)
	ListByCall(ctx context.Context, callID uuid.UUID) ([]*domain.Message, error)
}

// CallRepository interface
type CallRepository interface {
	GetByID(ctx context.Context, callID uuid.UUID) (*domain.CallState, error)
}

// Service relays chat messages between the two participants of a call
type Service struct {
	messageRepo MessageRepository
	callRepo    CallRepository
	publisher   broadcast.Publisher
	now         func() time.Time
}

// NewService creates a new message service
func NewService(messageRepo MessageRepository, callRepo CallRepository, publisher broadcast.Publisher) *Service {
	return &Service{
		messageRepo: messageRepo,
		callRepo:    callRepo,
		publisher:   publisher,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Send stores a message for the other participant of an accepted call and delivers it
func (s *Service) Send(ctx context.Context, user domain.AuthenticatedUser, callID uuid.UUID, content string) (*domain.MessageResponse, error) {
	state, msg, err := s.messageRepo.CreateInCall(ctx, callID, func(st *domain.CallState) (*domain.Message, error) {
		if !st.Call.IsParticipant(user.UserID) {
			return nil, apperrors.ForbiddenError("You are not a participant of this call")
		}
		if st.Call.Status != domain.CallStatusAccepted {
			return nil, apperrors.ForbiddenError("Call is ended or not accepted yet.")
		}

		text, ok := sanitize.CleanText(content, constants.MaxMessageLength)
		if !ok {
			return nil, apperrors.ValidationError("Message is too long")
		}
		if text == "" {
			return nil, apperrors.ValidationError("Message content is required")
		}

		return &domain.Message{
			MessageID:  uuid.New(),
			CallID:     st.Call.CallID,
			SenderID:   user.UserID,
			ReceiverID: st.Call.OtherParty(user.UserID),
			Content:    text,
			CreatedAt:  s.now(),
		}, nil
	})
	if err != nil {
		metrics.MessagesRelayedTotal.WithLabelValues("rejected").Inc()
		return nil, fail(err)
	}

	metrics.MessagesRelayedTotal.WithLabelValues("sent").Inc()

	resp := msg.ToResponse(state.Participant(user.UserID).FullName)
	broadcast.Notify(ctx, s.publisher, broadcast.CallMessages(callID, state.Other(user.UserID).Email), resp)
	return resp, nil
}

// ListByCall returns a call's messages in the order they were sent
func (s *Service) ListByCall(ctx context.Context, user domain.AuthenticatedUser, callID uuid.UUID) ([]*domain.MessageResponse, error) {
	state, err := s.callRepo.GetByID(ctx, callID)
	if err != nil {
		return nil, fail(err)
	}
	if !state.Call.IsParticipant(user.UserID) {
		return nil, apperrors.ForbiddenError("You are not a participant of this call")
	}

	messages, err := s.messageRepo.ListByCall(ctx, callID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	out := make([]*domain.MessageResponse, 0, len(messages))
	for _, m := range messages {
		var name string
		if sender := state.Participant(m.SenderID); sender != nil {
			name = sender.FullName
		}
		out = append(out, m.ToResponse(name))
	}
	return out, nil
}

func fail(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return apperrors.CallNotFoundError()
	case errors.Is(err, domain.ErrContention):
		return apperrors.ContentionError()
	case apperrors.IsAppError(err):
		return err
	}
	return apperrors.DatabaseError(err)
}
