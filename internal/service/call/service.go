package call

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"talkbridge-backend/internal/broadcast"
	"talkbridge-backend/internal/domain"
	"talkbridge-backend/pkg/constants"
	apperrors "talkbridge-backend/pkg/errors"
	"talkbridge-backend/pkg/logger"
	"talkbridge-backend/pkg/metrics"
	"talkbridge-backend/pkg/pagination"
)

// CallRepository interface
type CallRepository interface {
	Create(ctx context.Context, call *domain.Call, fn func(state *domain.CallState) error) (*domain.CallState, error)
	Update(ctx context.Context, callID uuid.UUID, fn func(state *domain.CallState) error) (*domain.CallState, error)
	GetByID(ctx context.Context, callID uuid.UUID) (*domain.CallState, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.CallState, int64, error)
}

// UserRepository interface
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Service drives the 1:1 call state machine.
// State changes commit before the other participant is notified.
type Service struct {
	callRepo  CallRepository
	userRepo  UserRepository
	publisher broadcast.Publisher
	now       func() time.Time
}

// NewService creates a new call service
func NewService(callRepo CallRepository, userRepo UserRepository, publisher broadcast.Publisher) *Service {
	return &Service{
		callRepo:  callRepo,
		userRepo:  userRepo,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// InitiateInput contains call initiation data
type InitiateInput struct {
	CallerEmail   string
	ReceiverEmail string
	Mode          domain.CallMode
}

// Initiate places a ringing call from user to the receiver
func (s *Service) Initiate(ctx context.Context, user domain.AuthenticatedUser, input *InitiateInput) (*domain.CallResponse, error) {
	if !strings.EqualFold(input.CallerEmail, user.Email) {
		return nil, s.reject("initiate", apperrors.ForbiddenError("Caller does not match the authenticated user"))
	}
	if !input.Mode.Valid() {
		return nil, s.reject("initiate", apperrors.ValidationError("Mode must be AUDIO or VIDEO"))
	}

	receiver, err := s.userRepo.GetByEmail(ctx, input.ReceiverEmail)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, s.reject("initiate", apperrors.UserNotFoundError())
		}
		return nil, apperrors.DatabaseError(err)
	}
	if receiver.UserID == user.UserID {
		return nil, s.reject("initiate", apperrors.ValidationError("You cannot call yourself"))
	}

	call := domain.NewCall(user.UserID, receiver.UserID, input.Mode, s.now())
	state, err := s.callRepo.Create(ctx, call, func(st *domain.CallState) error {
		if st.ReceiverBusy() {
			return apperrors.UserBusyError()
		}
		st.Caller.InCall = true
		return nil
	})
	if err != nil {
		return nil, s.fail("initiate", err)
	}

	metrics.CallTransitionsTotal.WithLabelValues(string(domain.CallStatusRinging)).Inc()
	metrics.CallsActive.Inc()
	logger.FromContext(ctx).Info("Call initiated",
		zap.String("call_id", call.CallID.String()),
		zap.String("receiver_id", receiver.UserID.String()),
		zap.String("mode", string(call.Mode)))

	broadcast.Notify(ctx, s.publisher, broadcast.IncomingCall(state.Receiver.Email),
		state.Call.ToDetail(state.Caller, state.Receiver))

	return state.Call.ToResponse(), nil
}

// RingingAck records that the receiver's device is ringing and tells the caller
func (s *Service) RingingAck(ctx context.Context, user domain.AuthenticatedUser, callID, callerID uuid.UUID) error {
	state, err := s.callRepo.Update(ctx, callID, func(st *domain.CallState) error {
		if !st.Call.IsReceiver(user.UserID) {
			return apperrors.ForbiddenError("Only the receiver can acknowledge a call")
		}
		if st.Call.CallerID != callerID {
			return apperrors.UserNotFoundError()
		}
		if st.Call.Status.IsTerminal() {
			return apperrors.ConflictError("Call is no longer ringing")
		}
		st.Receiver.InCall = true
		return nil
	})
	if err != nil {
		return s.fail("ringing", err)
	}

	broadcast.Notify(ctx, s.publisher, broadcast.CallRinging(state.Caller.Email), &domain.RingingNotice{
		CallID:   state.Call.CallID,
		CallerID: state.Call.CallerID,
		Mode:     state.Call.Mode,
	})
	return nil
}

// Accept answers a ringing call
func (s *Service) Accept(ctx context.Context, user domain.AuthenticatedUser, callID uuid.UUID) (*domain.CallResponse, error) {
	state, err := s.callRepo.Update(ctx, callID, func(st *domain.CallState) error {
		// A non-receiver must not learn the call exists
		if !st.Call.IsReceiver(user.UserID) {
			return apperrors.CallNotFoundError()
		}
		if st.Call.Status != domain.CallStatusRinging {
			return apperrors.ConflictError("Call is not ringing")
		}
		st.Receiver.InCall = true
		return st.Call.TransitionTo(domain.CallStatusAccepted, s.now())
	})
	if err != nil {
		return nil, s.fail("accept", err)
	}

	metrics.CallTransitionsTotal.WithLabelValues(string(domain.CallStatusAccepted)).Inc()

	broadcast.Notify(ctx, s.publisher, broadcast.CallAccept(callID, state.Caller.Email), &domain.CallNotice{
		CallID:  callID,
		Message: fmt.Sprintf("Call has been accepted by the %s.", state.Receiver.FullName),
	})
	return state.Call.ToResponse(), nil
}

// Reject declines a ringing call
func (s *Service) Reject(ctx context.Context, user domain.AuthenticatedUser, callID uuid.UUID) (*domain.CallResponse, error) {
	state, err := s.callRepo.Update(ctx, callID, func(st *domain.CallState) error {
		if !st.Call.IsReceiver(user.UserID) {
			return apperrors.ForbiddenError("Only the receiver can reject a call")
		}
		if st.Call.Status != domain.CallStatusRinging {
			return apperrors.ConflictError("Call is not ringing")
		}
		if err := st.Call.TransitionTo(domain.CallStatusRejected, s.now()); err != nil {
			return err
		}
		st.ReleasePresence()
		return nil
	})
	if err != nil {
		return nil, s.fail("reject", err)
	}

	s.recordTerminal(domain.CallStatusRejected)

	broadcast.Notify(ctx, s.publisher, broadcast.CallReject(callID, state.Caller.Email), &domain.CallNotice{
		CallID:  callID,
		Message: fmt.Sprintf("Call has been rejected by the %s.", state.Receiver.FullName),
	})
	return state.Call.ToResponse(), nil
}

// End lets the caller cancel or hang up the call
func (s *Service) End(ctx context.Context, user domain.AuthenticatedUser, callID uuid.UUID) (*domain.CallResponse, error) {
	state, err := s.callRepo.Update(ctx, callID, func(st *domain.CallState) error {
		if !st.Call.IsCaller(user.UserID) {
			return apperrors.ForbiddenError("Only the caller can end a call")
		}
		if st.Call.Status.IsTerminal() {
			return apperrors.ConflictError("Call has already ended")
		}
		if err := st.Call.TransitionTo(domain.CallStatusEnded, s.now()); err != nil {
			return err
		}
		st.ReleasePresence()
		return nil
	})
	if err != nil {
		return nil, s.fail("end", err)
	}

	s.recordTerminal(domain.CallStatusEnded)

	resp := state.Call.ToResponse()
	broadcast.Notify(ctx, s.publisher, broadcast.CallEnd(state.Receiver.Email), resp)
	return resp, nil
}

// Finish lets either participant hang up an accepted call
func (s *Service) Finish(ctx context.Context, user domain.AuthenticatedUser, callID uuid.UUID) (*domain.CallResponse, error) {
	state, err := s.callRepo.Update(ctx, callID, func(st *domain.CallState) error {
		if !st.Call.IsParticipant(user.UserID) {
			return apperrors.ForbiddenError("You are not a participant of this call")
		}
		if st.Call.Status != domain.CallStatusAccepted {
			return apperrors.ConflictError("Call is not in progress")
		}
		if err := st.Call.TransitionTo(domain.CallStatusEnded, s.now()); err != nil {
			return err
		}
		st.ReleasePresence()
		return nil
	})
	if err != nil {
		return nil, s.fail("finish", err)
	}

	s.recordTerminal(domain.CallStatusEnded)

	resp := state.Call.ToResponse()
	broadcast.Notify(ctx, s.publisher, broadcast.CallFinish(callID, state.Other(user.UserID).Email), resp)
	return resp, nil
}

// ReceiverReady tells the caller the receiver has set up its media
func (s *Service) ReceiverReady(ctx context.Context, user domain.AuthenticatedUser, callID uuid.UUID) error {
	state, err := s.load(ctx, "ready", callID)
	if err != nil {
		return err
	}
	if !state.Call.IsReceiver(user.UserID) {
		return s.reject("ready", apperrors.ForbiddenError("Only the receiver can signal readiness"))
	}

	broadcast.Notify(ctx, s.publisher, broadcast.CallReady(callID, state.Caller.Email), &domain.CallNotice{
		CallID:  callID,
		Message: "Receiver is ready for call",
	})
	return nil
}

// ToggleMedia tells the other participant a camera or microphone was switched
func (s *Service) ToggleMedia(ctx context.Context, user domain.AuthenticatedUser, callID uuid.UUID, mediaType domain.MediaType, isOn bool) error {
	if !mediaType.Valid() {
		return s.reject("media", apperrors.ValidationError("Media type must be CAMERA or MIC"))
	}
	state, err := s.activeCall(ctx, "media", user, callID)
	if err != nil {
		return err
	}

	broadcast.Notify(ctx, s.publisher, broadcast.CallMedia(callID, state.Other(user.UserID).Email), &domain.MediaToggle{
		CallID:    callID,
		MediaType: mediaType,
		IsOn:      isOn,
	})
	return nil
}

// SendReaction forwards an emoji to the other participant
func (s *Service) SendReaction(ctx context.Context, user domain.AuthenticatedUser, callID uuid.UUID, emoji string) error {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || len(emoji) > 64 {
		return s.reject("reaction", apperrors.ValidationError("Emoji is required"))
	}
	state, err := s.activeCall(ctx, "reaction", user, callID)
	if err != nil {
		return err
	}

	broadcast.Notify(ctx, s.publisher, broadcast.CallReaction(callID, state.Other(user.UserID).Email), &domain.Reaction{
		CallID: callID,
		Emoji:  emoji,
		Name:   state.Participant(user.UserID).FullName,
	})
	return nil
}

// HandAction forwards a hand raise or lower to the other participant
func (s *Service) HandAction(ctx context.Context, user domain.AuthenticatedUser, callID uuid.UUID, action domain.HandState) error {
	if !action.Valid() {
		return s.reject("hand", apperrors.ValidationError("Action must be RAISED or DOWN"))
	}
	state, err := s.activeCall(ctx, "hand", user, callID)
	if err != nil {
		return err
	}

	broadcast.Notify(ctx, s.publisher, broadcast.CallHand(callID, state.Other(user.UserID).Email), &domain.HandAction{
		CallID: callID,
		Action: action,
		Sender: state.Participant(user.UserID).ToResponse(),
	})
	return nil
}

// GetCall returns a call with both participants to one of them
func (s *Service) GetCall(ctx context.Context, user domain.AuthenticatedUser, callID uuid.UUID) (*domain.CallDetail, error) {
	state, err := s.load(ctx, "get", callID)
	if err != nil {
		return nil, err
	}
	if !state.Call.IsParticipant(user.UserID) {
		return nil, s.reject("get", apperrors.ForbiddenError("You are not a participant of this call"))
	}
	return state.Call.ToDetail(state.Caller, state.Receiver), nil
}

// History returns the user's calls, newest first
func (s *Service) History(ctx context.Context, user domain.AuthenticatedUser, page, size int) (*pagination.Page[*domain.CallDetail], error) {
	params := pagination.New(page, size, constants.DefaultCallHistorySize, constants.MaxCallHistorySize)

	states, total, err := s.callRepo.ListByUser(ctx, user.UserID, params.Size, params.Offset)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	items := make([]*domain.CallDetail, 0, len(states))
	for _, st := range states {
		items = append(items, st.Call.ToDetail(st.Caller, st.Receiver))
	}
	return pagination.NewPage(params, total, items), nil
}

func (s *Service) load(ctx context.Context, operation string, callID uuid.UUID) (*domain.CallState, error) {
	state, err := s.callRepo.GetByID(ctx, callID)
	if err != nil {
		return nil, s.fail(operation, err)
	}
	return state, nil
}

// activeCall loads an accepted call the user takes part in
func (s *Service) activeCall(ctx context.Context, operation string, user domain.AuthenticatedUser, callID uuid.UUID) (*domain.CallState, error) {
	state, err := s.load(ctx, operation, callID)
	if err != nil {
		return nil, err
	}
	if !state.Call.IsParticipant(user.UserID) {
		return nil, s.reject(operation, apperrors.ForbiddenError("You are not a participant of this call"))
	}
	if state.Call.Status != domain.CallStatusAccepted {
		return nil, s.reject(operation, apperrors.ForbiddenError("Call is not in progress"))
	}
	return state, nil
}

func (s *Service) recordTerminal(status domain.CallStatus) {
	metrics.CallTransitionsTotal.WithLabelValues(string(status)).Inc()
	metrics.CallsActive.Dec()
}

// fail maps repository errors onto the error taxonomy
func (s *Service) fail(operation string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return s.reject(operation, apperrors.CallNotFoundError())
	case errors.Is(err, domain.ErrInvalidTransition):
		return s.reject(operation, apperrors.ConflictError("Call cannot move to the requested state"))
	case errors.Is(err, domain.ErrContention):
		return s.reject(operation, apperrors.ContentionError())
	case apperrors.IsAppError(err):
		return s.reject(operation, err)
	}
	return apperrors.DatabaseError(err)
}

func (s *Service) reject(operation string, err error) error {
	metrics.CallOperationRejectedTotal.WithLabelValues(operation, string(apperrors.GetAppError(err).Code)).Inc()
	return err
}
