package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// CallStatus is the lifecycle state of a 1:1 call
type CallStatus string

const (
	CallStatusRinging  CallStatus = "RINGING"
	CallStatusAccepted CallStatus = "ACCEPTED"
	CallStatusRejected CallStatus = "REJECTED"
	CallStatusEnded    CallStatus = "ENDED"
)

// CallMode is the media mode a call was placed with
type CallMode string

const (
	CallModeAudio CallMode = "AUDIO"
	CallModeVideo CallMode = "VIDEO"
)

// Valid reports whether m is a known call mode
func (m CallMode) Valid() bool {
	return m == CallModeAudio || m == CallModeVideo
}

// ErrInvalidTransition is returned when a call cannot move to the requested status
var ErrInvalidTransition = errors.New("invalid call status transition")

var callTransitions = map[CallStatus][]CallStatus{
	CallStatusRinging:  {CallStatusAccepted, CallStatusRejected, CallStatusEnded},
	CallStatusAccepted: {CallStatusEnded},
}

// IsTerminal reports whether no transition leaves s
func (s CallStatus) IsTerminal() bool {
	return len(callTransitions[s]) == 0
}

// CanTransitionTo reports whether s -> next is allowed
func (s CallStatus) CanTransitionTo(next CallStatus) bool {
	for _, allowed := range callTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Call represents a 1:1 audio/video call
type Call struct {
	CallID     uuid.UUID  `json:"call_id"`
	CallerID   uuid.UUID  `json:"caller_id"`
	ReceiverID uuid.UUID  `json:"receiver_id"`
	Status     CallStatus `json:"status"`
	Mode       CallMode   `json:"mode"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// NewCall creates a ringing call
func NewCall(callerID, receiverID uuid.UUID, mode CallMode, now time.Time) *Call {
	return &Call{
		CallID:     uuid.New(),
		CallerID:   callerID,
		ReceiverID: receiverID,
		Status:     CallStatusRinging,
		Mode:       mode,
		StartedAt:  now,
	}
}

func (c *Call) IsCaller(userID uuid.UUID) bool   { return c.CallerID == userID }
func (c *Call) IsReceiver(userID uuid.UUID) bool { return c.ReceiverID == userID }

// IsParticipant reports whether userID is the caller or the receiver
func (c *Call) IsParticipant(userID uuid.UUID) bool {
	return c.IsCaller(userID) || c.IsReceiver(userID)
}

// OtherParty returns the participant that is not userID
func (c *Call) OtherParty(userID uuid.UUID) uuid.UUID {
	if c.IsCaller(userID) {
		return c.ReceiverID
	}
	return c.CallerID
}

// TransitionTo moves the call to next, stamping EndedAt for terminal states
func (c *Call) TransitionTo(next CallStatus, now time.Time) error {
	if !c.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	c.Status = next
	if next.IsTerminal() {
		c.EndedAt = &now
	}
	return nil
}

// CallState is a call together with both participants, loaded and saved as one unit
type CallState struct {
	Call     *Call
	Caller   *User
	Receiver *User

	// Set on creation when the receiver already has a RINGING or ACCEPTED call
	ReceiverLive bool
}

// ReceiverBusy reports whether the receiver is in a call or being rung by another one
func (s *CallState) ReceiverBusy() bool {
	return s.Receiver.InCall || s.ReceiverLive
}

// Participant returns the loaded user record for userID, or nil
func (s *CallState) Participant(userID uuid.UUID) *User {
	switch userID {
	case s.Call.CallerID:
		return s.Caller
	case s.Call.ReceiverID:
		return s.Receiver
	}
	return nil
}

// Other returns the loaded record of the participant that is not userID
func (s *CallState) Other(userID uuid.UUID) *User {
	if s.Call.IsCaller(userID) {
		return s.Receiver
	}
	return s.Caller
}

// ReleasePresence clears both participants' in-call flags
func (s *CallState) ReleasePresence() {
	s.Caller.InCall = false
	s.Receiver.InCall = false
}

// CallResponse is the call summary without participant details
type CallResponse struct {
	CallID    uuid.UUID  `json:"call_id"`
	Status    CallStatus `json:"status"`
	Mode      CallMode   `json:"mode"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// CallDetail is a call summary with both participants' public profiles
type CallDetail struct {
	CallResponse
	Caller   *UserResponse `json:"caller"`
	Receiver *UserResponse `json:"receiver"`
}

// ToResponse converts Call to CallResponse
func (c *Call) ToResponse() *CallResponse {
	return &CallResponse{
		CallID:    c.CallID,
		Status:    c.Status,
		Mode:      c.Mode,
		StartedAt: c.StartedAt,
		EndedAt:   c.EndedAt,
	}
}

// ToDetail converts Call to CallDetail using the loaded participants
func (c *Call) ToDetail(caller, receiver *User) *CallDetail {
	d := &CallDetail{CallResponse: *c.ToResponse()}
	if caller != nil {
		d.Caller = caller.ToResponse()
	}
	if receiver != nil {
		d.Receiver = receiver.ToResponse()
	}
	return d
}

// RingingNotice tells the caller the receiver's device is ringing
type RingingNotice struct {
	CallID   uuid.UUID `json:"call_id"`
	CallerID uuid.UUID `json:"caller_id"`
	Mode     CallMode  `json:"mode"`
}

// CallNotice is a human-readable call event for the other participant
type CallNotice struct {
	CallID  uuid.UUID `json:"call_id"`
	Message string    `json:"message"`
}
