package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCallStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to CallStatus
		allowed  bool
	}{
		{CallStatusRinging, CallStatusAccepted, true},
		{CallStatusRinging, CallStatusRejected, true},
		{CallStatusRinging, CallStatusEnded, true},
		{CallStatusAccepted, CallStatusEnded, true},
		{CallStatusAccepted, CallStatusRejected, false},
		{CallStatusAccepted, CallStatusRinging, false},
		{CallStatusRejected, CallStatusAccepted, false},
		{CallStatusEnded, CallStatusAccepted, false},
		{CallStatusEnded, CallStatusEnded, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}

	assert.True(t, CallStatusEnded.IsTerminal())
	assert.True(t, CallStatusRejected.IsTerminal())
	assert.False(t, CallStatusRinging.IsTerminal())
}

func TestCall_TransitionStampsEndedAt(t *testing.T) {
	now := time.Now()
	call := NewCall(uuid.New(), uuid.New(), CallModeVideo, now)

	assert.NoError(t, call.TransitionTo(CallStatusAccepted, now))
	assert.Nil(t, call.EndedAt)

	assert.NoError(t, call.TransitionTo(CallStatusEnded, now.Add(time.Minute)))
	assert.NotNil(t, call.EndedAt)

	assert.ErrorIs(t, call.TransitionTo(CallStatusEnded, now), ErrInvalidTransition)
}

func TestCall_Participants(t *testing.T) {
	caller, receiver, stranger := uuid.New(), uuid.New(), uuid.New()
	call := NewCall(caller, receiver, CallModeAudio, time.Now())

	assert.True(t, call.IsParticipant(caller))
	assert.True(t, call.IsParticipant(receiver))
	assert.False(t, call.IsParticipant(stranger))
	assert.Equal(t, receiver, call.OtherParty(caller))
	assert.Equal(t, caller, call.OtherParty(receiver))
}

func TestCallState_ReceiverBusy(t *testing.T) {
	tests := []struct {
		name   string
		inCall bool
		live   bool
		busy   bool
	}{
		{"idle", false, false, false},
		{"in a call", true, false, true},
		{"ringing, not yet acked", false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &CallState{Caller: &User{}, Receiver: &User{InCall: tt.inCall}, ReceiverLive: tt.live}
			assert.Equal(t, tt.busy, st.ReceiverBusy())
		})
	}
}
