package domain

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// SignalCandidate is the type clients use for trickled ICE candidates
const SignalCandidate = "candidate"

// SignalPacket is an opaque WebRTC negotiation message. Only the routing
// fields are decoded; the bytes received are the bytes relayed.
type SignalPacket struct {
	From string
	To   string
	Type string

	raw json.RawMessage
}

type signalRouting struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type,omitempty"`
}

// UnmarshalJSON reads the routing fields and keeps the whole packet
func (p *SignalPacket) UnmarshalJSON(data []byte) error {
	var r signalRouting
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	p.From, p.To, p.Type = r.From, r.To, r.Type
	p.raw = append(p.raw[:0], data...)
	return nil
}

// MarshalJSON returns the packet as it was received
func (p SignalPacket) MarshalJSON() ([]byte, error) {
	if p.raw == nil {
		return json.Marshal(signalRouting{From: p.From, To: p.To, Type: p.Type})
	}
	return p.raw, nil
}

// Kind buckets the packet type for metrics labels
func (p *SignalPacket) Kind() string {
	if p.Type == SignalCandidate {
		return SignalCandidate
	}
	if t := webrtc.NewSDPType(p.Type); t != webrtc.SDPTypeUnknown {
		return t.String()
	}
	return "other"
}

// MediaType is a local media track a participant can switch on or off
type MediaType string

const (
	MediaCamera MediaType = "CAMERA"
	MediaMic    MediaType = "MIC"
)

// Valid reports whether m is a known media type
func (m MediaType) Valid() bool {
	return m == MediaCamera || m == MediaMic
}

// MediaToggle tells the other participant a track changed state
type MediaToggle struct {
	CallID    uuid.UUID `json:"call_id"`
	MediaType MediaType `json:"media_type"`
	IsOn      bool      `json:"is_on"`
}

// Reaction is an emoji sent during a call
type Reaction struct {
	CallID uuid.UUID `json:"call_id"`
	Emoji  string    `json:"emoji"`
	Name   string    `json:"name"`
}

// HandState is a raised or lowered hand
type HandState string

const (
	HandRaised HandState = "RAISED"
	HandDown   HandState = "DOWN"
)

// Valid reports whether h is a known hand state
func (h HandState) Valid() bool {
	return h == HandRaised || h == HandDown
}

// HandAction tells the other participant about a hand raise
type HandAction struct {
	CallID uuid.UUID     `json:"call_id"`
	Action HandState     `json:"action"`
	Sender *UserResponse `json:"sender"`
}
