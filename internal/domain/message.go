package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents a chat message scoped to a call
// Maps to CockroachDB messages table
type Message struct {
	MessageID  uuid.UUID `json:"message_id"`
	CallID     uuid.UUID `json:"call_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// MessageResponse represents the message returned to clients and published to the recipient
type MessageResponse struct {
	MessageID  uuid.UUID `json:"message_id"`
	CallID     uuid.UUID `json:"call_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	SenderName string    `json:"sender_name,omitempty"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// ToResponse converts Message to MessageResponse
func (m *Message) ToResponse(senderName string) *MessageResponse {
	return &MessageResponse{
		MessageID:  m.MessageID,
		CallID:     m.CallID,
		SenderID:   m.SenderID,
		SenderName: senderName,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
	}
}
