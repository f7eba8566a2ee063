package signal

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"talkbridge-backend/internal/broadcast"
	"talkbridge-backend/internal/domain"
	apperrors "talkbridge-backend/pkg/errors"
)

// MockPublisher is a mock implementation of broadcast.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic broadcast.Topic, payload interface{}) error {
	args := m.Called(ctx, topic, payload)
	return args.Error(0)
}

var alice = domain.AuthenticatedUser{UserID: uuid.New(), Email: "alice@example.com"}

func packetOf(t *testing.T, raw string) *domain.SignalPacket {
	t.Helper()
	var packet domain.SignalPacket
	require.NoError(t, json.Unmarshal([]byte(raw), &packet))
	return &packet
}

func TestRelay_Candidate(t *testing.T) {
	publisher := new(MockPublisher)
	service := NewService(publisher)

	packet := packetOf(t, `{"from":"alice@example.com","to":"bob@example.com","type":"candidate",`+
		`"candidate":{"candidate":"candidate:1 1 udp 2122260223 192.0.2.1 54321 typ host","sdpMid":"0","sdpMLineIndex":0}}`)
	publisher.On("Publish", mock.Anything, broadcast.WebRTC("bob@example.com"), packet).Return(nil)

	require.NoError(t, service.Relay(context.Background(), alice, packet))
	assert.Equal(t, "candidate", packet.Kind())
	publisher.AssertExpectations(t)
}

func TestRelay_Offer(t *testing.T) {
	publisher := new(MockPublisher)
	service := NewService(publisher)
	packet := packetOf(t, `{"from":"Alice@Example.com","to":"bob@example.com","type":"offer","sdp":"v=0\r\n"}`)
	publisher.On("Publish", mock.Anything, broadcast.WebRTC("bob@example.com"), packet).Return(nil)

	require.NoError(t, service.Relay(context.Background(), alice, packet))
	assert.Equal(t, "offer", packet.Kind())
}

func TestRelay_ForwardsUnknownTypesVerbatim(t *testing.T) {
	publisher := new(MockPublisher)
	service := NewService(publisher)

	raw := `{"from":"alice@example.com","to":"bob@example.com","type":"renegotiate","call_id":"c-1","extra":{"muted":true}}`
	packet := packetOf(t, raw)
	publisher.On("Publish", mock.Anything, broadcast.WebRTC("bob@example.com"), packet).Return(nil)

	require.NoError(t, service.Relay(context.Background(), alice, packet))
	assert.Equal(t, "other", packet.Kind())

	relayed, err := json.Marshal(publisher.Calls[0].Arguments.Get(2))
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(relayed))
}

func TestRelay_RejectsSpoofedSender(t *testing.T) {
	publisher := new(MockPublisher)
	service := NewService(publisher)

	err := service.Relay(context.Background(), alice,
		packetOf(t, `{"from":"mallory@example.com","to":"bob@example.com","type":"offer","sdp":"v=0"}`))

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestRelay_MissingRecipient(t *testing.T) {
	publisher := new(MockPublisher)
	service := NewService(publisher)

	err := service.Relay(context.Background(), alice, packetOf(t, `{"from":"alice@example.com","type":"answer"}`))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestRelay_BusFailure(t *testing.T) {
	publisher := new(MockPublisher)
	service := NewService(publisher)
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	err := service.Relay(context.Background(), alice,
		packetOf(t, `{"from":"alice@example.com","to":"bob@example.com","type":"answer"}`))

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeServiceUnavail))
}
