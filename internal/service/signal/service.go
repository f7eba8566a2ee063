package signal

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"talkbridge-backend/internal/broadcast"
	"talkbridge-backend/internal/domain"
	apperrors "talkbridge-backend/pkg/errors"
	"talkbridge-backend/pkg/logger"
	"talkbridge-backend/pkg/metrics"
)

// Service relays WebRTC negotiation packets between peers.
// Packets are forwarded verbatim; only the sender and recipient are checked.
type Service struct {
	publisher broadcast.Publisher
}

// NewService creates a new signal relay service
func NewService(publisher broadcast.Publisher) *Service {
	return &Service{publisher: publisher}
}

// Relay publishes packet to its recipient's signal topic
func (s *Service) Relay(ctx context.Context, user domain.AuthenticatedUser, packet *domain.SignalPacket) error {
	kind := packet.Kind()
	if !strings.EqualFold(packet.From, user.Email) {
		metrics.SignalPacketsTotal.WithLabelValues(kind, "spoofed").Inc()
		logger.FromContext(ctx).Warn("Rejected signal with forged sender",
			zap.String("claimed_from", packet.From))
		return apperrors.ForbiddenError("Signal sender does not match the authenticated user")
	}
	if strings.TrimSpace(packet.To) == "" {
		metrics.SignalPacketsTotal.WithLabelValues(kind, "invalid").Inc()
		return apperrors.ValidationError("Signal recipient is required")
	}

	if err := s.publisher.Publish(ctx, broadcast.WebRTC(packet.To), packet); err != nil {
		metrics.SignalPacketsTotal.WithLabelValues(kind, "error").Inc()
		return apperrors.ServiceUnavailableError("Signal could not be delivered")
	}

	metrics.SignalPacketsTotal.WithLabelValues(kind, "relayed").Inc()
	return nil
}
