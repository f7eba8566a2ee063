package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"talkbridge-backend/pkg/constants"
)

// EventType names a session event worth keeping after the request log rotates
type EventType string

const (
	EventLoginSuccess    EventType = "login_success"
	EventLoginFailed     EventType = "login_failed"
	EventRefreshRejected EventType = "refresh_rejected"
	EventLogout          EventType = "logout"
)

// Event is one audit log entry
type Event struct {
	EventID   uuid.UUID  `json:"event_id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	EventType EventType  `json:"event_type"`
	IPAddress string     `json:"ip_address,omitempty"`
	UserAgent string     `json:"user_agent,omitempty"`
	Success   bool       `json:"success"`
	ErrorCode string     `json:"error_code,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Logger appends events to a per-day Redis list
type Logger struct {
	redisClient *redis.Client
	now         func() time.Time
}

// NewLogger creates a new audit logger
func NewLogger(redisClient *redis.Client) *Logger {
	return &Logger{
		redisClient: redisClient,
		now:         time.Now,
	}
}

// DayKey is the list holding the events of day t (UTC)
func DayKey(t time.Time) string {
	return fmt.Sprintf("audit:events:%s", t.UTC().Format("2006-01-02"))
}

// Log stores an audit event
func (l *Logger) Log(ctx context.Context, event *Event) error {
	event.Timestamp = l.now().UTC()
	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	key := DayKey(event.Timestamp)
	pipe := l.redisClient.TxPipeline()
	pipe.LPush(ctx, key, eventJSON)
	pipe.Expire(ctx, key, constants.AuditLogRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store audit event: %w", err)
	}
	return nil
}
