// Package constants defines application-wide constants for timeouts, limits, and durations.
package constants

import "time"

// Time-related constants
const (
	// DefaultTimeout is the default timeout for most operations
	DefaultTimeout = 30 * time.Second

	// ShortTimeout bounds single Redis round trips made outside a request
	ShortTimeout = 5 * time.Second

	// GracefulShutdownTimeout is the timeout for graceful server shutdown
	GracefulShutdownTimeout = 30 * time.Second
)

// WebSocket gateway constants
const (
	// WebSocketWriteWait is the time allowed to write a frame to the peer
	WebSocketWriteWait = 10 * time.Second

	// WebSocketPongWait is the time allowed to read the next pong from the peer
	WebSocketPongWait = 60 * time.Second

	// WebSocketPingInterval must be shorter than WebSocketPongWait
	WebSocketPingInterval = (WebSocketPongWait * 9) / 10

	// WebSocketMaxMessageSize bounds inbound frames (SDP offers can be several KB)
	WebSocketMaxMessageSize = 64 * 1024

	// WebSocketSendBuffer is the per-connection outbound queue length
	WebSocketSendBuffer = 256

	// MaxSubscriptionsPerConnection caps topics one socket may follow
	MaxSubscriptionsPerConnection = 64
)

// Presence constants
const (
	// PresenceTTL is how long an online marker survives without a pong refresh
	PresenceTTL = 2 * time.Minute
)

// Database connection constants
const (
	MaxConnLifetime   = 1 * time.Hour
	MaxConnIdleTime   = 30 * time.Minute
	HealthCheckPeriod = 1 * time.Minute

	// TxRetryAttempts bounds how often a transaction is restarted after a serialization failure
	TxRetryAttempts = 3
	TxRetryBackoff  = 20 * time.Millisecond
)

// Call constants
const (
	// DefaultCallHistorySize is the page size of the call history when none is given
	DefaultCallHistorySize = 5

	// MaxCallHistorySize caps call history pages
	MaxCallHistorySize = 50
)

// Meeting constants
const (
	// MeetingCodeRetries is how many fresh codes are tried when storage reports a collision
	MeetingCodeRetries = 3
)

// User directory constants
const (
	DefaultSearchSize    = 5
	MaxSearchSize        = 20
	DefaultSuggestedSize = 9
	MaxSuggestedSize     = 30

	// MaxProfileImageSize is the largest accepted profile upload (5MB)
	MaxProfileImageSize = 5 * 1024 * 1024

	MaxFullNameLength = 100
)

// Message constants
const (
	// MaxMessageLength is the maximum allowed chat message length in characters
	MaxMessageLength = 4000
)

// Auth constants
const (
	// RefreshTokenCookie is the cookie carrying the refresh credential
	RefreshTokenCookie = "refreshToken"

	// AuditLogRetention is how long session audit events are kept
	AuditLogRetention = 90 * 24 * time.Hour
)
