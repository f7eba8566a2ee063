package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Signaling metrics for call, meeting and relay lifecycles
var (
	CallTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "call_transitions_total",
		Help: "Call state transitions by resulting status",
	}, []string{"status"})

	CallsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "calls_active",
		Help: "Calls that are ringing or accepted, as seen by this process",
	})

	CallOperationRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "call_operation_rejected_total",
		Help: "Call operations refused by authorization or state checks",
	}, []string{"operation", "code"})

	MeetingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meetings_created_total",
		Help: "Total number of meetings created",
	})

	MeetingParticipantEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_participant_events_total",
		Help: "Meeting membership events",
	}, []string{"event"}) // join, leave, waiting, granted

	MessagesRelayedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "call_messages_relayed_total",
		Help: "Chat messages persisted and published within calls",
	}, []string{"status"})

	SignalPacketsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webrtc_signal_packets_total",
		Help: "WebRTC signal packets relayed by type",
	}, []string{"type", "status"})

	BusPublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_publish_total",
		Help: "Broadcast bus publishes by topic kind",
	}, []string{"kind", "status"})

	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Open gateway WebSocket connections",
	})

	WebSocketFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_frames_total",
		Help: "Gateway WebSocket frames by direction and action",
	}, []string{"direction", "action"})

	WebSocketDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_frames_dropped_total",
		Help: "Outbound frames dropped because a client's send buffer was full",
	})
)
