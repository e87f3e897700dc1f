package observability

import (
	"context"
	"time"
)

const sessionEventsRoutingKey = "ws_events.sessions"

// EventEnvelope wraps every event placed on the bus.
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// ConnMeta identifies one websocket session for lifecycle events.
type ConnMeta struct {
	ConnID    string
	UserID    int
	DeviceID  string
	IP        string
	RequestID string
	TraceID   string
}

// BuildHeaders propagates request correlation ids onto bus messages.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

// PublishSessionEvent emits a ws_connect/ws_disconnect/ws_error lifecycle
// event. Publish failures only bump a counter; lifecycle events are
// best-effort.
func PublishSessionEvent(ctx context.Context, event string, meta ConnMeta, duration time.Duration, reason string) {
	IncWSEvent(event)
	_ = PublishEvent(ctx, sessionEventsRoutingKey, EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       event,
				"conn_id":     meta.ConnID,
				"duration_ms": duration.Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   meta.UserID,
				"device_id": meta.DeviceID,
				"ip":        meta.IP,
			},
		},
	}, BuildHeaders(meta.RequestID, meta.TraceID))
}
