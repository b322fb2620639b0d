package audit

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/apexanalytical/labcms/pkg/contextkeys"
)

// Logger is the interface for security/audit event logging
type Logger interface {
	// Log records a fully-populated event
	Log(event *Event)

	// SecurityEvent records a security-relevant rejection observed
	// while processing r. Request context (ip, user agent, url,
	// method, request id, authenticated user) is filled in here.
	SecurityEvent(eventType EventType, r *http.Request, message string)

	// SecurityEventField is SecurityEvent with the offending field
	// path and a truncated copy of its value.
	SecurityEventField(eventType EventType, r *http.Request, message, field, value string)
}

// LogrusLogger emits events as structured logrus entries. Security
// events log at warn level so they stand out from request logging.
type LogrusLogger struct {
	log *logrus.Logger
}

// NewLogrusLogger creates an audit logger backed by the given logrus logger
func NewLogrusLogger(log *logrus.Logger) *LogrusLogger {
	return &LogrusLogger{log: log}
}

// Log records a fully-populated event
func (l *LogrusLogger) Log(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	fields := logrus.Fields{
		"event_type": string(event.EventType),
		"status":     string(event.Status),
	}
	if event.UserID != 0 {
		fields["user_id"] = event.UserID
	}
	if event.Username != "" {
		fields["username"] = event.Username
	}
	if event.Role != "" {
		fields["role"] = event.Role
	}
	if event.IPAddress != "" {
		fields["ip"] = event.IPAddress
	}
	if event.UserAgent != "" {
		fields["user_agent"] = event.UserAgent
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	if event.Method != "" {
		fields["method"] = event.Method
	}
	if event.Path != "" {
		fields["path"] = event.Path
	}
	if event.Field != "" {
		fields["field"] = event.Field
	}
	if event.Value != "" {
		fields["value"] = event.Value
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := l.log.WithFields(fields)
	if event.Status == EventStatusSuccess {
		entry.Info(event.Message)
	} else {
		entry.Warn(event.Message)
	}
}

// SecurityEvent records a security-relevant rejection observed while processing r
func (l *LogrusLogger) SecurityEvent(eventType EventType, r *http.Request, message string) {
	l.SecurityEventField(eventType, r, message, "", "")
}

// SecurityEventField is SecurityEvent with the offending field path and value
func (l *LogrusLogger) SecurityEventField(eventType EventType, r *http.Request, message, field, value string) {
	event := BuildEvent(eventType, EventStatusDenied, r)
	event.Message = message
	event.Field = field
	event.Value = Truncate(value)
	l.Log(event)
}

// BuildEvent creates an event with request context populated
func BuildEvent(eventType EventType, status EventStatus, r *http.Request) *Event {
	event := &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
	}
	if r != nil {
		event.IPAddress = ClientIP(r)
		event.UserAgent = r.UserAgent()
		event.Method = r.Method
		event.Path = r.URL.Path
		event.RequestID = contextkeys.GetRequestID(r.Context())
		event.UserID = contextkeys.GetUserID(r.Context())
	}
	return event
}

// ClientIP extracts the client IP from the request
func ClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	// Fall back to RemoteAddr
	return r.RemoteAddr
}

// NopLogger discards all events (used when no logger is configured)
type NopLogger struct{}

func (NopLogger) Log(*Event) {}

func (NopLogger) SecurityEvent(EventType, *http.Request, string) {}

func (NopLogger) SecurityEventField(EventType, *http.Request, string, string, string) {}
