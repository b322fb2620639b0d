package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of security/audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthSuccess       EventType = "auth.success"
	EventTypeAuthMissingHeader EventType = "auth.missing_header"
	EventTypeAuthInvalidToken  EventType = "auth.invalid_token"
	EventTypeAuthExpiredToken  EventType = "auth.expired_token"
	EventTypeAuthStaleToken    EventType = "auth.stale_token"
	EventTypeAuthUnknownUser   EventType = "auth.unknown_user"
	EventTypeAuthDisabledUser  EventType = "auth.disabled_user"
	EventTypeAuthRoleDrift     EventType = "auth.role_drift"
	EventTypeAuthLoginFailed   EventType = "auth.login_failed"

	// Authorization events
	EventTypeAuthzGranted EventType = "authz.granted"
	EventTypeAuthzDenied  EventType = "authz.denied"

	// Input screening events
	EventTypeSQLInjection       EventType = "input.sql_injection"
	EventTypeNoSQLInjection     EventType = "input.nosql_injection"
	EventTypeSuspiciousAgent    EventType = "input.suspicious_user_agent"
	EventTypeMissingAgent       EventType = "input.missing_user_agent"
	EventTypeInvalidContentType EventType = "input.invalid_content_type"

	// Rate limiting events
	EventTypeRateLimitExceeded EventType = "ratelimit.exceeded"
	EventTypeRateLimitStoreErr EventType = "ratelimit.store_error"

	// Upload events
	EventTypeUploadAccepted EventType = "upload.accepted"
	EventTypeUploadRejected EventType = "upload.rejected"
	EventTypeUploadCleanup  EventType = "upload.cleanup"

	// Data mutation events (admin back office)
	EventTypeDataCreate EventType = "data.create"
	EventTypeDataUpdate EventType = "data.update"
	EventTypeDataDelete EventType = "data.delete"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event is a single security/audit log entry. Security events are
// emitted for every security-relevant rejection before the response is
// written, independent of what the client sees.
type Event struct {
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	UserID   int64  `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`

	// Request context
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`

	// Offending input, for injection and upload rejections. Value is
	// truncated before logging so payloads cannot flood the log.
	Field string `json:"field,omitempty"`
	Value string `json:"value,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON converts the event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return &event, err
}

// maxLoggedValueLen caps how much of an offending value is recorded.
const maxLoggedValueLen = 100

// Truncate shortens a value for safe inclusion in a security event.
func Truncate(value string) string {
	if len(value) > maxLoggedValueLen {
		return value[:maxLoggedValueLen]
	}
	return value
}
