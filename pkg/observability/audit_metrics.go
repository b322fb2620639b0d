package observability

import (
	"net/http"

	"github.com/apexanalytical/labcms/pkg/audit"
)

// MeteredAuditLogger decorates an audit logger so every security event
// also increments the corresponding Prometheus counter.
type MeteredAuditLogger struct {
	next    audit.Logger
	metrics *Metrics
}

// NewMeteredAuditLogger wraps next with event counting
func NewMeteredAuditLogger(next audit.Logger, metrics *Metrics) *MeteredAuditLogger {
	return &MeteredAuditLogger{next: next, metrics: metrics}
}

func (l *MeteredAuditLogger) Log(event *audit.Event) {
	l.count(event.EventType, event.Status)
	l.next.Log(event)
}

func (l *MeteredAuditLogger) SecurityEvent(eventType audit.EventType, r *http.Request, message string) {
	l.count(eventType, audit.EventStatusDenied)
	l.next.SecurityEvent(eventType, r, message)
}

func (l *MeteredAuditLogger) SecurityEventField(eventType audit.EventType, r *http.Request, message, field, value string) {
	l.count(eventType, audit.EventStatusDenied)
	l.next.SecurityEventField(eventType, r, message, field, value)
}

func (l *MeteredAuditLogger) count(eventType audit.EventType, status audit.EventStatus) {
	l.metrics.SecurityEventsTotal.WithLabelValues(string(eventType)).Inc()
	switch eventType {
	case audit.EventTypeUploadAccepted:
		l.metrics.UploadsTotal.WithLabelValues("accepted").Inc()
	case audit.EventTypeUploadRejected:
		l.metrics.UploadsTotal.WithLabelValues("rejected").Inc()
	case audit.EventTypeRateLimitExceeded:
		l.metrics.RateLimitAllowsTotal.WithLabelValues("any", "rejected").Inc()
	}
}
