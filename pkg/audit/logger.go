package audit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/docvault/pkg/observability"
)

// Logger records activity events
type Logger interface {
	// Log records an event
	Log(ctx context.Context, event *Event) error

	// Close flushes any buffered events
	Close() error
}

// NewEvent creates an event stamped with the current time and the request
// id found in ctx
func NewEvent(ctx context.Context, eventType EventType, tenantID int64, userID int64) *Event {
	event := &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    EventStatusSuccess,
		TenantID:  tenantID,
		RequestID: observability.GetRequestID(ctx),
		Metadata:  make(map[string]any),
	}
	if userID > 0 {
		event.UserID = &userID
	}
	return event
}

// NoOp returns a Logger that drops every event
func NoOp() Logger {
	return noOpLogger{}
}

type noOpLogger struct{}

func (noOpLogger) Log(context.Context, *Event) error { return nil }

func (noOpLogger) Close() error { return nil }

// LogrusLogger writes events as structured log lines
type LogrusLogger struct {
	logger logrus.FieldLogger
}

// NewLogrusLogger creates a new LogrusLogger
func NewLogrusLogger(logger logrus.FieldLogger) *LogrusLogger {
	return &LogrusLogger{logger: logger.WithField("component", "activity")}
}

// Log writes event at INFO, or WARN when it did not succeed
func (l *LogrusLogger) Log(ctx context.Context, event *Event) error {
	entry := observability.FromContext(ctx, l.logger).WithFields(logrus.Fields{
		"event_type": event.EventType,
		"status":     event.Status,
		"tenant_id":  event.TenantID,
	})
	if event.UserID != nil {
		entry = entry.WithField("user_id", *event.UserID)
	}
	if event.ResourceType != "" {
		entry = entry.WithField("resource_type", event.ResourceType)
	}
	if len(event.ResourceIDs) > 0 {
		entry = entry.WithField("resource_ids", event.ResourceIDs)
	}
	for k, v := range event.Metadata {
		entry = entry.WithField(k, v)
	}

	if event.Status == EventStatusSuccess {
		entry.Info(event.Message)
	} else {
		entry.Warn(event.Message)
	}
	return nil
}

// Close implements Logger
func (l *LogrusLogger) Close() error {
	return nil
}
