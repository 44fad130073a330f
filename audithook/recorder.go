package audithook

import (
	"context"
	"log/slog"
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit trail record.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	TenantID   string         `json:"tenant_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// LogRecorder writes audit events as structured log records. It is the
// default backend of the daemon.
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder returns a Recorder that logs through logger.
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{logger: logger}
}

// Record implements Recorder.
func (r *LogRecorder) Record(ctx context.Context, evt *AuditEvent) error {
	level := slog.LevelInfo
	switch evt.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityCritical:
		level = slog.LevelError
	}
	r.logger.LogAttrs(ctx, level, "audit",
		slog.String("action", evt.Action),
		slog.String("resource", evt.Resource),
		slog.String("resource_id", evt.ResourceID),
		slog.String("tenant_id", evt.TenantID),
		slog.String("category", evt.Category),
		slog.String("outcome", evt.Outcome),
		slog.String("reason", evt.Reason),
		slog.Any("metadata", evt.Metadata),
	)
	return nil
}
