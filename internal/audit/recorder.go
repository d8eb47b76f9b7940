package audit

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/celerix-dev/repairdesk/internal/engine"
	"github.com/celerix-dev/repairdesk/internal/log"
	"github.com/celerix-dev/repairdesk/internal/metrics"
	"github.com/celerix-dev/repairdesk/internal/session"
	"github.com/celerix-dev/repairdesk/pkg/schema"
)

// Recorder appends audit entries.
type Recorder struct {
	resolver *Resolver
	store    engine.AuditWriter
	logger   *log.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// NewRecorder creates a Recorder. logger and m may be nil.
func NewRecorder(resolver *Resolver, store engine.AuditWriter, logger *log.Logger, m *metrics.Metrics) *Recorder {
	if logger == nil {
		logger = log.Nop()
	}
	return &Recorder{
		resolver: resolver,
		store:    store,
		logger:   logger.With("component", "audit_recorder"),
		metrics:  m,
		tracer:   otel.Tracer(instrumentationName),
	}
}

// RecordEvent appends one audit entry and reports whether it was written.
//
// adminID, action and table are required; unknown actions or tables count as
// missing. An empty recordID and nil payloads are stored as NULL. Payloads
// are stored as JSON text; a payload that encodes to JSON null is treated as
// absent. Nothing is written when validation or encoding fails.
func (r *Recorder) RecordEvent(
	ctx context.Context,
	adminID schema.AdminID,
	action schema.AuditAction,
	table schema.AuditTable,
	recordID string,
	oldData, newData any,
) bool {
	ctx, span := r.tracer.Start(ctx, "audit.RecordEvent", trace.WithAttributes(
		attribute.String("audit.action", string(action)),
		attribute.String("audit.table", string(table)),
		attribute.String("audit.record_id", recordID),
	))
	defer span.End()

	logger := r.logger.With("admin_id", adminID, "action", action, "table", table, "record_id", recordID)

	if adminID == "" || !action.Valid() || !table.Valid() {
		span.SetStatus(codes.Error, "invalid audit event")
		r.metrics.RecordAudit(string(action), metrics.AuditRejected)
		logger.WarnContext(ctx, "audit event rejected: missing or unknown required field")
		return false
	}

	oldText, err := encodePayload(oldData)
	if err != nil {
		r.reject(ctx, span, logger, action, "old_data", err)
		return false
	}
	newText, err := encodePayload(newData)
	if err != nil {
		r.reject(ctx, span, logger, action, "new_data", err)
		return false
	}

	entry := &schema.AuditEntry{
		AdminID:   adminID,
		Action:    action,
		TableName: table,
		OldData:   oldText,
		NewData:   newText,
	}
	if recordID != "" {
		entry.RecordID = &recordID
	}

	if err := r.store.AppendAudit(ctx, entry); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "audit write failed")
		r.metrics.RecordAudit(string(action), metrics.AuditFailed)
		logger.WithError(err).WarnContext(ctx, "audit write failed")
		return false
	}

	span.SetAttributes(attribute.String("audit.id", entry.ID))
	r.metrics.RecordAudit(string(action), metrics.AuditOK)
	logger.DebugContext(ctx, "audit event recorded", "audit_id", entry.ID)
	return true
}

func (r *Recorder) reject(ctx context.Context, span trace.Span, logger *log.Logger, action schema.AuditAction, field string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, "payload encoding failed")
	r.metrics.RecordAudit(string(action), metrics.AuditRejected)
	logger.WithError(err).WarnContext(ctx, "audit payload could not be encoded", "field", field)
}

func encodePayload(v any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return nil, nil
	}
	s := string(b)
	return &s, nil
}

// record resolves the acting admin, then writes the event. Without an
// acting admin nothing is written.
func (r *Recorder) record(ctx context.Context, sc session.Context, action schema.AuditAction, table schema.AuditTable, recordID string, oldData, newData any) bool {
	adminID, ok := r.resolver.ResolveCurrentAdminID(ctx, sc)
	if !ok {
		r.metrics.RecordAudit(string(action), metrics.AuditUnresolved)
		r.logger.WarnContext(ctx, "audit event dropped: no acting admin", "action", action, "table", table, "record_id", recordID)
		return false
	}
	return r.RecordEvent(ctx, adminID, action, table, recordID, oldData, newData)
}

// LogCreate records a CREATE with the new state.
func (r *Recorder) LogCreate(ctx context.Context, sc session.Context, table schema.AuditTable, recordID string, newData any) bool {
	return r.record(ctx, sc, schema.ActionCreate, table, recordID, nil, newData)
}

// LogUpdate records an UPDATE with both states.
func (r *Recorder) LogUpdate(ctx context.Context, sc session.Context, table schema.AuditTable, recordID string, oldData, newData any) bool {
	return r.record(ctx, sc, schema.ActionUpdate, table, recordID, oldData, newData)
}

// LogDelete records a DELETE with the removed state.
func (r *Recorder) LogDelete(ctx context.Context, sc session.Context, table schema.AuditTable, recordID string, oldData any) bool {
	return r.record(ctx, sc, schema.ActionDelete, table, recordID, oldData, nil)
}

// LogUpload records an image registration on device_images.
func (r *Recorder) LogUpload(ctx context.Context, sc session.Context, recordID string, newData any) bool {
	return r.record(ctx, sc, schema.ActionUpload, schema.TableDeviceImages, recordID, nil, newData)
}

// LogRemove records an image removal on device_images.
func (r *Recorder) LogRemove(ctx context.Context, sc session.Context, recordID string, oldData any) bool {
	return r.record(ctx, sc, schema.ActionRemove, schema.TableDeviceImages, recordID, oldData, nil)
}

// LogToggle records an active-flag flip.
func (r *Recorder) LogToggle(ctx context.Context, sc session.Context, table schema.AuditTable, recordID string, oldData, newData any) bool {
	return r.record(ctx, sc, schema.ActionToggle, table, recordID, oldData, newData)
}
