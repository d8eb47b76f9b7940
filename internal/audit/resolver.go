// Package audit resolves the acting admin of a request and records
// privileged mutations in the audit log.
//
// Both halves never return errors to their callers. Resolution fails closed:
// a missing session, a subject without an active admin grant and a failing
// collaborator all look the same. Recording is best-effort: a failed write is
// reported as false, logged and counted, and the surrounding mutation stands.
package audit

import (
	"context"

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

const instrumentationName = "github.com/celerix-dev/repairdesk/internal/audit"

// SessionSource yields the subject of a session. session.Manager implements it.
type SessionSource interface {
	CurrentUser(ctx context.Context, sc session.Context) (*schema.Subject, error)
}

// Resolver determines which admin, if any, is acting in a session.
type Resolver struct {
	sessions SessionSource
	admins   engine.AdminReader
	logger   *log.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// NewResolver creates a Resolver. logger and m may be nil.
func NewResolver(sessions SessionSource, admins engine.AdminReader, logger *log.Logger, m *metrics.Metrics) *Resolver {
	if logger == nil {
		logger = log.Nop()
	}
	return &Resolver{
		sessions: sessions,
		admins:   admins,
		logger:   logger.With("component", "admin_resolver"),
		metrics:  m,
		tracer:   otel.Tracer(instrumentationName),
	}
}

// ResolveCurrentAdmin returns the active admin grant of the session subject.
// The admins table is not consulted when the session has no subject.
func (r *Resolver) ResolveCurrentAdmin(ctx context.Context, sc session.Context) (*schema.AdminRecord, bool) {
	ctx, span := r.tracer.Start(ctx, "audit.ResolveCurrentAdmin")
	defer span.End()

	subject, err := r.sessions.CurrentUser(ctx, sc)
	if err != nil {
		r.fail(ctx, span, "session lookup failed", err)
		return nil, false
	}
	if subject == nil || subject.ID == "" {
		r.outcome(span, metrics.ResolveNoSession)
		return nil, false
	}
	span.SetAttributes(attribute.String("subject.id", string(subject.ID)))

	admin, err := r.admins.FindActiveAdmin(ctx, subject.ID)
	if err != nil {
		r.fail(ctx, span, "admin lookup failed", err, "subject_id", subject.ID)
		return nil, false
	}
	// a grant that is inactive or belongs to someone else is no grant
	if admin == nil || !admin.IsActive || admin.UserID != subject.ID || admin.ID == "" {
		r.outcome(span, metrics.ResolveNotAdmin)
		return nil, false
	}

	span.SetAttributes(attribute.String("admin.id", string(admin.ID)), attribute.String("admin.role", string(admin.Role)))
	r.outcome(span, metrics.ResolveOK)
	return admin, true
}

// ResolveCurrentAdminID returns the primary key of the acting admin's row,
// never the session subject's user id.
func (r *Resolver) ResolveCurrentAdminID(ctx context.Context, sc session.Context) (schema.AdminID, bool) {
	admin, ok := r.ResolveCurrentAdmin(ctx, sc)
	if !ok {
		return "", false
	}
	return admin.ID, true
}

func (r *Resolver) outcome(span trace.Span, outcome string) {
	span.SetAttributes(attribute.String("resolve.outcome", outcome))
	r.metrics.RecordResolve(outcome)
}

func (r *Resolver) fail(ctx context.Context, span trace.Span, msg string, err error, args ...any) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	r.outcome(span, metrics.ResolveError)
	r.logger.WithError(err).WarnContext(ctx, msg, args...)
}
