package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/btc-parachain/core/internal/world"
	"github.com/btc-parachain/core/observability/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AuditSink persists one call's outcome for later export. It is satisfied
// by storage.Store; kept as an interface here so dispatcher does not
// import storage directly (storage, in turn, has no reason to import
// dispatcher).
type AuditSink interface {
	AppendAudit(entry AuditRecord) error
}

// AuditRecord is the subset of a dispatched call's result the audit sink
// cares about. Callers adapt it to their own storage schema.
type AuditRecord struct {
	CorrelationID string
	Component     string
	Method        string
	Origin        string
	Height        uint32
	Timestamp     int64
	Detail        string
	Err           string
}

// Dispatcher is the single call-routing boundary in front of World: every
// method dispatch advances the world's clock, checks origin privilege,
// executes the handler, and reports the outcome to logging, Prometheus,
// and tracing before returning.
type Dispatcher struct {
	world   *world.World
	log     *slog.Logger
	metrics *metrics.Core
	tracer  trace.Tracer
	audit   AuditSink
}

// New builds a Dispatcher around w. log and audit may be nil; a nil
// logger falls back to slog.Default(), and a nil audit sink simply skips
// persistence (useful for tests and the offline auditexport tool, which
// read storage but never dispatch through it).
func New(w *world.World, log *slog.Logger, audit AuditSink) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		world:   w,
		log:     log,
		metrics: metrics.Collectors(),
		tracer:  otel.Tracer("github.com/btc-parachain/core/internal/dispatcher"),
		audit:   audit,
	}
}

// Dispatch authorizes, executes, and records one call. height and now are
// the host-supplied block height and wall-clock time for this call; the
// World's view of both is advanced before the handler runs, per
// spec.md's non-goal that the host supplies ordered calls plus a
// monotonic height and clock.
func (d *Dispatcher) Dispatch(ctx context.Context, origin Origin, method string, height uint32, now int64, a Args) (any, error) {
	start := time.Now()
	correlationID := uuid.NewString()
	ctx, span := d.tracer.Start(ctx, method, trace.WithAttributes(
		attribute.String("dispatcher.origin", origin.String()),
		attribute.Int64("dispatcher.height", int64(height)),
		attribute.String("dispatcher.correlation_id", correlationID),
	))
	defer span.End()

	e, err := lookup(method)
	if err != nil {
		d.record(correlationID, method, origin, height, now, "unknown-method", start, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := authorize(origin, e.required); err != nil {
		d.record(correlationID, method, origin, height, now, "unauthorized", start, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	d.world.Height = height
	d.world.Now = now
	a.Height = height
	a.Now = now

	result, err := e.handle(d.world, a)
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	d.record(correlationID, method, origin, height, now, status, start, err)
	return result, err
}

// record updates metrics, structured logs, and (if configured) the audit
// sink for one dispatched call. correlationID is a fresh identifier
// minted per call so a client-reported failure can be located in logs,
// traces, and the audit trail without re-deriving a composite key from
// method/origin/height, which collide across concurrent callers.
func (d *Dispatcher) record(correlationID, method string, origin Origin, height uint32, now int64, status string, start time.Time, err error) {
	d.metrics.DispatchTotal.WithLabelValues(method, status).Inc()
	d.metrics.DispatchDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	detail := "ok"
	errStr := ""
	if err != nil {
		detail = "failed"
		errStr = err.Error()
		d.log.Error("dispatch failed", "method", method, "origin", origin.String(), "height", height, "err", err, "correlation_id", correlationID)
	} else {
		d.log.Debug("dispatch ok", "method", method, "origin", origin.String(), "height", height, "correlation_id", correlationID)
	}

	if d.audit != nil {
		_ = d.audit.AppendAudit(AuditRecord{
			CorrelationID: correlationID,
			Component:     componentOf(method),
			Method:        method,
			Origin:        origin.String(),
			Height:        height,
			Timestamp:     now,
			Detail:        detail,
			Err:           errStr,
		})
	}
}

// componentOf extracts the "component" prefix (e.g. "vault") from a
// dotted method name for grouping in the audit trail.
func componentOf(method string) string {
	for i := 0; i < len(method); i++ {
		if method[i] == '.' {
			return method[:i]
		}
	}
	return method
}
