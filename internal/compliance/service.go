package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jaredmiller23/roofing-saas-sub003/internal/audit"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/contact"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/dnc"
	"github.com/jaredmiller23/roofing-saas-sub003/pkg/phone"
	"github.com/jaredmiller23/roofing-saas-sub003/pkg/platform/sentinel"
	"github.com/jaredmiller23/roofing-saas-sub003/pkg/requestcontext"
)

// Service is the canContact orchestrator.
type Service struct {
	contacts        contact.Store
	dnc             *dnc.Service
	auditor         *audit.Publisher
	defaultTimezone string
	logger          *slog.Logger
	metrics         *Metrics
	tracer          trace.Tracer
}

func NewService(contacts contact.Store, dncSvc *dnc.Service, auditor *audit.Publisher, defaultTimezone string, opts ...ServiceOption) *Service {
	s := &Service{
		contacts:        contacts,
		dnc:             dncSvc,
		auditor:         auditor,
		defaultTimezone: defaultTimezone,
		tracer:          otel.Tracer("compliance"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithLogger sets a logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// CanContact evaluates whether the tenant may reach the number on the channel
// right now. Every path writes exactly one audit entry. Infrastructure faults
// return a blocked decision AND a non-nil error: the caller must not contact,
// and must know the answer came from a fault rather than a rule.
func (s *Service) CanContact(ctx context.Context, req Request) (Decision, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "compliance.CanContact",
		trace.WithAttributes(
			attribute.String("tenant", req.Tenant),
			attribute.String("channel", string(req.Channel)),
		))
	defer span.End()
	defer func() { s.metrics.observeLatency(time.Since(start).Seconds()) }()

	now := requestcontext.Now(ctx)
	if !req.Channel.Valid() {
		return Decision{}, fmt.Errorf("can contact: invalid channel %q", req.Channel)
	}

	st := &checkState{req: req, canonical: phone.Canonicalize(req.Phone)}
	record, err := s.resolveContact(ctx, req, st.canonical)
	if err != nil {
		return s.failClosed(ctx, st, now, fmt.Errorf("resolve contact: %w", err))
	}
	st.contact = record
	if record != nil && req.ContactID == "" {
		st.req.ContactID = record.ID
	}

	decision := Decision{Allowed: true, CheckedAt: now}
	auditDetail := ""
	for _, check := range s.checkChain() {
		outcome, err := check.run(ctx, st)
		if err != nil {
			return s.failClosed(ctx, st, now, fmt.Errorf("%s check: %w", check.name, err))
		}
		if outcome.timezone != "" {
			decision.Timezone = outcome.timezone
			decision.LocalTime = outcome.localTime
		}
		if outcome.detail != "" {
			auditDetail = appendDetail(auditDetail, outcome.detail)
		}

		switch outcome.status {
		case statusFail:
			s.metrics.observeOutcome(check.name, "fail")
			decision.Allowed = false
			decision.Check = check.name
			decision.Reason = outcome.reason
			span.SetAttributes(attribute.String("blocked_by", check.name))
			s.emitDecision(ctx, st, now, decision, check.name, outcome, auditDetail)
			return decision, nil
		case statusWarn:
			s.metrics.observeOutcome(check.name, "warn")
			decision.Warnings = append(decision.Warnings, Warning{Check: check.name, Reason: outcome.reason})
		default:
			s.metrics.observeOutcome(check.name, "pass")
		}
	}

	s.emitDecision(ctx, st, now, decision, "", checkOutcome{}, auditDetail)
	return decision, nil
}

func (s *Service) resolveContact(ctx context.Context, req Request, canonical string) (*contact.Record, error) {
	var (
		record *contact.Record
		err    error
	)
	if req.ContactID != "" {
		record, err = s.contacts.Get(ctx, req.Tenant, req.ContactID)
	} else {
		record, err = s.contacts.FindByPhone(ctx, req.Tenant, canonical)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

// failClosed converts an infrastructure fault into a blocked decision with a
// generic reason. The fault is logged and returned; it never leaks into the
// decision reason.
func (s *Service) failClosed(ctx context.Context, st *checkState, now time.Time, cause error) (Decision, error) {
	if s.logger != nil {
		s.logger.ErrorContext(ctx, "compliance check failed closed",
			"tenant", st.req.Tenant, "channel", st.req.Channel, "error", cause)
	}
	s.metrics.observeOutcome(CheckInternal, "fail")

	decision := Decision{
		Allowed:   false,
		Check:     CheckInternal,
		Reason:    ReasonInternalError,
		CheckedAt: now,
	}
	s.emitDecision(ctx, st, now, decision, CheckInternal, checkOutcome{}, "")
	return decision, fmt.Errorf("compliance check failed closed: %w", cause)
}

// emitDecision writes the single audit entry for a decision. Best effort: the
// verdict is already computed from authoritative state, so an audit-channel
// fault is surfaced through the publisher's logs and metrics instead of
// flipping the answer.
func (s *Service) emitDecision(ctx context.Context, st *checkState, now time.Time, decision Decision, failedCheck string, outcome checkOutcome, detail string) {
	if s.auditor == nil {
		return
	}
	result := audit.ResultPass
	checkType := "all"
	if !decision.Allowed {
		result = audit.ResultFail
		checkType = failedCheck
	} else if len(decision.Warnings) > 0 {
		result = audit.ResultWarning
	}

	reason := decision.Reason
	if decision.Allowed {
		reason = "all checks passed"
		for _, w := range decision.Warnings {
			detail = appendDetail(detail, fmt.Sprintf("warn:%s:%s", w.Check, w.Reason))
		}
	}

	s.auditor.EmitBestEffort(ctx, audit.Event{
		Timestamp:        now,
		Tenant:           st.req.Tenant,
		ContactID:        st.req.ContactID,
		Actor:            requestcontext.Actor(ctx),
		Action:           audit.ActionComplianceCheck,
		Channel:          string(st.req.Channel),
		CheckType:        checkType,
		Result:           result,
		Reason:           reason,
		Source:           outcome.source,
		Timezone:         decision.Timezone,
		PhoneFingerprint: phone.Fingerprint(st.canonical),
		Detail:           detail,
		RequestID:        requestcontext.RequestID(ctx),
	})
}

func appendDetail(existing, add string) string {
	if existing == "" {
		return add
	}
	return existing + "; " + add
}
