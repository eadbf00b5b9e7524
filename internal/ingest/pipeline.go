// Package ingest is the producer-facing entry point: it turns request and
// operation events into stored samples.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"pulsecheck/internal/database/relational"
	"pulsecheck/internal/sqlnorm"
)

// RequestEvent is one finished HTTP request as reported by a producer.
type RequestEvent struct {
	Method     string
	Path       string
	OccurredAt time.Time // zero means now
	DurationMS float64
	Status     *int
	ViewMS     float64
	DBMS       float64
}

// OperationEvent is one timed unit of work. SQL is only read for sql operations.
type OperationEvent struct {
	RequestID        *int64
	Type             relational.OperationType
	Label            string
	SQL              *string
	CodebaseLocation string
	OccurredAt       time.Time
	DurationMS       float64
}

// Pipeline writes events through an EventStore.
type Pipeline struct {
	store relational.EventStore
	now   func() time.Time
}

// NewPipeline creates a pipeline over store.
func NewPipeline(store relational.EventStore) (*Pipeline, error) {
	if store == nil {
		return nil, errors.New("event store is required")
	}
	return &Pipeline{store: store, now: time.Now}, nil
}

// RecordRequest find-or-creates the route and appends the request sample.
func (p *Pipeline) RecordRequest(ctx context.Context, ev RequestEvent) (int64, error) {
	method := strings.ToUpper(strings.TrimSpace(ev.Method))
	if method == "" || ev.Path == "" {
		return 0, fmt.Errorf("request event needs method and path, got %q %q", ev.Method, ev.Path)
	}

	routeID, err := p.store.FindOrCreateRoute(ctx, method, ev.Path)
	if err != nil {
		return 0, fmt.Errorf("resolve route: %w", err)
	}

	id, err := p.store.InsertRequest(ctx, relational.Request{
		RouteID:    routeID,
		OccurredAt: p.at(ev.OccurredAt),
		DurationMS: ev.DurationMS,
		Status:     ev.Status,
		ViewMS:     ev.ViewMS,
		DBMS:       ev.DBMS,
	})
	if err != nil {
		return 0, fmt.Errorf("record request %s %s: %w", method, ev.Path, err)
	}
	return id, nil
}

// RecordOperation appends an operation sample. A sql operation with a
// non-empty statement is linked to the Query of its normalized shape.
func (p *Pipeline) RecordOperation(ctx context.Context, ev OperationEvent) (int64, error) {
	op := relational.Operation{
		RequestID:        ev.RequestID,
		OperationType:    ev.Type,
		Label:            ev.Label,
		CodebaseLocation: ev.CodebaseLocation,
		OccurredAt:       p.at(ev.OccurredAt),
		DurationMS:       ev.DurationMS,
	}
	if op.OperationType == "" {
		op.OperationType = relational.OpOther
	}

	if op.OperationType == relational.OpSQL {
		if shape := sqlnorm.Normalize(ev.SQL); shape != nil && *shape != "" {
			queryID, err := p.store.FindOrCreateQuery(ctx, *shape)
			if err != nil {
				return 0, fmt.Errorf("resolve query: %w", err)
			}
			op.QueryID = &queryID
			if op.Label == "" {
				op.Label = sqlnorm.Truncate(*shape)
			}
		}
	}

	id, err := p.store.InsertOperation(ctx, op)
	if err != nil {
		return 0, fmt.Errorf("record %s operation: %w", op.OperationType, err)
	}
	return id, nil
}

// RecordTrace records a request and then its operations linked to it. The
// request must succeed; operation failures are collected and do not stop the
// remaining operations.
func (p *Pipeline) RecordTrace(ctx context.Context, req RequestEvent, ops []OperationEvent) (int64, error) {
	requestID, err := p.RecordRequest(ctx, req)
	if err != nil {
		return 0, err
	}

	var errs error
	for _, op := range ops {
		op.RequestID = &requestID
		if op.OccurredAt.IsZero() {
			op.OccurredAt = req.OccurredAt
		}
		if _, err := p.RecordOperation(ctx, op); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		log.WithFields(log.Fields{"request_id": requestID, "failed": len(multierr.Errors(errs))}).Warn("trace recorded with failed operations")
	}
	return requestID, errs
}

func (p *Pipeline) at(t time.Time) time.Time {
	if t.IsZero() {
		return p.now().UTC()
	}
	return t.UTC()
}
