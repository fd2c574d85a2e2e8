package store

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Recorder receives the outcome of every store call.
type Recorder interface {
	ObserveStoreOperation(operation string, duration time.Duration, err error)
}

// Instrumented wraps an Accessor with a span per call, operation metrics and an
// optional per-call timeout.
type Instrumented struct {
	next     Accessor
	recorder Recorder
	timeout  time.Duration
	tracer   trace.Tracer
}

// NewInstrumented wraps next. recorder may be nil; a zero timeout leaves calls
// bounded only by the request context.
func NewInstrumented(next Accessor, recorder Recorder, timeout time.Duration) *Instrumented {
	return &Instrumented{
		next:     next,
		recorder: recorder,
		timeout:  timeout,
		tracer:   otel.Tracer("staff-portal/store"),
	}
}

func (i *Instrumented) start(ctx context.Context, operation, path string) (context.Context, func(error)) {
	cancel := func() {}
	if i.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
	}
	ctx, span := i.tracer.Start(ctx, "store."+operation, trace.WithAttributes(
		attribute.String("store.operation", operation),
		attribute.String("store.path", path),
	))
	started := time.Now()
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		cancel()
		if i.recorder != nil {
			i.recorder.ObserveStoreOperation(operation, time.Since(started), err)
		}
	}
}

func (i *Instrumented) ReadAll(ctx context.Context, path string) (Snapshot, error) {
	ctx, done := i.start(ctx, "read_all", path)
	snapshot, err := i.next.ReadAll(ctx, path)
	done(err)
	return snapshot, err
}

func (i *Instrumented) ReadFiltered(ctx context.Context, path, field string, value any) ([]Child, error) {
	ctx, done := i.start(ctx, "read_filtered", path)
	children, err := i.next.ReadFiltered(ctx, path, field, value)
	done(err)
	return children, err
}

func (i *Instrumented) PushNew(ctx context.Context, path string, value any) (string, error) {
	ctx, done := i.start(ctx, "push_new", path)
	key, err := i.next.PushNew(ctx, path, value)
	done(err)
	return key, err
}

func (i *Instrumented) SetAt(ctx context.Context, path string, value any) error {
	ctx, done := i.start(ctx, "set_at", path)
	err := i.next.SetAt(ctx, path, value)
	done(err)
	return err
}

func (i *Instrumented) UpdateAt(ctx context.Context, path string, fields map[string]any) error {
	ctx, done := i.start(ctx, "update_at", path)
	err := i.next.UpdateAt(ctx, path, fields)
	done(err)
	return err
}

func (i *Instrumented) DeleteAt(ctx context.Context, path string) error {
	ctx, done := i.start(ctx, "delete_at", path)
	err := i.next.DeleteAt(ctx, path)
	done(err)
	return err
}
