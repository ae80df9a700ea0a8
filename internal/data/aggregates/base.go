package aggregates

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/yungbote/questionbank/internal/domain/question"
	"github.com/yungbote/questionbank/internal/observability"
	"github.com/yungbote/questionbank/internal/pkg/dbctx"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

const tracerName = "github.com/yungbote/questionbank/internal/data/aggregates"

type BaseDeps struct {
	DB     *gorm.DB
	Log    *logger.Logger
	Runner TxRunner
	Hooks  Hooks
	Tracer trace.Tracer
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.Tracer == nil {
		d.Tracer = observability.Tracer(tracerName)
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	return d
}

// executeWrite runs fn in one transaction; any error rolls the whole transaction back.
func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	return execute(ctx, deps, op, "write", fn)
}

// executeRead runs fn in one transaction so every row-set it reads comes from the same snapshot.
func executeRead(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	return execute(ctx, deps, op, "read", fn)
}

func execute(ctx context.Context, deps BaseDeps, op, kind string, fn func(dbc dbctx.Context) error) error {
	start := time.Now()
	deps = deps.withDefaults()
	op = strings.TrimSpace(op)
	if op == "" {
		op = "question." + kind
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := deps.Tracer.Start(ctx, op, trace.WithAttributes(attribute.String("qb.op.kind", kind)))
	defer span.End()

	err := deps.Runner.InTx(ctx, fn)
	mapped := MapError(op, err)

	status := "success"
	if mapped != nil {
		status = operationStatus(mapped)
		switch question.CodeOf(mapped) {
		case question.CodeConstraintViolation:
			deps.Hooks.IncConstraintViolation(op)
		case question.CodeIOFailure:
			deps.Hooks.IncIOFailure(op)
		}
		span.RecordError(mapped)
		span.SetStatus(codes.Error, status)
	}
	span.SetAttributes(attribute.String("qb.status", status))
	deps.Hooks.ObserveOperation(op, status, time.Since(start))
	return mapped
}

func operationStatus(err error) string {
	if err == nil {
		return "success"
	}
	code := strings.TrimSpace(string(question.CodeOf(err)))
	if code == "" {
		code = strings.TrimSpace(string(question.CodeOf(MapError("aggregate.status", err))))
	}
	if code == "" {
		return "failure"
	}
	return code
}
