package saga

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/metrics"
)

const tracerName = "orderflow/saga"

// Coordinator 顺序执行 Context 中的步骤，失败时按相反顺序补偿已完成的步骤。
// 协调器本身不做超时和取消，ctx 只用于链路追踪和日志。
type Coordinator[T any] struct {
	name     string
	tracer   trace.Tracer
	metrics  metrics.Metrics
	listener func(sagaID uuid.UUID, t Transition)
}

type Option[T any] func(*Coordinator[T])

func WithTracer[T any](tracer trace.Tracer) Option[T] {
	return func(c *Coordinator[T]) { c.tracer = tracer }
}

func WithMetrics[T any](m metrics.Metrics) Option[T] {
	return func(c *Coordinator[T]) { c.metrics = m }
}

// WithTransitionListener 注册状态迁移回调，每次迁移同步调用。
func WithTransitionListener[T any](fn func(sagaID uuid.UUID, t Transition)) Option[T] {
	return func(c *Coordinator[T]) { c.listener = fn }
}

func NewCoordinator[T any](name string, opts ...Option[T]) *Coordinator[T] {
	c := &Coordinator[T]{
		name:    name,
		tracer:  otel.Tracer(tracerName),
		metrics: &metrics.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute 运行一次 saga。同一个 Context 只能执行一次，重复执行会直接返回失败结果。
func (c *Coordinator[T]) Execute(ctx context.Context, sc *Context[T]) *Result[T] {
	ctx, span := c.tracer.Start(ctx, "saga."+c.name, trace.WithAttributes(
		attribute.String("saga.id", sc.SagaID.String()),
		attribute.String("saga.name", c.name),
	))
	defer span.End()

	log := logger.Ctx(ctx).With().Str("saga", c.name).Str("saga_id", sc.SagaID.String()).Logger()

	steps, err := sc.freeze()
	if err != nil {
		log.Error().Err(err).Msg("saga context rejected")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Failed(sc.SagaID, sc.Data, nil, "", err)
	}

	begin := time.Now()
	c.metrics.SagaStarted(c.name)
	log.Info().Int("steps", len(steps)).Msg("saga started")

	completed := make([]string, 0, len(steps))
	for i, step := range steps {
		log.Debug().Str("step", step.Description).Int("index", i).Msg("executing saga step")

		ok, stepErr := c.invoke(ctx, "saga.step", step.Description, step.Execute, sc.Data)
		if ok && stepErr == nil {
			completed = append(completed, step.Description)
			log.Info().Str("step", step.Description).Msg("saga step completed")
			c.transition(sc.SagaID, StateRunning, StateRunning, i+1)
			continue
		}

		failure := &StepError{Step: step.Description, Err: stepErr}
		c.metrics.StepFailed(c.name, step.Description)
		log.Warn().Err(failure).Str("step", step.Description).Msg("saga step failed, starting compensation")
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Error())

		c.transition(sc.SagaID, StateRunning, StateRollingBack, i-1)
		c.rollback(ctx, &log, sc, steps, i)
		c.transition(sc.SagaID, StateRollingBack, StateFailed, -1)
		c.metrics.SagaFinished(c.name, false, time.Since(begin))
		return Failed(sc.SagaID, sc.Data, completed, step.Description, failure)
	}

	c.transition(sc.SagaID, StateRunning, StateSucceeded, -1)
	c.metrics.SagaFinished(c.name, true, time.Since(begin))
	log.Info().Strs("completed_steps", completed).Msg("saga completed")
	return Succeeded(sc.SagaID, sc.Data, completed)
}

// rollback 从 failedIndex-1 补偿到 0。补偿失败只记录日志，不会中断回滚。
// 补偿不受调用方超时和取消影响，trace 和 logger 等值照常保留。
func (c *Coordinator[T]) rollback(ctx context.Context, log *zerolog.Logger, sc *Context[T], steps []Step[T], failedIndex int) {
	ctx = context.WithoutCancel(ctx)
	for j := failedIndex - 1; j >= 0; j-- {
		step := steps[j]

		ok, err := c.invoke(ctx, "saga.compensate", step.Description, step.Compensate, sc.Data)
		c.metrics.CompensationExecuted(c.name, step.Description)
		switch {
		case err != nil:
			c.metrics.CompensationFollowUp(c.name, step.Description)
			log.Error().Err(err).Str("step", step.Description).Msg("compensation raised an error, continuing rollback")
		case !ok:
			c.metrics.CompensationFollowUp(c.name, step.Description)
			log.Warn().Str("step", step.Description).Msg("compensation reported failure, continuing rollback")
		default:
			log.Info().Str("step", step.Description).Msg("compensation completed")
		}
		c.transition(sc.SagaID, StateRollingBack, StateRollingBack, j-1)
	}
	log.Info().Int("failed_index", failedIndex).Msg("rollback finished")
}

// invoke 在独立的 span 中执行动作，并把 panic 转换成错误。
func (c *Coordinator[T]) invoke(ctx context.Context, spanName, description string, action Action[T], data *T) (ok bool, err error) {
	ctx, span := c.tracer.Start(ctx, spanName+"."+description, trace.WithAttributes(
		attribute.String("saga.step", description),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = errors.Wrapf(ErrStepPanic, "%v", r)
		}
		if err != nil {
			ok = false
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if !ok {
			span.SetStatus(codes.Error, "action reported failure")
		}
	}()

	if action == nil {
		return true, nil
	}
	return action(ctx, data)
}

func (c *Coordinator[T]) transition(sagaID uuid.UUID, from, to State, index int) {
	if c.listener != nil {
		c.listener(sagaID, Transition{From: from, To: to, Index: index})
	}
}
