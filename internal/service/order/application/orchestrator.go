// internal/service/order/application/orchestrator.go
package application

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/metrics"
	engine "orderflow/internal/pkg/saga"
	"orderflow/internal/service/order/application/saga"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

// ErrInitialCheckFailed 表示 saga 开始前的商品检查没有通过
var ErrInitialCheckFailed = errors.New("initial product check failed")

// SagaOrchestrator 是订单履约 saga 的唯一入口
type SagaOrchestrator interface {
	ProcessOrder(ctx context.Context, order *domain.Order) *engine.Result[domain.OrderSagaData]
}

// OrderSagaOrchestrator 组装扣款、扣库存、更新订单三个步骤，交给协调器执行，
// 并根据结果完成订单的最终状态。
type OrderSagaOrchestrator struct {
	orders      domain.OrderRepository
	catalog     port.ProductCatalog
	admission   port.AdmissionPolicy
	deps        saga.Dependencies
	coordinator *engine.Coordinator[domain.OrderSagaData]
	tracer      trace.Tracer
}

var _ SagaOrchestrator = (*OrderSagaOrchestrator)(nil)

// OrchestratorConfig 汇总编排器的依赖，Admission、Metrics、Tracer 可以为空
type OrchestratorConfig struct {
	Orders    domain.OrderRepository
	Catalog   port.ProductCatalog
	Payments  port.PaymentService
	Stock     port.StockService
	Admission port.AdmissionPolicy
	Metrics   metrics.Metrics
	Tracer    trace.Tracer
}

func NewOrderSagaOrchestrator(cfg OrchestratorConfig) *OrderSagaOrchestrator {
	if cfg.Metrics == nil {
		cfg.Metrics = &metrics.NoopMetrics{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("orderflow/order-service")
	}
	return &OrderSagaOrchestrator{
		orders:    cfg.Orders,
		catalog:   cfg.Catalog,
		admission: cfg.Admission,
		deps: saga.Dependencies{
			Orders:   cfg.Orders,
			Payments: cfg.Payments,
			Stock:    cfg.Stock,
			Metrics:  cfg.Metrics,
		},
		coordinator: engine.NewCoordinator[domain.OrderSagaData](saga.Name,
			engine.WithTracer[domain.OrderSagaData](cfg.Tracer),
			engine.WithMetrics[domain.OrderSagaData](cfg.Metrics),
		),
		tracer: cfg.Tracer,
	}
}

// ProcessOrder 运行订单履约 saga。
// 前置检查失败时订单直接置为 FAILED，不执行任何步骤；saga 成功后订单置为 SHIPPED，
// 这次写入失败只记录审计日志，结果仍然是成功。saga 失败时这里不再写订单。
func (o *OrderSagaOrchestrator) ProcessOrder(ctx context.Context, order *domain.Order) *engine.Result[domain.OrderSagaData] {
	ctx, span := o.tracer.Start(ctx, "app.ProcessOrder", trace.WithAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("product.id", order.ProductID),
	))
	defer span.End()

	log := logger.Ctx(ctx).With().Str("order_id", order.ID).Logger()
	log.Info().Str("product_id", order.ProductID).Msg("starting order saga")

	if reason, ok := o.initialCheck(ctx, order); !ok {
		span.SetStatus(codes.Error, reason)
		return o.rejectOrder(ctx, order, reason)
	}

	sc, err := saga.NewContext(order, o.deps)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to build saga")
		log.Error().Err(err).Msg("failed to build saga context")
		return engine.Failed(uuid.New(), domain.NewOrderSagaData(order), nil, "", err)
	}

	result := o.coordinator.Execute(ctx, sc)
	data := result.Data

	if !result.IsSuccessful {
		span.SetStatus(codes.Error, result.ErrorMessage)
		log.Warn().Str("failed_step", result.FailedStep).Str("error", result.ErrorMessage).Msg("order saga failed")
		return result
	}

	data.Order.MarkAsShipped()
	if err := o.orders.Update(ctx, data.Order); err != nil {
		span.RecordError(err, trace.WithAttributes(attribute.Bool("saga.finalization", true)))
		log.Error().Err(err).Msg("failed to persist final order status after successful saga")
		data.AddStepLog("Final update failed: %v", err)
		return result
	}
	data.AddStepLog("Order completed, status updated: %s", data.Order.Status)
	log.Info().Str("status", data.Order.Status.String()).Msg("order saga completed")
	return result
}

// initialCheck 查询商品信息，并在配置了准入规则时执行规则
func (o *OrderSagaOrchestrator) initialCheck(ctx context.Context, order *domain.Order) (string, bool) {
	details, err := o.catalog.GetDetails(ctx, order.ProductID)
	if err != nil {
		return err.Error(), false
	}
	if details == nil || !details.Success {
		if details != nil && details.ErrorMessage != "" {
			return details.ErrorMessage, false
		}
		return "product details unavailable", false
	}
	if o.admission == nil {
		return "", true
	}

	admitted, reason, err := o.admission.Admit(order, details)
	if err != nil {
		return errors.Wrap(err, "evaluate admission rule").Error(), false
	}
	if !admitted {
		if reason == "" {
			reason = "order rejected by admission rule"
		}
		return reason, false
	}
	return "", true
}

func (o *OrderSagaOrchestrator) rejectOrder(ctx context.Context, order *domain.Order, reason string) *engine.Result[domain.OrderSagaData] {
	log := logger.Ctx(ctx).With().Str("order_id", order.ID).Logger()
	log.Warn().Str("product_id", order.ProductID).Str("reason", reason).Msg("initial check failed, saga not started")

	data := domain.NewOrderSagaData(order)
	data.AddStepLog("Product lookup failed: %s", reason)

	order.MarkAsFailed()
	if err := o.orders.Update(ctx, order); err != nil {
		log.Error().Err(err).Msg("failed to persist failed status after initial check")
		data.AddStepLog("Order update failed: %v", err)
	}

	return engine.FailedWithMessage(uuid.New(), data, nil, saga.StepInitialCheck, reason, errors.Wrap(ErrInitialCheckFailed, reason))
}
