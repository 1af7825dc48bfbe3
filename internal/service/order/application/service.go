// internal/service/order/application/service.go
package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

// OrderApplicationService 处理订单的入站用例：受理下单请求、消费 OrderCreated 事件、查询订单。
type OrderApplicationService struct {
	orderRepo         domain.OrderRepository
	orchestrator      SagaOrchestrator
	publisher         domain.OrderEventPublisher
	notifier          port.NotificationProducer
	processingTimeout time.Duration
	tracer            trace.Tracer
}

func NewOrderApplicationService(orderRepo domain.OrderRepository, orchestrator SagaOrchestrator, publisher domain.OrderEventPublisher, notifier port.NotificationProducer, processingTimeout time.Duration, tracer trace.Tracer) *OrderApplicationService {
	if tracer == nil {
		tracer = otel.Tracer("orderflow/order-service")
	}
	return &OrderApplicationService{
		orderRepo: orderRepo, orchestrator: orchestrator,
		publisher: publisher, notifier: notifier,
		processingTimeout: processingTimeout, tracer: tracer,
	}
}

// RequestOrderCreation 以 PENDING 状态保存订单，并发送 OrderCreated 事件，由 worker 异步执行 saga。
func (s *OrderApplicationService) RequestOrderCreation(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.RequestOrderCreation")
	defer span.End()

	event := req.ToOrderCreatedEvent(uuid.New().String(), time.Now().UTC())
	order, err := domain.NewOrder(event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid order request")
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID))

	if err := s.orderRepo.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save pending order")
		return nil, errors.Wrap(err, "save pending order")
	}
	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish order created event")
		return nil, errors.Wrap(err, "publish order created event")
	}

	logger.Ctx(ctx).Info().Str("order_id", order.ID).Msg("order accepted and queued for fulfillment")
	return &CreateOrderResponse{
		OrderID: order.ID,
		Status:  order.Status,
		Message: "Your order is being processed.",
	}, nil
}

// HandleOrderCreated 是 OrderCreated 事件的处理入口，由 Kafka 消费适配器调用。
// saga 失败属于业务结果，不返回错误；只有读写订单失败才返回错误，交给消费端做失败处理。
func (s *OrderApplicationService) HandleOrderCreated(ctx context.Context, event *domain.OrderCreated) error {
	ctx, span := s.tracer.Start(ctx, "app.HandleOrderCreated", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(attribute.String("order.id", event.OrderID))

	processingCtx, cancel := context.WithTimeout(ctx, s.processingTimeout)
	defer cancel()

	log := logger.Ctx(ctx).With().Str("order_id", event.OrderID).Logger()

	order, err := s.loadOrCreate(processingCtx, event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load order")
		return err
	}

	order.MarkAsCreated()
	if err := s.orderRepo.Update(processingCtx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to mark order as created")
		return errors.Wrapf(err, "mark order %s as created", order.ID)
	}
	log.Info().Msg("order status set to CREATED, starting saga")

	result := s.orchestrator.ProcessOrder(processingCtx, order)
	if result.IsSuccessful {
		log.Info().Strs("completed_steps", result.CompletedSteps).Str("saga_id", result.SagaID.String()).Msg("order saga succeeded")
		if err := s.notifier.SendOrderConfirmed(processingCtx, order); err != nil {
			log.Error().Err(err).Msg("failed to send order confirmation")
		}
		return nil
	}

	span.SetStatus(codes.Error, result.ErrorMessage)
	ev := log.Warn().
		Str("saga_id", result.SagaID.String()).
		Str("failed_step", result.FailedStep).
		Str("error", result.ErrorMessage).
		Strs("completed_steps", result.CompletedSteps)
	if result.Data != nil {
		ev = ev.Strs("step_logs", result.Data.StepLogs)
	}
	ev.Msg("order saga failed")

	// 部分失败路径已经写过 FAILED，这里重复写入同一个终态值，不受处理超时限制。
	finalCtx := context.WithoutCancel(processingCtx)
	order.MarkAsFailed()
	if err := s.orderRepo.Update(finalCtx, order); err != nil {
		span.RecordError(err, trace.WithAttributes(attribute.Bool("critical.error", true)))
		log.Error().Err(err).Msg("CRITICAL: failed to mark order as FAILED after saga failure")
		return errors.Wrapf(err, "mark order %s as failed", order.ID)
	}
	if err := s.notifier.SendOrderFailed(finalCtx, order, result.FailedStep, result.ErrorMessage); err != nil {
		log.Error().Err(err).Msg("failed to send order failure notification")
	}
	return nil
}

func (s *OrderApplicationService) loadOrCreate(ctx context.Context, event *domain.OrderCreated) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, event.OrderID)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, domain.ErrOrderNotFound) {
		return nil, errors.Wrapf(err, "load order %s", event.OrderID)
	}

	order, err = domain.NewOrder(event)
	if err != nil {
		return nil, err
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, errors.Wrapf(err, "create order %s from event", event.OrderID)
	}
	logger.Ctx(ctx).Info().Str("order_id", order.ID).Msg("order was not stored yet, created from event")
	return order, nil
}

func (s *OrderApplicationService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.orderRepo.FindByID(ctx, id)
}

func (s *OrderApplicationService) ListOrders(ctx context.Context) ([]*domain.Order, error) {
	return s.orderRepo.List(ctx)
}

// UpdateOrderStatus 人工修改订单状态，用于补偿失败后的运维处理。
// 状态非法时返回 ErrInvalidStatus，订单不存在时返回 ErrOrderNotFound。
func (s *OrderApplicationService) UpdateOrderStatus(ctx context.Context, id string, status domain.Status) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.UpdateOrderStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status", string(status)),
	))
	defer span.End()

	if !status.IsValid() {
		err := errors.Wrapf(domain.ErrInvalidStatus, "%q", string(status))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load order")
		return nil, err
	}

	previous := order.Status
	if err := order.ChangeStatus(status); err != nil {
		return nil, err
	}
	if err := s.orderRepo.Update(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update order status")
		return nil, errors.Wrapf(err, "update status of order %s", id)
	}

	logger.Ctx(ctx).Warn().
		Str("order_id", id).
		Str("from", previous.String()).
		Str("to", status.String()).
		Msg("order status changed manually")
	return order, nil
}
