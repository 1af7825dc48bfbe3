package saga

import (
	"context"

	"github.com/pkg/errors"

	"orderflow/internal/pkg/logger"
	engine "orderflow/internal/pkg/saga"
	"orderflow/internal/service/order/domain"
)

type orderUpdateStep struct {
	orders domain.OrderRepository
}

// OrderUpdateStep 把订单置为 PROCESSING 并持久化；补偿时无条件置为 FAILED。
func OrderUpdateStep(deps Dependencies) engine.Step[domain.OrderSagaData] {
	s := &orderUpdateStep{orders: deps.Orders}
	return engine.Step[domain.OrderSagaData]{
		Description: StepOrderUpdate,
		Execute:     s.execute,
		Compensate:  s.compensate,
	}
}

func (s *orderUpdateStep) execute(ctx context.Context, data *domain.OrderSagaData) (bool, error) {
	data.Order.MarkAsProcessing()
	if err := s.orders.Update(ctx, data.Order); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", data.OrderID).Msg("failed to persist processing status")
		data.AddStepLog("Order update failed: %v", err)
		return false, errors.Wrap(err, "persist order status")
	}
	data.AddStepLog("Order status updated: %s", data.Order.Status)
	return true, nil
}

func (s *orderUpdateStep) compensate(ctx context.Context, data *domain.OrderSagaData) (bool, error) {
	data.Order.MarkAsFailed()
	if err := s.orders.Update(ctx, data.Order); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", data.OrderID).Msg("failed to persist failed status during compensation")
		data.AddStepLog("Order compensation update failed: %v", err)
		return false, errors.Wrap(err, "persist failed status")
	}
	data.AddStepLog("Order status updated: %s", domain.StatusFailed)
	return true, nil
}
