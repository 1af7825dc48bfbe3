package saga

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/logger"
	engine "orderflow/internal/pkg/saga"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

type stockStep struct {
	stock port.StockService
	deps  Dependencies
}

// StockStep 按订单数量扣减库存，补偿时回补实际扣减的数量。
func StockStep(deps Dependencies) engine.Step[domain.OrderSagaData] {
	s := &stockStep{stock: deps.Stock, deps: deps}
	return engine.Step[domain.OrderSagaData]{
		Description: StepStock,
		Execute:     s.execute,
		Compensate:  s.compensate,
	}
}

func (s *stockStep) execute(ctx context.Context, data *domain.OrderSagaData) (bool, error) {
	qty := data.Order.Quantity
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("product.id", data.ProductID),
		attribute.Int("stock.quantity", qty),
	)

	res, err := s.stock.ReduceStock(ctx, data.ProductID, qty)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", data.OrderID).Str("product_id", data.ProductID).Msg("stock reduction raised an error")
		data.AddStepLog("Stock reduction error: %v", err)
		return false, errors.Wrap(err, "reduce stock")
	}
	if res == nil || !res.Success {
		reason := stockReason(res, "stock reduction rejected")
		logger.Ctx(ctx).Warn().Str("order_id", data.OrderID).Str("product_id", data.ProductID).Str("reason", reason).Msg("stock reduction failed")
		data.AddStepLog("Stock reduction failed: %s", reason)
		return false, errors.Wrap(ErrStockUnavailable, reason)
	}

	data.StockReduced = true
	data.ReducedQuantity = qty
	data.AddStepLog("Stock reduced for product %s by %d, remaining %d", data.ProductID, qty, res.RemainingStock)
	return true, nil
}

func (s *stockStep) compensate(ctx context.Context, data *domain.OrderSagaData) (bool, error) {
	if !data.StockReduced {
		return true, nil
	}

	log := logger.Ctx(ctx).With().Str("order_id", data.OrderID).Str("product_id", data.ProductID).Logger()
	log.Info().Int("quantity", data.ReducedQuantity).Msg("restoring stock")

	res, err := s.stock.RestoreStock(ctx, data.ProductID, data.ReducedQuantity)
	if err != nil || res == nil || !res.Success {
		reason := stockReason(res, "stock restoration rejected")
		if err != nil {
			reason = err.Error()
		}
		log.Warn().Str("reason", reason).Msg("stock restoration failed, manual follow-up required")
		data.AddStepLog("Stock restoration failed for product %s, quantity %d: %s", data.ProductID, data.ReducedQuantity, reason)
		s.deps.metrics().CompensationFollowUp(Name, StepStock)
		return true, nil
	}

	data.AddStepLog("Stock restored for product %s by %d, remaining %d", data.ProductID, data.ReducedQuantity, res.RemainingStock)
	data.StockReduced = false
	data.ReducedQuantity = 0
	return true, nil
}

func stockReason(res *port.StockResult, fallback string) string {
	if res == nil || res.ErrorMessage == "" {
		return fallback
	}
	return res.ErrorMessage
}
