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

type paymentStep struct {
	payments port.PaymentService
	deps     Dependencies
}

// PaymentStep 扣款 price × quantity，补偿时按同样金额退款。
func PaymentStep(deps Dependencies) engine.Step[domain.OrderSagaData] {
	s := &paymentStep{payments: deps.Payments, deps: deps}
	return engine.Step[domain.OrderSagaData]{
		Description: StepPayment,
		Execute:     s.execute,
		Compensate:  s.compensate,
	}
}

func (s *paymentStep) execute(ctx context.Context, data *domain.OrderSagaData) (bool, error) {
	span := trace.SpanFromContext(ctx)
	amount := data.Order.TotalAmount()
	span.SetAttributes(attribute.String("order.id", data.OrderID), attribute.Float64("payment.amount", amount))

	res, err := s.payments.Charge(ctx, port.ChargeRequest{
		OrderID:       data.OrderID,
		Amount:        amount,
		CustomerName:  data.Order.CustomerName,
		CustomerEmail: data.Order.CustomerEmail,
	})
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", data.OrderID).Msg("payment charge raised an error")
		data.AddStepLog("Payment error: %v", err)
		return false, errors.Wrap(err, "charge payment")
	}
	if res == nil || !res.Success {
		reason := failureReason(res)
		logger.Ctx(ctx).Warn().Str("order_id", data.OrderID).Str("reason", reason).Msg("payment declined")
		data.AddStepLog("Payment failed: %s", reason)
		return false, errors.Wrap(ErrPaymentDeclined, reason)
	}

	txID := res.TransactionID
	data.PaymentTransactionID = &txID
	data.AddStepLog("Payment succeeded, transaction %s, amount %.2f", txID, amount)
	span.AddEvent("payment captured", trace.WithAttributes(attribute.String("payment.transaction_id", txID)))
	return true, nil
}

// compensate 只在存在未退款的交易号时退款。退款失败保留交易号，等待人工处理，
// 但对协调器仍然报告补偿完成。
func (s *paymentStep) compensate(ctx context.Context, data *domain.OrderSagaData) (bool, error) {
	if !data.HasPendingPayment() {
		return true, nil
	}

	txID := *data.PaymentTransactionID
	amount := data.Order.TotalAmount()
	log := logger.Ctx(ctx).With().Str("order_id", data.OrderID).Str("transaction_id", txID).Logger()
	log.Info().Float64("amount", amount).Msg("refunding payment")

	res, err := s.payments.Refund(ctx, txID, amount)
	if err != nil || res == nil || !res.Success {
		reason := refundFailureReason(res, err)
		log.Warn().Str("reason", reason).Msg("refund failed, manual follow-up required")
		data.AddStepLog("Refund failed for transaction %s: %s", txID, reason)
		s.deps.metrics().CompensationFollowUp(Name, StepPayment)
		return true, nil
	}

	data.AddStepLog("Refund issued for transaction %s, refund transaction %s", txID, res.RefundTransactionID)
	data.PaymentTransactionID = nil
	return true, nil
}

func failureReason(res *port.PaymentResult) string {
	if res == nil || res.ErrorMessage == "" {
		return "payment service returned no result"
	}
	return res.ErrorMessage
}

func refundFailureReason(res *port.RefundResult, err error) string {
	switch {
	case err != nil:
		return err.Error()
	case res == nil || res.ErrorMessage == "":
		return "refund rejected"
	default:
		return res.ErrorMessage
	}
}
