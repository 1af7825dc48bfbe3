package port

import (
	"context"

	"orderflow/internal/service/order/domain"
)

// NotificationProducer 负责把订单结果通知给客户。
type NotificationProducer interface {
	SendOrderConfirmed(ctx context.Context, order *domain.Order) error
	SendOrderFailed(ctx context.Context, order *domain.Order, failedStep, reason string) error
}
