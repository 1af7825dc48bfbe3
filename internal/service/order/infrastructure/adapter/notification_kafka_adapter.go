package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"orderflow/internal/pkg/mq"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

// NotificationKafkaAdapter 实现了 port.NotificationProducer 接口。
type NotificationKafkaAdapter struct {
	writer mq.MessageWriter
	now    func() time.Time
}

var _ port.NotificationProducer = (*NotificationKafkaAdapter)(nil)

func NewNotificationKafkaAdapter(writer mq.MessageWriter) *NotificationKafkaAdapter {
	return &NotificationKafkaAdapter{writer: writer, now: func() time.Time { return time.Now().UTC() }}
}

func (a *NotificationKafkaAdapter) SendOrderConfirmed(ctx context.Context, order *domain.Order) error {
	return a.send(ctx, domain.NotificationEvent{
		Kind:          domain.NotificationOrderConfirmed,
		OrderID:       order.ID,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		Message: fmt.Sprintf("Your order %s for %d x %s has been confirmed and shipped.",
			order.ID, order.Quantity, order.ProductName),
	})
}

func (a *NotificationKafkaAdapter) SendOrderFailed(ctx context.Context, order *domain.Order, failedStep, reason string) error {
	return a.send(ctx, domain.NotificationEvent{
		Kind:          domain.NotificationOrderFailed,
		OrderID:       order.ID,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		Message:       fmt.Sprintf("Your order %s could not be completed: %s", order.ID, reason),
		FailedStep:    failedStep,
	})
}

func (a *NotificationKafkaAdapter) send(ctx context.Context, event domain.NotificationEvent) error {
	event.At = a.now()
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal notification event")
	}
	if err := mq.ProduceMessage(ctx, a.writer, []byte(event.OrderID), payload); err != nil {
		return errors.Wrapf(err, "send %s notification for order %s", event.Kind, event.OrderID)
	}
	return nil
}
