package infrastructure

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/mq"
	"orderflow/internal/service/order/domain"
)

// OrderProducerAdapter 把 OrderCreated 事件写入 order-created topic，以订单号为 key 保证同一订单有序。
type OrderProducerAdapter struct {
	writer mq.MessageWriter
}

var _ domain.OrderEventPublisher = (*OrderProducerAdapter)(nil)

func NewOrderProducerAdapter(writer mq.MessageWriter) *OrderProducerAdapter {
	return &OrderProducerAdapter{writer: writer}
}

func (p *OrderProducerAdapter) PublishOrderCreated(ctx context.Context, event *domain.OrderCreated) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal order created event")
	}
	if err := mq.ProduceMessage(ctx, p.writer, []byte(event.OrderID), eventBytes); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", event.OrderID).Msg("failed to publish order created event")
		return err
	}
	return nil
}
