// internal/service/order/interfaces/order_creation_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/mq"
	"orderflow/internal/service/order/domain"
)

// MessageReader 是 *kafka.Reader 中消费者需要的部分
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderCreatedHandler 由应用服务实现
type OrderCreatedHandler interface {
	HandleOrderCreated(ctx context.Context, event *domain.OrderCreated) error
}

const fetchRetryDelay = time.Second

// OrderConsumerAdapter 是一个驱动适配器，它监听 order-created topic 并驱动应用服务。
type OrderConsumerAdapter struct {
	reader         MessageReader
	topic          string
	handler        OrderCreatedHandler
	failureHandler *mq.FailureHandler
	tracer         trace.Tracer
}

func NewOrderConsumerAdapter(reader MessageReader, topic string, handler OrderCreatedHandler, failureHandler *mq.FailureHandler) *OrderConsumerAdapter {
	return &OrderConsumerAdapter{
		reader:         reader,
		topic:          topic,
		handler:        handler,
		failureHandler: failureHandler,
		tracer:         otel.Tracer("orderflow/order-consumer"),
	}
}

// Run 阻塞消费直到 ctx 被取消。
// 处理失败的消息交给 FailureHandler 后照常提交 offset，不阻塞后续订单。
func (a *OrderConsumerAdapter) Run(ctx context.Context) error {
	log := logger.Ctx(ctx).With().Str("topic", a.topic).Logger()
	log.Info().Msg("order consumer started")
	defer log.Info().Msg("order consumer stopped")

	for {
		msg, err := a.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("could not fetch message, retrying")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(fetchRetryDelay):
			}
			continue
		}

		msgCtx := mq.ExtractContext(ctx, msg)
		if err := a.processMessage(msgCtx, msg); err != nil {
			a.failureHandler.Handle(msgCtx, msg, err)
		}

		if err := a.reader.CommitMessages(ctx, msg); err != nil {
			log.Error().Err(err).Int64("offset", msg.Offset).Msg("failed to commit message")
		}
	}
}

// Close 关闭底层 reader
func (a *OrderConsumerAdapter) Close() error {
	return a.reader.Close()
}

func (a *OrderConsumerAdapter) processMessage(ctx context.Context, msg kafka.Message) error {
	ctx, span := a.tracer.Start(ctx, "kafka.consume "+a.topic, trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", a.topic),
		attribute.Int64("messaging.kafka.offset", msg.Offset),
	)

	var event domain.OrderCreated
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "decode order created event")
	}
	if event.OrderID == "" {
		return errors.Wrap(domain.ErrInvalidOrder, "order created event without orderId")
	}
	span.SetAttributes(attribute.String("order.id", event.OrderID))

	if err := a.handler.HandleOrderCreated(ctx, &event); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
