package mq

import (
	"context"
	"strconv"

	"github.com/segmentio/kafka-go"

	"orderflow/internal/pkg/logger"
)

const (
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderError             = "x-error"
)

// FailureHandler 把处理失败的消息转发到死信 topic。
// dlq 为 nil 时只记录日志。
type FailureHandler struct {
	dlq MessageWriter
}

func NewFailureHandler(dlq MessageWriter) *FailureHandler {
	return &FailureHandler{dlq: dlq}
}

func (h *FailureHandler) Handle(ctx context.Context, msg kafka.Message, cause error) {
	log := logger.Ctx(ctx).With().
		Str("topic", msg.Topic).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Logger()

	if h == nil || h.dlq == nil {
		log.Error().Err(cause).Msg("message processing failed, no dead-letter topic configured")
		return
	}

	headers := append([]kafka.Header{}, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
		kafka.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: HeaderError, Value: []byte(cause.Error())},
	)
	if err := h.dlq.WriteMessages(ctx, kafka.Message{Key: msg.Key, Value: msg.Value, Headers: headers}); err != nil {
		log.Error().Err(err).AnErr("cause", cause).Msg("failed to forward message to dead-letter topic")
		return
	}
	log.Warn().Err(cause).Msg("message forwarded to dead-letter topic")
}
