package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/ordertest"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestNotificationKafkaAdapter(t *testing.T) {
	w := &recordingWriter{}
	a := NewNotificationKafkaAdapter(w)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return fixed }
	order := ordertest.NewOrder("O1")

	require.NoError(t, a.SendOrderConfirmed(context.Background(), order))
	require.NoError(t, a.SendOrderFailed(context.Background(), order, "Payment", "card declined"))
	require.Len(t, w.msgs, 2)

	var confirmed, failed domain.NotificationEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &confirmed))
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &failed))

	assert.Equal(t, []byte("O1"), w.msgs[0].Key)
	assert.Equal(t, domain.NotificationOrderConfirmed, confirmed.Kind)
	assert.Equal(t, order.CustomerEmail, confirmed.CustomerEmail)
	assert.True(t, fixed.Equal(confirmed.At))
	assert.Empty(t, confirmed.FailedStep)

	assert.Equal(t, domain.NotificationOrderFailed, failed.Kind)
	assert.Equal(t, "Payment", failed.FailedStep)
	assert.Contains(t, failed.Message, "card declined")
}

func TestNotificationKafkaAdapter_WriteError(t *testing.T) {
	a := NewNotificationKafkaAdapter(&recordingWriter{err: errors.New("broker down")})
	err := a.SendOrderConfirmed(context.Background(), ordertest.NewOrder("O1"))
	assert.ErrorContains(t, err, "send ORDER_CONFIRMED notification for order O1")
	assert.ErrorContains(t, err, "broker down")
}
