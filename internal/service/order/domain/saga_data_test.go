package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderSagaData_AddStepLog(t *testing.T) {
	order, err := NewOrder(validEvent())
	require.NoError(t, err)

	data := NewOrderSagaData(order)
	data.now = func() time.Time { return time.Date(2024, 5, 1, 10, 30, 15, 0, time.UTC) }

	data.AddStepLog("payment succeeded, transaction %s", "T1")
	data.AddStepLog("plain 100% message")

	assert.Equal(t, []string{
		"[2024-05-01 10:30:15] payment succeeded, transaction T1",
		"[2024-05-01 10:30:15] plain 100% message",
	}, data.StepLogs)
}

func TestOrderSagaData_HasPendingPayment(t *testing.T) {
	order, err := NewOrder(validEvent())
	require.NoError(t, err)
	data := NewOrderSagaData(order)

	assert.False(t, data.HasPendingPayment())
	tx := "T1"
	data.PaymentTransactionID = &tx
	assert.True(t, data.HasPendingPayment())
	assert.Equal(t, "O1", data.OrderID)
	assert.Equal(t, "P1", data.ProductID)
	assert.Same(t, order, data.Order)
}
