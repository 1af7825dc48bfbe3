package saga

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
	"orderflow/internal/service/order/ordertest"
)

type followUpCounter struct {
	followUps map[string]int
}

func (c *followUpCounter) SagaStarted(string)                       {}
func (c *followUpCounter) SagaFinished(string, bool, time.Duration) {}
func (c *followUpCounter) StepFailed(string, string)                {}
func (c *followUpCounter) CompensationExecuted(string, string)      {}
func (c *followUpCounter) CompensationFollowUp(_ string, step string) {
	if c.followUps == nil {
		c.followUps = map[string]int{}
	}
	c.followUps[step]++
}

type fixture struct {
	orders   *ordertest.OrderRepository
	payments *ordertest.PaymentService
	stock    *ordertest.StockService
	metrics  *followUpCounter
	deps     Dependencies
	data     *domain.OrderSagaData
}

func newFixture() *fixture {
	order := ordertest.NewOrder("O1")
	f := &fixture{
		orders:   ordertest.NewOrderRepository(order),
		payments: &ordertest.PaymentService{},
		stock:    &ordertest.StockService{},
		metrics:  &followUpCounter{},
	}
	f.deps = Dependencies{Orders: f.orders, Payments: f.payments, Stock: f.stock, Metrics: f.metrics}
	f.data = domain.NewOrderSagaData(order)
	return f
}

func TestPaymentStep_ExecuteCharges(t *testing.T) {
	f := newFixture()
	step := PaymentStep(f.deps)

	ok, err := step.Execute(context.Background(), f.data)
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, f.payments.Charges, 1)
	assert.Equal(t, port.ChargeRequest{
		OrderID: "O1", Amount: 250, CustomerName: "Ada Lovelace", CustomerEmail: "ada@example.com",
	}, f.payments.Charges[0])
	require.NotNil(t, f.data.PaymentTransactionID)
	assert.Equal(t, "TX-O1", *f.data.PaymentTransactionID)
	require.Len(t, f.data.StepLogs, 1)
	assert.Contains(t, f.data.StepLogs[0], "Payment succeeded, transaction TX-O1")
}

func TestPaymentStep_ExecuteDeclined(t *testing.T) {
	f := newFixture()
	f.payments.ChargeResult = &port.PaymentResult{Success: false, ErrorMessage: "card expired"}

	ok, err := PaymentStep(f.deps).Execute(context.Background(), f.data)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrPaymentDeclined))
	assert.Nil(t, f.data.PaymentTransactionID)
	assert.Contains(t, f.data.StepLogs[0], "Payment failed: card expired")
}

func TestPaymentStep_ExecuteTransportError(t *testing.T) {
	f := newFixture()
	cause := errors.New("connection refused")
	f.payments.ChargeErr = cause

	ok, err := PaymentStep(f.deps).Execute(context.Background(), f.data)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, cause))
	assert.Nil(t, f.data.PaymentTransactionID)
}

func TestPaymentStep_CompensateWithoutTransactionIsNoop(t *testing.T) {
	f := newFixture()

	ok, err := PaymentStep(f.deps).Compensate(context.Background(), f.data)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, f.payments.Refunds)
}

func TestPaymentStep_CompensateIsIdempotent(t *testing.T) {
	f := newFixture()
	step := PaymentStep(f.deps)
	_, err := step.Execute(context.Background(), f.data)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		ok, err := step.Compensate(context.Background(), f.data)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	assert.Equal(t, []ordertest.Refund{{TransactionID: "TX-O1", Amount: 250}}, f.payments.Refunds)
	assert.Nil(t, f.data.PaymentTransactionID)
	assert.Contains(t, f.data.StepLogs[len(f.data.StepLogs)-1], "Refund issued for transaction TX-O1, refund transaction RF-TX-O1")
}

func TestPaymentStep_RefundFailureKeepsTransaction(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(p *ordertest.PaymentService)
		reason string
	}{
		{"rejected", func(p *ordertest.PaymentService) {
			p.RefundResult = &port.RefundResult{Success: false, ErrorMessage: "settlement window closed"}
		}, "settlement window closed"},
		{"transport error", func(p *ordertest.PaymentService) {
			p.RefundErr = errors.New("gateway unreachable")
		}, "gateway unreachable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f.payments)
			tx := "T1"
			f.data.PaymentTransactionID = &tx

			ok, err := PaymentStep(f.deps).Compensate(context.Background(), f.data)
			require.NoError(t, err)
			assert.True(t, ok, "a failed refund is still reported as a completed compensation")

			require.NotNil(t, f.data.PaymentTransactionID)
			assert.Equal(t, "T1", *f.data.PaymentTransactionID)
			assert.Equal(t, 1, f.metrics.followUps[StepPayment])
			assert.Contains(t, f.data.StepLogs[0], tt.reason)
		})
	}
}

func TestStockStep_Execute(t *testing.T) {
	f := newFixture()

	ok, err := StockStep(f.deps).Execute(context.Background(), f.data)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, f.data.StockReduced)
	assert.Equal(t, 2, f.data.ReducedQuantity)
	assert.Equal(t, []ordertest.StockCall{{ProductID: "P1", Quantity: 2}}, f.stock.Reductions)
	assert.Contains(t, f.data.StepLogs[0], "remaining 98")
}

func TestStockStep_ExecuteFailure(t *testing.T) {
	f := newFixture()
	f.stock.ReduceResult = &port.StockResult{Success: false, ErrorMessage: "insufficient stock"}

	ok, err := StockStep(f.deps).Execute(context.Background(), f.data)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrStockUnavailable))
	assert.False(t, f.data.StockReduced)
	assert.Zero(t, f.data.ReducedQuantity)
}

func TestStockStep_CompensateOnlyWhenReduced(t *testing.T) {
	f := newFixture()
	ok, err := StockStep(f.deps).Compensate(context.Background(), f.data)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, f.stock.Restorations)
}

func TestStockStep_CompensateRestoresRecordedQuantity(t *testing.T) {
	f := newFixture()
	f.data.StockReduced = true
	f.data.ReducedQuantity = 3

	ok, err := StockStep(f.deps).Compensate(context.Background(), f.data)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []ordertest.StockCall{{ProductID: "P1", Quantity: 3}}, f.stock.Restorations)
	assert.False(t, f.data.StockReduced)
	assert.Zero(t, f.data.ReducedQuantity)
}

func TestStockStep_RestoreFailureLeavesFlags(t *testing.T) {
	f := newFixture()
	f.stock.RestoreErr = errors.New("redis down")
	f.data.StockReduced = true
	f.data.ReducedQuantity = 2

	ok, err := StockStep(f.deps).Compensate(context.Background(), f.data)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, f.data.StockReduced)
	assert.Equal(t, 2, f.data.ReducedQuantity)
	assert.Equal(t, 1, f.metrics.followUps[StepStock])
	assert.Contains(t, f.data.StepLogs[0], "redis down")
}

func TestOrderUpdateStep_Execute(t *testing.T) {
	f := newFixture()

	ok, err := OrderUpdateStep(f.deps).Execute(context.Background(), f.data)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.StatusProcessing, f.orders.Status("O1"))
	assert.Contains(t, f.data.StepLogs[0], "Order status updated: PROCESSING")
}

func TestOrderUpdateStep_ExecutePersistenceError(t *testing.T) {
	f := newFixture()
	f.orders.UpdateErr = func(*domain.Order) error { return errors.New("deadlock") }

	ok, err := OrderUpdateStep(f.deps).Execute(context.Background(), f.data)
	assert.False(t, ok)
	assert.Error(t, err)
	assert.Equal(t, domain.StatusCreated, f.orders.Status("O1"))
}

func TestOrderUpdateStep_CompensateIsUnconditional(t *testing.T) {
	f := newFixture()

	ok, err := OrderUpdateStep(f.deps).Compensate(context.Background(), f.data)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.StatusFailed, f.orders.Status("O1"))
}

func TestOrderUpdateStep_CompensateReportsPersistenceError(t *testing.T) {
	f := newFixture()
	f.orders.UpdateErr = func(*domain.Order) error { return errors.New("read only") }

	ok, err := OrderUpdateStep(f.deps).Compensate(context.Background(), f.data)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestNewContext_BuildsStepsInOrder(t *testing.T) {
	f := newFixture()
	sc, err := NewContext(f.data.Order, f.deps)
	require.NoError(t, err)

	var names []string
	for _, s := range sc.Steps() {
		names = append(names, s.Description)
	}
	assert.Equal(t, []string{StepPayment, StepStock, StepOrderUpdate}, names)
	assert.Equal(t, "O1", sc.Data.OrderID)
	assert.NotSame(t, f.data, sc.Data)
}
