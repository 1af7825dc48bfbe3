package domain

import (
	"fmt"
	"time"
)

const stepLogTimeLayout = "2006-01-02 15:04:05"

// OrderSagaData 是订单履约 saga 的共享数据。
// PaymentTransactionID 非空表示已扣款且尚未退款；StockReduced 为 true 表示库存尚未回补。
type OrderSagaData struct {
	OrderID              string
	ProductID            string
	Order                *Order
	PaymentTransactionID *string
	StockReduced         bool
	ReducedQuantity      int
	StepLogs             []string

	now func() time.Time
}

func NewOrderSagaData(order *Order) *OrderSagaData {
	return &OrderSagaData{
		OrderID:   order.ID,
		ProductID: order.ProductID,
		Order:     order,
		StepLogs:  []string{},
	}
}

// AddStepLog 追加一条带时间戳的审计日志
func (d *OrderSagaData) AddStepLog(format string, args ...any) {
	now := time.Now
	if d.now != nil {
		now = d.now
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	d.StepLogs = append(d.StepLogs, fmt.Sprintf("[%s] %s", now().UTC().Format(stepLogTimeLayout), msg))
}

func (d *OrderSagaData) HasPendingPayment() bool {
	return d.PaymentTransactionID != nil && *d.PaymentTransactionID != ""
}
