// internal/service/order/domain/event.go
package domain

import (
	"context"
	"time"
)

// OrderCreated 是 API 受理订单后发布到 Kafka 的事件，worker 收到后启动履约 saga
type OrderCreated struct {
	OrderID         string    `json:"orderId"`
	ProductID       string    `json:"productId"`
	ProductName     string    `json:"productName"`
	Price           float64   `json:"price"`
	Quantity        int       `json:"quantity"`
	CustomerName    string    `json:"customerName"`
	CustomerEmail   string    `json:"customerEmail"`
	ShippingAddress string    `json:"shippingAddress"`
	CreatedAt       time.Time `json:"createdAt"`
}

// NotificationKind 区分通知类型
type NotificationKind string

const (
	NotificationOrderConfirmed NotificationKind = "ORDER_CONFIRMED"
	NotificationOrderFailed    NotificationKind = "ORDER_FAILED"
)

// NotificationEvent 是发往通知服务的消息体
type NotificationEvent struct {
	Kind          NotificationKind `json:"kind"`
	OrderID       string           `json:"orderId"`
	CustomerName  string           `json:"customerName"`
	CustomerEmail string           `json:"customerEmail"`
	Message       string           `json:"message"`
	FailedStep    string           `json:"failedStep,omitempty"`
	At            time.Time        `json:"at"`
}

// OrderEventPublisher 把 OrderCreated 事件投递到消息队列
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *OrderCreated) error
}
