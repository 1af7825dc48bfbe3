// internal/service/order/domain/order.go
package domain

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Order 是订单聚合的根实体
type Order struct {
	ID              string
	ProductID       string
	ProductName     string
	Price           float64
	Quantity        int
	Status          Status
	CustomerName    string
	CustomerEmail   string
	ShippingAddress string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewOrder 根据创建事件构造订单，初始状态为 PENDING
func NewOrder(event *OrderCreated) (*Order, error) {
	if event == nil {
		return nil, errors.Wrap(ErrInvalidOrder, "event is nil")
	}
	var missing []string
	if event.OrderID == "" {
		missing = append(missing, "orderId")
	}
	if event.ProductID == "" {
		missing = append(missing, "productId")
	}
	if event.Quantity <= 0 {
		missing = append(missing, "quantity")
	}
	if event.Price < 0 {
		missing = append(missing, "price")
	}
	if len(missing) > 0 {
		return nil, errors.Wrapf(ErrInvalidOrder, "invalid fields: %s", strings.Join(missing, ","))
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &Order{
		ID:              event.OrderID,
		ProductID:       event.ProductID,
		ProductName:     event.ProductName,
		Price:           event.Price,
		Quantity:        event.Quantity,
		Status:          StatusPending,
		CustomerName:    event.CustomerName,
		CustomerEmail:   event.CustomerEmail,
		ShippingAddress: event.ShippingAddress,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}, nil
}

// TotalAmount 是本次需要扣款的金额
func (o *Order) TotalAmount() float64 {
	return o.Price * float64(o.Quantity)
}

func (o *Order) MarkAsCreated()    { o.transitionTo(StatusCreated) }
func (o *Order) MarkAsProcessing() { o.transitionTo(StatusProcessing) }
func (o *Order) MarkAsShipped()    { o.transitionTo(StatusShipped) }

// MarkAsFailed 将订单标记为失败，可以重复调用
func (o *Order) MarkAsFailed() { o.transitionTo(StatusFailed) }

// ChangeStatus 供人工修复使用，可以设置任意合法状态，不检查流转顺序。
func (o *Order) ChangeStatus(s Status) error {
	if !s.IsValid() {
		return errors.Wrapf(ErrInvalidStatus, "%q", string(s))
	}
	o.transitionTo(s)
	return nil
}

func (o *Order) transitionTo(s Status) {
	o.Status = s
	o.UpdatedAt = time.Now().UTC()
}

// Clone 返回一个浅拷贝，仓储实现用它避免调用方修改内部数据。
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}
