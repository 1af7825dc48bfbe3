// internal/service/order/application/dto.go
package application

import (
	"time"

	"orderflow/internal/service/order/domain"
)

// CreateOrderRequest 是创建订单用例的输入数据
type CreateOrderRequest struct {
	ProductID       string  `json:"productId"`
	ProductName     string  `json:"productName"`
	Price           float64 `json:"price"`
	Quantity        int     `json:"quantity"`
	CustomerName    string  `json:"customerName"`
	CustomerEmail   string  `json:"customerEmail"`
	ShippingAddress string  `json:"shippingAddress"`
}

// CreateOrderResponse 是创建订单用例的输出数据
type CreateOrderResponse struct {
	OrderID string        `json:"orderId"`
	Status  domain.Status `json:"status"`
	Message string        `json:"message"`
}

// OrderResponse 是查询接口返回的订单视图
type OrderResponse struct {
	ID              string        `json:"id"`
	ProductID       string        `json:"productId"`
	ProductName     string        `json:"productName"`
	Price           float64       `json:"price"`
	Quantity        int           `json:"quantity"`
	TotalAmount     float64       `json:"totalAmount"`
	Status          domain.Status `json:"status"`
	CustomerName    string        `json:"customerName"`
	CustomerEmail   string        `json:"customerEmail"`
	ShippingAddress string        `json:"shippingAddress"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// UpdateOrderStatusRequest 是人工修改状态接口的请求体
type UpdateOrderStatusRequest struct {
	Status domain.Status `json:"status"`
}

// OrderStatusResponse 是状态查询接口的返回
type OrderStatusResponse struct {
	OrderID           string        `json:"orderId"`
	Status            domain.Status `json:"status"`
	StatusDescription string        `json:"statusDescription"`
	LastUpdated       time.Time     `json:"lastUpdated"`
}

// ToOrderCreatedEvent 把请求转换为领域事件
func (req *CreateOrderRequest) ToOrderCreatedEvent(orderID string, at time.Time) *domain.OrderCreated {
	return &domain.OrderCreated{
		OrderID:         orderID,
		ProductID:       req.ProductID,
		ProductName:     req.ProductName,
		Price:           req.Price,
		Quantity:        req.Quantity,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		ShippingAddress: req.ShippingAddress,
		CreatedAt:       at,
	}
}

func ToOrderResponse(o *domain.Order) *OrderResponse {
	return &OrderResponse{
		ID:              o.ID,
		ProductID:       o.ProductID,
		ProductName:     o.ProductName,
		Price:           o.Price,
		Quantity:        o.Quantity,
		TotalAmount:     o.TotalAmount(),
		Status:          o.Status,
		CustomerName:    o.CustomerName,
		CustomerEmail:   o.CustomerEmail,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func ToOrderStatusResponse(o *domain.Order) *OrderStatusResponse {
	return &OrderStatusResponse{
		OrderID:           o.ID,
		Status:            o.Status,
		StatusDescription: o.Status.Description(),
		LastUpdated:       o.UpdatedAt,
	}
}
