package infrastructure

import "orderflow/internal/service/order/domain"

// ToDomainOrder 将数据库模型转换为领域模型
func ToDomainOrder(model *OrderModel) *domain.Order {
	if model == nil {
		return nil
	}
	return &domain.Order{
		ID:              model.ID,
		ProductID:       model.ProductID,
		ProductName:     model.ProductName,
		Price:           model.Price,
		Quantity:        model.Quantity,
		Status:          model.Status,
		CustomerName:    model.CustomerName,
		CustomerEmail:   model.CustomerEmail,
		ShippingAddress: model.ShippingAddress,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

// ToOrderModel 将领域模型转换为数据库模型
func ToOrderModel(order *domain.Order) *OrderModel {
	if order == nil {
		return nil
	}
	return &OrderModel{
		ID:              order.ID,
		ProductID:       order.ProductID,
		ProductName:     order.ProductName,
		Price:           order.Price,
		Quantity:        order.Quantity,
		Status:          order.Status,
		CustomerName:    order.CustomerName,
		CustomerEmail:   order.CustomerEmail,
		ShippingAddress: order.ShippingAddress,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}
