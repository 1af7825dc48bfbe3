// internal/service/order/domain/repository.go
package domain

import "context"

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	// FindByID 不存在时返回 ErrOrderNotFound
	FindByID(ctx context.Context, id string) (*Order, error)

	Create(ctx context.Context, order *Order) error

	// Update 覆盖写订单的可变字段（状态、更新时间等）
	Update(ctx context.Context, order *Order) error

	List(ctx context.Context) ([]*Order, error)
}
