package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"orderflow/internal/service/order/domain"
)

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

var _ domain.OrderRepository = (*GormOrderRepository)(nil)

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrOrderNotFound, "order %s", id)
		}
		return nil, errors.Wrapf(err, "query order %s", id)
	}
	return ToDomainOrder(&model), nil
}

func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if err := r.db.WithContext(ctx).Create(ToOrderModel(order)).Error; err != nil {
		return errors.Wrapf(err, "insert order %s", order.ID)
	}
	return nil
}

// Update 只更新订单的可变字段。DSN 开启了 clientFoundRows，RowsAffected 为 0 说明订单不存在。
func (r *GormOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	updates := map[string]interface{}{
		"status":     order.Status,
		"updated_at": order.UpdatedAt,
	}
	res := r.db.WithContext(ctx).Model(&OrderModel{}).Where("id = ?", order.ID).Updates(updates)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update order %s", order.ID)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(domain.ErrOrderNotFound, "order %s", order.ID)
	}
	return nil
}

func (r *GormOrderRepository) List(ctx context.Context) ([]*domain.Order, error) {
	var models []OrderModel
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	orders := make([]*domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, ToDomainOrder(&models[i]))
	}
	return orders, nil
}
