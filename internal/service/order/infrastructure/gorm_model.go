package infrastructure

import (
	"time"

	"orderflow/internal/service/order/domain"
)

// OrderModel 对应数据库中的 orders 表
type OrderModel struct {
	ID              string        `gorm:"primaryKey;size:64"`
	ProductID       string        `gorm:"size:64;index"`
	ProductName     string        `gorm:"size:255"`
	Price           float64       `gorm:"type:decimal(12,2)"`
	Quantity        int
	Status          domain.Status `gorm:"size:32;index"`
	CustomerName    string        `gorm:"size:255"`
	CustomerEmail   string        `gorm:"size:255"`
	ShippingAddress string        `gorm:"type:text"`
	CreatedAt       time.Time     `gorm:"index"`
	UpdatedAt       time.Time
}

// TableName 指定 GORM 应该使用的表名
func (OrderModel) TableName() string {
	return "orders"
}
