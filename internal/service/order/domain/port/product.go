package port

import (
	"context"
)

// ProductDetails 是商品目录服务返回的商品信息
type ProductDetails struct {
	Success       bool
	ProductID     string
	Name          string
	Price         float64
	StockQuantity int
	IsActive      bool
	ErrorMessage  string
}

// ProductCatalog 是商品目录服务的出站端口，只用于 saga 开始前的前置检查。
type ProductCatalog interface {
	GetDetails(ctx context.Context, productID string) (*ProductDetails, error)
}

// StockResult 是扣减或回补库存的结果
type StockResult struct {
	Success        bool
	RemainingStock int
	ErrorMessage   string
}

// StockService 是库存服务的出站端口。
type StockService interface {
	ReduceStock(ctx context.Context, productID string, quantity int) (*StockResult, error)
	RestoreStock(ctx context.Context, productID string, quantity int) (*StockResult, error)
}
