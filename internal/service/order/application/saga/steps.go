// Package saga 定义订单履约 saga 的三个步骤：扣款、扣库存、更新订单状态。
// 步骤只依赖显式注入的出站端口，不持有任何隐藏状态，所有中间结果都写在 OrderSagaData 中。
package saga

import (
	"github.com/pkg/errors"

	"orderflow/internal/pkg/metrics"
	engine "orderflow/internal/pkg/saga"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

const (
	// Name 是指标和日志中使用的 saga 名称
	Name = "order_fulfillment"

	StepInitialCheck = "Initial Check"
	StepPayment      = "Payment"
	StepStock        = "Stock"
	StepOrderUpdate  = "Order update"
)

var (
	ErrPaymentDeclined  = errors.New("payment declined")
	ErrStockUnavailable = errors.New("stock reduction rejected")
)

// Dependencies 是构造步骤所需的出站端口
type Dependencies struct {
	Orders   domain.OrderRepository
	Payments port.PaymentService
	Stock    port.StockService
	Metrics  metrics.Metrics
}

func (d Dependencies) metrics() metrics.Metrics {
	if d.Metrics == nil {
		return &metrics.NoopMetrics{}
	}
	return d.Metrics
}

// Steps 按执行顺序返回订单履约的全部步骤
func Steps(deps Dependencies) []engine.Step[domain.OrderSagaData] {
	return []engine.Step[domain.OrderSagaData]{
		PaymentStep(deps),
		StockStep(deps),
		OrderUpdateStep(deps),
	}
}

// NewContext 为一个订单构造全新的 saga 上下文，每次调用都分配独立的数据对象
func NewContext(order *domain.Order, deps Dependencies) (*engine.Context[domain.OrderSagaData], error) {
	sc := engine.NewContext(domain.NewOrderSagaData(order))
	for _, step := range Steps(deps) {
		if err := sc.AddStep(step); err != nil {
			return nil, err
		}
	}
	return sc, nil
}
