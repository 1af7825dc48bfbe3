// Package ordertest 提供订单服务各端口的内存实现，供测试使用。
package ordertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

// NewOrder 返回一个价格 125、数量 2 的订单，总金额 250
func NewOrder(id string) *domain.Order {
	now := time.Now().UTC()
	return &domain.Order{
		ID:              id,
		ProductID:       "P1",
		ProductName:     "Mechanical Keyboard",
		Price:           125,
		Quantity:        2,
		Status:          domain.StatusCreated,
		CustomerName:    "Ada Lovelace",
		CustomerEmail:   "ada@example.com",
		ShippingAddress: "12 Analytical St",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// OrderRepository 是线程安全的内存仓储，记录每个订单每次写入的状态。
type OrderRepository struct {
	mu      sync.Mutex
	orders  map[string]*domain.Order
	history map[string][]domain.Status

	FindErr   error
	CreateErr error
	// UpdateErr 返回非 nil 时本次写入失败，订单保持上一次写入的值
	UpdateErr func(o *domain.Order) error
}

var _ domain.OrderRepository = (*OrderRepository)(nil)

func NewOrderRepository(orders ...*domain.Order) *OrderRepository {
	r := &OrderRepository{orders: map[string]*domain.Order{}, history: map[string][]domain.Status{}}
	for _, o := range orders {
		r.orders[o.ID] = o.Clone()
	}
	return r
}

func (r *OrderRepository) FindByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FindErr != nil {
		return nil, r.FindErr
	}
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (r *OrderRepository) Create(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return r.CreateErr
	}
	r.orders[order.ID] = order.Clone()
	r.history[order.ID] = append(r.history[order.ID], order.Status)
	return nil
}

func (r *OrderRepository) Update(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UpdateErr != nil {
		if err := r.UpdateErr(order); err != nil {
			return err
		}
	}
	if _, ok := r.orders[order.ID]; !ok {
		return domain.ErrOrderNotFound
	}
	r.orders[order.ID] = order.Clone()
	r.history[order.ID] = append(r.history[order.ID], order.Status)
	return nil
}

func (r *OrderRepository) List(_ context.Context) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, o.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Status 返回最后一次成功写入的状态
func (r *OrderRepository) Status(id string) domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		return o.Status
	}
	return ""
}

// History 返回某个订单每次成功写入的状态
func (r *OrderRepository) History(id string) []domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Status(nil), r.history[id]...)
}

// FailUpdatesWithStatus 让写入指定状态的 Update 调用返回 err
func FailUpdatesWithStatus(status domain.Status, err error) func(o *domain.Order) error {
	return func(o *domain.Order) error {
		if o.Status == status {
			return err
		}
		return nil
	}
}

type Refund struct {
	TransactionID string
	Amount        float64
}

// PaymentService 默认扣款和退款都成功
type PaymentService struct {
	mu sync.Mutex

	ChargeResult *port.PaymentResult
	ChargeErr    error
	RefundResult *port.RefundResult
	RefundErr    error

	Charges []port.ChargeRequest
	Refunds []Refund
}

var _ port.PaymentService = (*PaymentService)(nil)

func (p *PaymentService) Charge(ctx context.Context, req port.ChargeRequest) (*port.PaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Charges = append(p.Charges, req)
	if p.ChargeErr != nil {
		return nil, p.ChargeErr
	}
	if p.ChargeResult != nil {
		return p.ChargeResult, nil
	}
	return &port.PaymentResult{Success: true, TransactionID: "TX-" + req.OrderID}, nil
}

func (p *PaymentService) Refund(ctx context.Context, transactionID string, amount float64) (*port.RefundResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Refunds = append(p.Refunds, Refund{TransactionID: transactionID, Amount: amount})
	if p.RefundErr != nil {
		return nil, p.RefundErr
	}
	if p.RefundResult != nil {
		return p.RefundResult, nil
	}
	return &port.RefundResult{Success: true, RefundTransactionID: "RF-" + transactionID}, nil
}

func (p *PaymentService) RefundCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Refunds)
}

type StockCall struct {
	ProductID string
	Quantity  int
}

// StockService 默认扣减和回补都成功
type StockService struct {
	mu sync.Mutex

	ReduceResult  *port.StockResult
	ReduceErr     error
	// ReduceBlocks 为 true 时扣减一直阻塞到 ctx 结束，模拟慢的库存服务
	ReduceBlocks  bool
	RestoreResult *port.StockResult
	RestoreErr    error

	Reductions   []StockCall
	Restorations []StockCall
}

var _ port.StockService = (*StockService)(nil)

func (s *StockService) ReduceStock(ctx context.Context, productID string, quantity int) (*port.StockResult, error) {
	if s.ReduceBlocks {
		<-ctx.Done()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reductions = append(s.Reductions, StockCall{ProductID: productID, Quantity: quantity})
	if s.ReduceErr != nil {
		return nil, s.ReduceErr
	}
	if s.ReduceResult != nil {
		return s.ReduceResult, nil
	}
	return &port.StockResult{Success: true, RemainingStock: 100 - quantity}, nil
}

func (s *StockService) RestoreStock(ctx context.Context, productID string, quantity int) (*port.StockResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Restorations = append(s.Restorations, StockCall{ProductID: productID, Quantity: quantity})
	if s.RestoreErr != nil {
		return nil, s.RestoreErr
	}
	if s.RestoreResult != nil {
		return s.RestoreResult, nil
	}
	return &port.StockResult{Success: true, RemainingStock: 100}, nil
}

// ProductCatalog 对未登记的商品返回一个在售、库存充足的结果
type ProductCatalog struct {
	Details map[string]*port.ProductDetails
	Err     error
}

var _ port.ProductCatalog = (*ProductCatalog)(nil)

func (c *ProductCatalog) GetDetails(_ context.Context, productID string) (*port.ProductDetails, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	if d, ok := c.Details[productID]; ok {
		return d, nil
	}
	return &port.ProductDetails{
		Success: true, ProductID: productID, Name: "Product " + productID,
		Price: 125, StockQuantity: 100, IsActive: true,
	}, nil
}

type FailedNotification struct {
	OrderID    string
	FailedStep string
	Reason     string
}

type Notifier struct {
	mu        sync.Mutex
	Err       error
	Confirmed []string
	Failed    []FailedNotification
}

var _ port.NotificationProducer = (*Notifier)(nil)

func (n *Notifier) SendOrderConfirmed(_ context.Context, order *domain.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Confirmed = append(n.Confirmed, order.ID)
	return n.Err
}

func (n *Notifier) SendOrderFailed(_ context.Context, order *domain.Order, failedStep, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Failed = append(n.Failed, FailedNotification{OrderID: order.ID, FailedStep: failedStep, Reason: reason})
	return n.Err
}

type Publisher struct {
	mu     sync.Mutex
	Err    error
	Events []*domain.OrderCreated
}

var _ domain.OrderEventPublisher = (*Publisher)(nil)

func (p *Publisher) PublishOrderCreated(_ context.Context, event *domain.OrderCreated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Events = append(p.Events, event)
	return nil
}
