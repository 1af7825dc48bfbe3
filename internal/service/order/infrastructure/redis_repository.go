package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"orderflow/internal/service/order/domain"
)

const orderIndexKey = "orders:index"

// orderDocument 是订单在 Redis 中的 JSON 结构
type orderDocument struct {
	ID              string        `json:"id"`
	ProductID       string        `json:"productId"`
	ProductName     string        `json:"productName"`
	Price           float64       `json:"price"`
	Quantity        int           `json:"quantity"`
	Status          domain.Status `json:"status"`
	CustomerName    string        `json:"customerName"`
	CustomerEmail   string        `json:"customerEmail"`
	ShippingAddress string        `json:"shippingAddress"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// RedisOrderRepository 把订单保存为 order:{id} 下的 JSON 文档，
// orders:index 是按创建时间排序的 zset，用于列表查询。
type RedisOrderRepository struct {
	client redis.UniversalClient
}

var _ domain.OrderRepository = (*RedisOrderRepository)(nil)

func NewRedisOrderRepository(client redis.UniversalClient) *RedisOrderRepository {
	return &RedisOrderRepository{client: client}
}

func orderKey(id string) string {
	return fmt.Sprintf("order:{%s}", id)
}

func (r *RedisOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	raw, err := r.client.Get(ctx, orderKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.Wrapf(domain.ErrOrderNotFound, "order %s", id)
		}
		return nil, errors.Wrapf(err, "get order %s", id)
	}
	return decodeOrder(raw)
}

func (r *RedisOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	raw, err := encodeOrder(order)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, orderKey(order.ID), raw, 0).Result()
	if err != nil {
		return errors.Wrapf(err, "insert order %s", order.ID)
	}
	if !ok {
		return errors.Errorf("order %s already exists", order.ID)
	}
	err = r.client.ZAdd(ctx, orderIndexKey, redis.Z{
		Score:  float64(order.CreatedAt.UnixNano()),
		Member: order.ID,
	}).Err()
	return errors.Wrapf(err, "index order %s", order.ID)
}

// Update 覆盖已有的订单文档，订单不存在时返回 ErrOrderNotFound
func (r *RedisOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	raw, err := encodeOrder(order)
	if err != nil {
		return err
	}
	ok, err := r.client.SetXX(ctx, orderKey(order.ID), raw, 0).Result()
	if err != nil {
		return errors.Wrapf(err, "update order %s", order.ID)
	}
	if !ok {
		return errors.Wrapf(domain.ErrOrderNotFound, "order %s", order.ID)
	}
	return nil
}

// List 按创建时间倒序返回订单，索引中已失效的 id 会被跳过
func (r *RedisOrderRepository) List(ctx context.Context) ([]*domain.Order, error) {
	ids, err := r.client.ZRevRange(ctx, orderIndexKey, 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "read order index")
	}
	if len(ids) == 0 {
		return []*domain.Order{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = orderKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "load orders")
	}

	orders := make([]*domain.Order, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		order, err := decodeOrder([]byte(s))
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func encodeOrder(o *domain.Order) ([]byte, error) {
	raw, err := json.Marshal(orderDocument{
		ID:              o.ID,
		ProductID:       o.ProductID,
		ProductName:     o.ProductName,
		Price:           o.Price,
		Quantity:        o.Quantity,
		Status:          o.Status,
		CustomerName:    o.CustomerName,
		CustomerEmail:   o.CustomerEmail,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	})
	return raw, errors.Wrapf(err, "encode order %s", o.ID)
}

func decodeOrder(raw []byte) (*domain.Order, error) {
	var doc orderDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "decode order document")
	}
	return &domain.Order{
		ID:              doc.ID,
		ProductID:       doc.ProductID,
		ProductName:     doc.ProductName,
		Price:           doc.Price,
		Quantity:        doc.Quantity,
		Status:          doc.Status,
		CustomerName:    doc.CustomerName,
		CustomerEmail:   doc.CustomerEmail,
		ShippingAddress: doc.ShippingAddress,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}, nil
}
