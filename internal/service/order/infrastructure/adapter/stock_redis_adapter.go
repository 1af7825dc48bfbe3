package adapter

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"orderflow/internal/service/order/domain/port"
)

// KEYS[1]: 库存 key，例如 stock:{P1}
// ARGV[1]: 扣减数量
// 返回 {code, remaining}，code 1 成功，0 库存不足，-1 商品未初始化库存
var reduceStockScript = redis.NewScript(`
local stock = tonumber(redis.call('get', KEYS[1]))
if not stock then
    return {-1, 0}
end
local qty = tonumber(ARGV[1])
if stock < qty then
    return {0, stock}
end
local remaining = redis.call('decrby', KEYS[1], qty)
return {1, remaining}
`)

// 回补只在 key 存在时生效，避免给未初始化的商品凭空造出库存
var restoreStockScript = redis.NewScript(`
if redis.call('exists', KEYS[1]) == 0 then
    return {-1, 0}
end
local remaining = redis.call('incrby', KEYS[1], tonumber(ARGV[1]))
return {1, remaining}
`)

// StockRedisAdapter 是 port.StockService 的 Redis 实现，扣减和回补都在 Lua 脚本中原子完成。
type StockRedisAdapter struct {
	client redis.Scripter
}

var _ port.StockService = (*StockRedisAdapter)(nil)

func NewStockRedisAdapter(client redis.Scripter) *StockRedisAdapter {
	return &StockRedisAdapter{client: client}
}

func stockKey(productID string) string {
	return fmt.Sprintf("stock:{%s}", productID)
}

func (a *StockRedisAdapter) ReduceStock(ctx context.Context, productID string, quantity int) (*port.StockResult, error) {
	code, remaining, err := a.run(ctx, reduceStockScript, productID, quantity)
	if err != nil {
		return nil, errors.Wrapf(err, "reduce stock of %s", productID)
	}
	switch code {
	case 1:
		return &port.StockResult{Success: true, RemainingStock: remaining}, nil
	case 0:
		return &port.StockResult{
			RemainingStock: remaining,
			ErrorMessage:   fmt.Sprintf("insufficient stock: requested %d, available %d", quantity, remaining),
		}, nil
	default:
		return &port.StockResult{ErrorMessage: fmt.Sprintf("no stock record for product %s", productID)}, nil
	}
}

func (a *StockRedisAdapter) RestoreStock(ctx context.Context, productID string, quantity int) (*port.StockResult, error) {
	code, remaining, err := a.run(ctx, restoreStockScript, productID, quantity)
	if err != nil {
		return nil, errors.Wrapf(err, "restore stock of %s", productID)
	}
	if code != 1 {
		return &port.StockResult{ErrorMessage: fmt.Sprintf("no stock record for product %s", productID)}, nil
	}
	return &port.StockResult{Success: true, RemainingStock: remaining}, nil
}

// PrepareStock (测试和管理用) 初始化商品库存
func (a *StockRedisAdapter) PrepareStock(ctx context.Context, productID string, stock int) error {
	cmdable, ok := a.client.(redis.Cmdable)
	if !ok {
		return errors.New("redis client does not support SET")
	}
	return errors.Wrapf(cmdable.Set(ctx, stockKey(productID), stock, 0).Err(), "prepare stock of %s", productID)
}

func (a *StockRedisAdapter) run(ctx context.Context, script *redis.Script, productID string, quantity int) (int64, int, error) {
	if quantity <= 0 {
		return 0, 0, errors.Errorf("quantity must be positive, got %d", quantity)
	}
	res, err := script.Run(ctx, a.client, []string{stockKey(productID)}, quantity).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(res) != 2 {
		return 0, 0, errors.Errorf("unexpected result from stock script: %v", res)
	}
	return res[0], int(res[1]), nil
}
