// internal/service/order/domain/state.go
package domain

// Status 定义了订单的生命周期状态
type Status string

const (
	StatusPending    Status = "PENDING"    // API 已受理，等待 worker 处理
	StatusCreated    Status = "CREATED"    // worker 已接收创建事件
	StatusProcessing Status = "PROCESSING" // 支付和库存都已完成，订单处理中
	StatusConfirmed  Status = "CONFIRMED"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
	StatusFailed     Status = "FAILED" // saga 失败或前置检查失败
	StatusReturned   Status = "RETURNED"
)

var knownStatuses = map[Status]string{
	StatusPending:    "Order received and waiting to be processed",
	StatusCreated:    "Order accepted for processing",
	StatusProcessing: "Your order is being processed",
	StatusConfirmed:  "Your order has been confirmed",
	StatusShipped:    "Your order has been shipped",
	StatusDelivered:  "Your order has been delivered",
	StatusCancelled:  "Your order has been cancelled",
	StatusFailed:     "Something went wrong with your order",
	StatusReturned:   "Your order has been returned",
}

// IsValid 判断状态值是否合法，用于校验从存储、消息或人工请求中读出的数据。
func (s Status) IsValid() bool {
	_, ok := knownStatuses[s]
	return ok
}

// Description 返回面向客户的状态说明
func (s Status) Description() string {
	if d, ok := knownStatuses[s]; ok {
		return d
	}
	return "Unknown status"
}

func (s Status) String() string { return string(s) }
