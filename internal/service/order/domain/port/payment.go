package port

import (
	"context"
)

// ChargeRequest 是一次扣款请求
type ChargeRequest struct {
	OrderID       string
	Amount        float64
	CustomerName  string
	CustomerEmail string
}

// PaymentResult 是扣款结果。Success 为 false 时 ErrorMessage 说明原因。
type PaymentResult struct {
	Success       bool
	TransactionID string
	ErrorMessage  string
}

type RefundResult struct {
	Success             bool
	RefundTransactionID string
	ErrorMessage        string
}

// PaymentService 是支付网关的出站端口。
// 业务失败通过结果中的 Success 表达，网络等技术错误通过 error 返回。
type PaymentService interface {
	Charge(ctx context.Context, req ChargeRequest) (*PaymentResult, error)
	Refund(ctx context.Context, transactionID string, amount float64) (*RefundResult, error)
}
