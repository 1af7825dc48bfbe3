package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/service/order/domain/port"
)

const (
	chargePath = "/api/payments"
	refundPath = "/api/payments/%s/refund"
)

type chargeRequest struct {
	OrderID        string  `json:"orderId"`
	Amount         float64 `json:"amount"`
	CustomerName   string  `json:"customerName"`
	CustomerEmail  string  `json:"customerEmail"`
	IdempotencyKey string  `json:"idempotencyKey"`
}

type chargeResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
	ErrorMessage  string `json:"errorMessage"`
}

type refundRequest struct {
	Amount         float64 `json:"amount"`
	IdempotencyKey string  `json:"idempotencyKey"`
}

type refundResponse struct {
	Success             bool   `json:"success"`
	RefundTransactionID string `json:"refundTransactionId"`
	ErrorMessage        string `json:"errorMessage"`
}

// PaymentHTTPAdapter 实现了 port.PaymentService。
// 幂等键由订单号或交易号派生，网关据此去重重复请求。
type PaymentHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
}

var _ port.PaymentService = (*PaymentHTTPAdapter)(nil)

func NewPaymentHTTPAdapter(client *httpclient.Client, baseURL string) *PaymentHTTPAdapter {
	return &PaymentHTTPAdapter{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func idempotencyKey(kind, id string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(kind+":"+id)).String()
}

func (a *PaymentHTTPAdapter) Charge(ctx context.Context, req port.ChargeRequest) (*port.PaymentResult, error) {
	body := chargeRequest{
		OrderID:        req.OrderID,
		Amount:         req.Amount,
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		IdempotencyKey: idempotencyKey("charge", req.OrderID),
	}
	var resp chargeResponse
	if err := a.client.PostJSON(ctx, a.baseURL+chargePath, body, &resp); err != nil {
		// 402 是支付网关的拒付响应
		var se *httpclient.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusPaymentRequired {
			return &port.PaymentResult{ErrorMessage: se.Body}, nil
		}
		return nil, errors.Wrapf(err, "charge order %s", req.OrderID)
	}
	if resp.Success && resp.TransactionID == "" {
		return nil, errors.Errorf("payment gateway accepted order %s without a transaction id", req.OrderID)
	}
	return &port.PaymentResult{
		Success:       resp.Success,
		TransactionID: resp.TransactionID,
		ErrorMessage:  resp.ErrorMessage,
	}, nil
}

func (a *PaymentHTTPAdapter) Refund(ctx context.Context, transactionID string, amount float64) (*port.RefundResult, error) {
	body := refundRequest{Amount: amount, IdempotencyKey: idempotencyKey("refund", transactionID)}
	var resp refundResponse
	endpoint := a.baseURL + fmt.Sprintf(refundPath, url.PathEscape(transactionID))
	if err := a.client.PostJSON(ctx, endpoint, body, &resp); err != nil {
		return nil, errors.Wrapf(err, "refund transaction %s", transactionID)
	}
	return &port.RefundResult{
		Success:             resp.Success,
		RefundTransactionID: resp.RefundTransactionID,
		ErrorMessage:        resp.ErrorMessage,
	}, nil
}
