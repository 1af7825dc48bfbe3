package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/service/order/domain/port"
)

const (
	productDetailsPath = "/api/products/%s"
	stockReducePath    = "/api/products/%s/stock/reduce"
	stockRestorePath   = "/api/products/%s/stock/restore"
)

type productResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	StockQuantity int     `json:"stockQuantity"`
	IsActive      bool    `json:"isActive"`
}

type stockRequest struct {
	Quantity int `json:"quantity"`
}

type stockResponse struct {
	Success        bool   `json:"success"`
	RemainingStock int    `json:"remainingStock"`
	ErrorMessage   string `json:"errorMessage"`
}

// ProductHTTPAdapter 通过商品目录服务的 HTTP 接口实现 port.ProductCatalog 和 port.StockService。
type ProductHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
}

var (
	_ port.ProductCatalog = (*ProductHTTPAdapter)(nil)
	_ port.StockService   = (*ProductHTTPAdapter)(nil)
)

func NewProductHTTPAdapter(client *httpclient.Client, baseURL string) *ProductHTTPAdapter {
	return &ProductHTTPAdapter{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (a *ProductHTTPAdapter) endpoint(pattern, productID string) string {
	return a.baseURL + fmt.Sprintf(pattern, url.PathEscape(productID))
}

// GetDetails 商品不存在时返回 Success=false，而不是错误
func (a *ProductHTTPAdapter) GetDetails(ctx context.Context, productID string) (*port.ProductDetails, error) {
	var resp productResponse
	err := a.client.GetJSON(ctx, a.endpoint(productDetailsPath, productID), &resp)
	if httpclient.IsStatus(err, http.StatusNotFound) {
		return &port.ProductDetails{
			ProductID:    productID,
			ErrorMessage: fmt.Sprintf("product %s not found", productID),
		}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get product %s", productID)
	}
	return &port.ProductDetails{
		Success:       true,
		ProductID:     resp.ID,
		Name:          resp.Name,
		Price:         resp.Price,
		StockQuantity: resp.StockQuantity,
		IsActive:      resp.IsActive,
	}, nil
}

func (a *ProductHTTPAdapter) ReduceStock(ctx context.Context, productID string, quantity int) (*port.StockResult, error) {
	return a.changeStock(ctx, stockReducePath, productID, quantity)
}

func (a *ProductHTTPAdapter) RestoreStock(ctx context.Context, productID string, quantity int) (*port.StockResult, error) {
	return a.changeStock(ctx, stockRestorePath, productID, quantity)
}

func (a *ProductHTTPAdapter) changeStock(ctx context.Context, pattern, productID string, quantity int) (*port.StockResult, error) {
	var resp stockResponse
	err := a.client.PostJSON(ctx, a.endpoint(pattern, productID), stockRequest{Quantity: quantity}, &resp)
	if err != nil {
		// 409 表示库存不足之类的业务拒绝
		var se *httpclient.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusConflict {
			return &port.StockResult{ErrorMessage: se.Body}, nil
		}
		return nil, errors.Wrapf(err, "change stock of %s", productID)
	}
	return &port.StockResult{
		Success:        resp.Success,
		RemainingStock: resp.RemainingStock,
		ErrorMessage:   resp.ErrorMessage,
	}, nil
}
