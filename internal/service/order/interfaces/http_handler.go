package interfaces

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/domain"
)

// OrderService 是 HTTP 层用到的应用服务方法
type OrderService interface {
	RequestOrderCreation(ctx context.Context, req *application.CreateOrderRequest) (*application.CreateOrderResponse, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status domain.Status) (*domain.Order, error)
}

// OrderHandler 封装了 order 服务的 HTTP 处理器
type OrderHandler struct {
	service  OrderService
	gatherer prometheus.Gatherer
}

// NewOrderHandler gatherer 为 nil 时使用 prometheus 默认注册表
func NewOrderHandler(service OrderService, gatherer prometheus.Gatherer) *OrderHandler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &OrderHandler{service: service, gatherer: gatherer}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("POST /orders", h.handleCreateOrder)
	mux.HandleFunc("GET /orders", h.handleListOrders)
	mux.HandleFunc("GET /orders/{id}", h.handleGetOrder)
	mux.HandleFunc("GET /orders/{id}/status", h.handleGetOrderStatus)
	mux.HandleFunc("PUT /orders/{id}/status", h.handleUpdateOrderStatus)
}

func extractContext(r *http.Request) context.Context {
	return otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := extractContext(r)

	var req application.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.RequestOrderCreation(ctx, &req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOrder) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Ctx(ctx).Error().Err(err).Msg("failed to accept order")
		http.Error(w, "failed to accept order", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := extractContext(r)
	order, err := h.service.GetOrder(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		logger.Ctx(ctx).Error().Err(err).Str("order_id", r.PathValue("id")).Msg("failed to load order")
		http.Error(w, "failed to load order", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, application.ToOrderResponse(order))
}

func (h *OrderHandler) handleGetOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := extractContext(r)
	id := r.PathValue("id")
	order, err := h.service.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		logger.Ctx(ctx).Error().Err(err).Str("order_id", id).Msg("failed to load order status")
		http.Error(w, "failed to load order", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, application.ToOrderStatusResponse(order))
}

func (h *OrderHandler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := extractContext(r)
	id := r.PathValue("id")

	var req application.UpdateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	order, err := h.service.UpdateOrderStatus(ctx, id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidStatus):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domain.ErrOrderNotFound):
			http.Error(w, "order not found", http.StatusNotFound)
		default:
			logger.Ctx(ctx).Error().Err(err).Str("order_id", id).Msg("failed to update order status")
			http.Error(w, "failed to update order status", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, application.ToOrderResponse(order))
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	ctx := extractContext(r)
	orders, err := h.service.ListOrders(ctx)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to list orders")
		http.Error(w, "failed to list orders", http.StatusInternalServerError)
		return
	}
	resp := make([]*application.OrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, application.ToOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
