package storefront

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/giantswarm/storefront/instrumentation"
	"github.com/giantswarm/storefront/internal/validation"
	"github.com/giantswarm/storefront/security"
	"github.com/giantswarm/storefront/storage"
)

// ServeOrders handles /api/orders.
//
//   - POST places an order (CSRF required, no session)
//   - GET lists orders (admin session)
//   - PUT changes an order's status (CSRF and admin session)
func (h *Handler) ServeOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "storefront.http.orders")
	defer span.End()
	r = r.WithContext(ctx)

	switch r.Method {
	case http.MethodPost:
		if h.requireCSRF(w, r, span) {
			h.placeOrder(w, r)
		}
	case http.MethodGet:
		if h.requireAdmin(w, r, span) {
			h.listOrders(w, r)
		}
	case http.MethodPut:
		if h.requireCSRF(w, r, span) && h.requireAdmin(w, r, span) {
			h.updateOrderStatus(w, r)
		}
	default:
		h.methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodPut)
	}
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := spanFromRequest(r)

	var req validation.OrderRequest
	if !h.decodeAndValidate(w, r, span, &req) {
		return
	}

	order := req.Order(h.server.newID(), h.server.clock.Now())
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrOrderID, order.ID))
	instrumentation.AddStorageAttributes(span, "create_order", "order")

	start := time.Now()
	err := h.server.orders.CreateOrder(ctx, order)
	h.recordStorage(ctx, "create_order", start, err)
	if err != nil {
		h.log(ctx).Error("Failed to save order", "error", err)
		instrumentation.RecordError(span, err)
		h.writeError(w, ErrInternal("Failed to save order to database"))
		return
	}

	h.metrics().RecordOrderPlaced(ctx)
	h.log(ctx).Info("Order placed", "order_id", order.ID, "items", len(order.Items))
	instrumentation.SetSpanSuccess(span)

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"orderId": order.ID,
		"message": "Order placed successfully",
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := spanFromRequest(r)
	instrumentation.AddStorageAttributes(span, "list_orders", "order")

	start := time.Now()
	orders, err := h.server.orders.ListOrders(ctx)
	h.recordStorage(ctx, "list_orders", start, err)
	if err != nil {
		h.log(ctx).Error("Failed to list orders", "error", err)
		instrumentation.RecordError(span, err)
		h.writeError(w, ErrInternal("Failed to fetch orders"))
		return
	}
	if orders == nil {
		orders = []*storage.Order{}
	}
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := spanFromRequest(r)

	var req validation.OrderStatusRequest
	if !h.decodeAndValidate(w, r, span, &req) {
		return
	}
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrOrderID, req.ID))
	instrumentation.AddStorageAttributes(span, "update_order_status", "order")

	start := time.Now()
	err := h.server.orders.UpdateOrderStatus(ctx, req.ID, storage.OrderStatus(req.Status), h.server.clock.Now())
	h.recordStorage(ctx, "update_order_status", start, err)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, ErrNotFound("Order not found"))
			return
		}
		h.log(ctx).Error("Failed to update order status", "order_id", req.ID, "error", err)
		instrumentation.RecordError(span, err)
		h.writeError(w, ErrInternal("Failed to update order"))
		return
	}

	h.server.Auditor.LogEvent(security.Event{
		Type:      security.EventOrderStatusChanged,
		ClientKey: h.server.clientKeys.ClientKey(r),
		Path:      r.URL.Path,
		RequestID: security.GetRequestID(ctx),
		Level:     slog.LevelInfo,
		Details: map[string]any{
			"order_id": req.ID,
			"status":   req.Status,
		},
	})
	instrumentation.SetSpanSuccess(span)

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Order updated successfully",
	})
}
