package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/coffeeshop/internal/model"
)

type placeOrderRequest struct {
	CoffeeID   string `json:"coffeeId" validate:"required"`
	MilkOption string `json:"milkOption" validate:"required,milk"`
}

// PlaceOrder оформляет заказ текущего пользователя.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), req.CoffeeID, model.MilkOption(req.MilkOption))
	if err != nil {
		h.writeError(w, "place order", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, o)
}

// GetMyOrders возвращает заказы текущего пользователя.
func (h *Handler) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	h.writeOrders(w, h.orders.ForCurrentUser())
}

// GetOrders возвращает все заказы.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	h.writeOrders(w, h.orders.Orders())
}

// GetActiveOrders возвращает заказы в очереди баристы.
func (h *Handler) GetActiveOrders(w http.ResponseWriter, r *http.Request) {
	h.writeOrders(w, h.orders.Active())
}

type statusRequest struct {
	Status string `json:"status" validate:"required,orderstatus"`
}

// UpdateOrderStatus меняет статус заказа.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.orders.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), model.OrderStatus(req.Status))
	if err != nil {
		h.writeError(w, "update order status", err)
		return
	}

	h.writeJSON(w, http.StatusOK, o)
}

func (h *Handler) writeOrders(w http.ResponseWriter, orders []model.Order) {
	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, orders)
}
