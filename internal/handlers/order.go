package handlers

import (
	"net/http"
	"strconv"

	"github.com/diewo77/go-pedidos/httpx"
	"github.com/diewo77/go-pedidos/internal/models"
	"github.com/diewo77/go-pedidos/internal/services"
)

// OrderHandler exposes the local queue and confirmed orders.
type OrderHandler struct {
	queue  *services.OrderQueue
	orders *services.OrderService
	state  *services.AppState
}

func NewOrderHandler(queue *services.OrderQueue, orders *services.OrderService, state *services.AppState) *OrderHandler {
	return &OrderHandler{queue: queue, orders: orders, state: state}
}

// ListLocal returns the queued orders in queue order.
func (h *OrderHandler) ListLocal(w http.ResponseWriter, r *http.Request) {
	orders := h.queue.Orders()
	if orders == nil {
		orders = []models.Order{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": orders, "total": len(orders)})
}

// List returns the confirmed orders cached on this device.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	res := h.orders.ConfirmedOrders(r.Context())
	if res.OK && res.Value == nil {
		res.Value = []models.Order{}
	}
	respond(w, r, h.state, http.StatusOK, res)
}

// Create submits a draft: directly when online, queued otherwise.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var draft services.OrderDraft
	if !decodeJSON(w, r, &draft) {
		return
	}
	respond(w, r, h.state, http.StatusCreated, h.orders.Submit(r.Context(), draft))
}

// CreateLocal always queues the draft.
func (h *OrderHandler) CreateLocal(w http.ResponseWriter, r *http.Request) {
	var draft services.OrderDraft
	if !decodeJSON(w, r, &draft) {
		return
	}
	respond(w, r, h.state, http.StatusCreated, h.queue.AddLocalOrder(r.Context(), draft))
}

type quantityRequest struct {
	Quantity models.Quantity `json:"quantity"`
}

// UpdateLocalItem commits a quantity edit; any input is coerced.
func (h *OrderHandler) UpdateLocalItem(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	raw := strconv.Itoa(req.Quantity.Int())
	res := h.queue.UpdateLocalQuantity(r.Context(), r.PathValue("id"), r.PathValue("item"), raw)
	respond(w, r, h.state, http.StatusOK, res)
}

func (h *OrderHandler) DeleteLocal(w http.ResponseWriter, r *http.Request) {
	res := h.queue.RemoveLocalOrder(r.Context(), r.PathValue("id"))
	if res.OK {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respond(w, r, h.state, http.StatusOK, res)
}

type updateRequest struct {
	Items []services.LineEdit `json:"items"`
}

// Update changes quantities of a confirmed order.
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	respond(w, r, h.state, http.StatusOK, h.orders.UpdateOrder(r.Context(), r.PathValue("id"), req.Items))
}

func (h *OrderHandler) Print(w http.ResponseWriter, r *http.Request) {
	respond(w, r, h.state, http.StatusOK, h.orders.MarkPrinted(r.Context(), r.PathValue("id")))
}
