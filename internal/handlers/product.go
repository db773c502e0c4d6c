package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/diewo77/go-pedidos/httpx"
	"github.com/diewo77/go-pedidos/internal/models"
	"github.com/diewo77/go-pedidos/internal/store"
	"github.com/diewo77/go-pedidos/result"
)

// ProductHandler serves the cached catalog.
type ProductHandler struct {
	st *store.Store
}

func NewProductHandler(st *store.Store) *ProductHandler {
	return &ProductHandler{st: st}
}

// List returns products, optionally filtered by ?q= on code or description.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.st.Products(r.Context())
	if err != nil {
		httpx.WriteError(w, result.LocalStorage(err))
		return
	}
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	if query != "" {
		filtered := products[:0]
		for _, p := range products {
			if strings.Contains(strings.ToLower(p.Description), query) || strings.Contains(strings.ToLower(p.Code), query) {
				filtered = append(filtered, p)
			}
		}
		products = filtered
	}
	if products == nil {
		products = []models.Product{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": products, "total": len(products)})
}

func (h *ProductHandler) View(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.st.Product(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		httpx.JSONError(w, http.StatusNotFound, "product_not_found", nil)
		return
	}
	if err != nil {
		httpx.WriteError(w, result.LocalStorage(err))
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}
