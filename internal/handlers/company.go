package handlers

import (
	"net/http"
	"strconv"

	"github.com/diewo77/go-pedidos/httpx"
	"github.com/diewo77/go-pedidos/internal/models"
	"github.com/diewo77/go-pedidos/internal/services"
	"github.com/diewo77/go-pedidos/internal/store"
	"github.com/diewo77/go-pedidos/result"
)

// CompanyHandler serves companies, advisors and clients from the local
// store.
type CompanyHandler struct {
	st    *store.Store
	state *services.AppState
}

func NewCompanyHandler(st *store.Store, state *services.AppState) *CompanyHandler {
	return &CompanyHandler{st: st, state: state}
}

func (h *CompanyHandler) Companies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.st.Companies(r.Context())
	if err != nil {
		httpx.WriteError(w, result.LocalStorage(err))
		return
	}
	if companies == nil {
		companies = []models.Company{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": companies})
}

func (h *CompanyHandler) Advisors(w http.ResponseWriter, r *http.Request) {
	advisors, err := h.st.Advisors(r.Context())
	if err != nil {
		httpx.WriteError(w, result.LocalStorage(err))
		return
	}
	if advisors == nil {
		advisors = []models.Advisor{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": advisors})
}

// Clients lists the clients of ?advisor_id=, or of the selected advisor.
func (h *CompanyHandler) Clients(w http.ResponseWriter, r *http.Request) {
	var advisorID uint
	if raw := r.URL.Query().Get("advisor_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_advisor_id", nil)
			return
		}
		advisorID = uint(id)
	} else if a, ok := h.state.Advisor(); ok {
		advisorID = a.AdvisorID
	} else {
		httpx.JSONError(w, http.StatusBadRequest, "advisor_not_selected", nil)
		return
	}
	clients, err := h.st.ClientsByAdvisor(r.Context(), advisorID)
	if err != nil {
		httpx.WriteError(w, result.LocalStorage(err))
		return
	}
	if clients == nil {
		clients = []models.Client{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": clients})
}
