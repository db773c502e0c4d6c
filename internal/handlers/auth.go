package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-pedidos/auth"
	"github.com/diewo77/go-pedidos/httpx"
	"github.com/diewo77/go-pedidos/internal/models"
	"github.com/diewo77/go-pedidos/internal/services"
	"github.com/diewo77/go-pedidos/internal/store"
	"github.com/diewo77/go-pedidos/result"
)

// AuthHandler manages the session: login with a remote-issued token,
// logout, and the advisor/company selection.
type AuthHandler struct {
	st     *store.Store
	state  *services.AppState
	master *services.MasterDataSync
	sched  *services.Scheduler
	log    logrus.FieldLogger
}

func NewAuthHandler(st *store.Store, state *services.AppState, master *services.MasterDataSync, sched *services.Scheduler, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{st: st, state: state, master: master, sched: sched, log: log.WithField("module", "handlers")}
}

type loginRequest struct {
	Token string `json:"token"`
}

type sessionResponse struct {
	LoggedIn bool            `json:"logged_in"`
	Session  *auth.Session   `json:"session,omitempty"`
	Advisor  *models.Advisor `json:"advisor,omitempty"`
	Company  *models.Company `json:"company,omitempty"`
}

func (h *AuthHandler) current() sessionResponse {
	resp := sessionResponse{}
	if s, ok := h.state.Session(); ok {
		resp.LoggedIn = true
		resp.Session = &s
	}
	if a, ok := h.state.Advisor(); ok {
		resp.Advisor = &a
	}
	if c, ok := h.state.Company(); ok {
		resp.Company = &c
	}
	return resp
}

// Login accepts the token as JSON {"token"} or as a bearer header.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if tok, err := auth.TokenFromRequest(r); err == nil {
		req.Token = tok
	} else if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := h.state.Login(r.Context(), req.Token); err != nil {
		if errors.Is(err, auth.ErrNoToken) {
			httpx.JSONError(w, http.StatusBadRequest, "token_required", nil)
			return
		}
		if re, ok := result.As(err); ok {
			httpx.WriteError(w, re)
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "login_failed", nil)
		return
	}
	// catalog and queue catch up in the background
	go h.sched.SyncAll(context.WithoutCancel(r.Context()))
	httpx.JSON(w, http.StatusOK, h.current())
}

func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.current())
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.state.Logout(r.Context()); err != nil {
		h.log.WithError(err).Error("logout")
		httpx.JSONError(w, http.StatusInternalServerError, "logout_failed", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type selectRequest struct {
	ID uint `json:"id"`
}

// SelectAdvisor stores the advisor selection and refreshes its clients
// when online.
func (h *AuthHandler) SelectAdvisor(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	advisors, err := h.st.Advisors(r.Context())
	if err != nil {
		httpx.WriteError(w, result.LocalStorage(err))
		return
	}
	for _, a := range advisors {
		if a.AdvisorID != req.ID {
			continue
		}
		if err := h.state.SelectAdvisor(r.Context(), a); err != nil {
			httpx.WriteError(w, storageError(err))
			return
		}
		if res := h.master.RefreshClients(r.Context(), a.AdvisorID); !res.OK {
			if h.state.ExpireOn(r.Context(), res.Err) {
				httpx.WriteError(w, res.Err)
				return
			}
			h.log.WithError(res.Err).Debug("clients not refreshed")
		}
		httpx.JSON(w, http.StatusOK, h.current())
		return
	}
	httpx.JSONError(w, http.StatusNotFound, "advisor_not_found", nil)
}

func (h *AuthHandler) SelectCompany(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.st.Company(r.Context(), req.ID)
	if errors.Is(err, store.ErrNotFound) {
		httpx.JSONError(w, http.StatusNotFound, "company_not_found", nil)
		return
	}
	if err != nil {
		httpx.WriteError(w, result.LocalStorage(err))
		return
	}
	if err := h.state.SelectCompany(r.Context(), c); err != nil {
		httpx.WriteError(w, storageError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, h.current())
}
