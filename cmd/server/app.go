package main

import (
	"net/http"

	"github.com/diewo77/go-pedidos/auth"
	"github.com/diewo77/go-pedidos/httpx"
	"github.com/diewo77/go-pedidos/internal/db"
	"github.com/diewo77/go-pedidos/internal/handlers"
)

// App is the local JSON API handler.
type App struct {
	mux  *http.ServeMux
	core *core
}

// NewApp creates a new application with all routes configured.
func NewApp(c *core) *App {
	app := &App{mux: http.NewServeMux(), core: c}
	app.setupRoutes()
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auth.Middleware(a.core.state.Session)(a.mux).ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	c := a.core
	ah := handlers.NewAuthHandler(c.st, c.state, c.master, c.sched, c.log)
	ph := handlers.NewProductHandler(c.st)
	ch := handlers.NewCompanyHandler(c.st, c.state)
	oh := handlers.NewOrderHandler(c.queue, c.orders, c.state)
	sh := handlers.NewSyncHandler(c.sched, c.monitor, c.queue, c.state, c.feed)

	// Public routes
	a.mux.HandleFunc("GET /healthz", a.health)
	a.mux.HandleFunc("GET /api/status", sh.Status)
	a.mux.HandleFunc("GET /api/session", ah.Session)
	a.mux.HandleFunc("POST /api/session", ah.Login)

	// Session
	a.mux.Handle("DELETE /api/session", a.requireAuth(ah.Logout))
	a.mux.Handle("PUT /api/session/advisor", a.requireAuth(ah.SelectAdvisor))
	a.mux.Handle("PUT /api/session/company", a.requireAuth(ah.SelectCompany))

	// Master data
	a.mux.Handle("GET /api/products", a.requireAuth(ph.List))
	a.mux.Handle("GET /api/products/{id}", a.requireAuth(ph.View))
	a.mux.Handle("GET /api/companies", a.requireAuth(ch.Companies))
	a.mux.Handle("GET /api/advisors", a.requireAuth(ch.Advisors))
	a.mux.Handle("GET /api/clients", a.requireAuth(ch.Clients))

	// Orders
	a.mux.Handle("GET /api/orders", a.requireAuth(oh.List))
	a.mux.Handle("POST /api/orders", a.requireAuth(oh.Create))
	a.mux.Handle("PUT /api/orders/{id}", a.requireAuth(oh.Update))
	a.mux.Handle("POST /api/orders/{id}/print", a.requireAuth(oh.Print))
	a.mux.Handle("GET /api/orders/local", a.requireAuth(oh.ListLocal))
	a.mux.Handle("POST /api/orders/local", a.requireAuth(oh.CreateLocal))
	a.mux.Handle("PATCH /api/orders/local/{id}/items/{item}", a.requireAuth(oh.UpdateLocalItem))
	a.mux.Handle("DELETE /api/orders/local/{id}", a.requireAuth(oh.DeleteLocal))

	// Sync
	a.mux.Handle("POST /api/sync/orders", a.requireAuth(sh.SyncOrders))
	a.mux.Handle("POST /api/sync/master", a.requireAuth(sh.SyncMaster))
	a.mux.Handle("GET /api/notifications", a.requireAuth(sh.Notifications))
}

// requireAuth wraps a handler to require a session.
func (a *App) requireAuth(fn http.HandlerFunc) http.Handler {
	return auth.RequireAuth(fn)
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := a.core.st.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		httpx.JSONError(w, http.StatusServiceUnavailable, "store_unavailable", nil)
		return
	}
	resp := map[string]any{"status": "ok", "online": a.core.monitor.Online()}
	if v, dirty, err := db.SchemaVersion(a.core.st.DB()); err == nil {
		resp["schema_version"] = v
		resp["schema_dirty"] = dirty
	}
	httpx.JSON(w, http.StatusOK, resp)
}
