package handlers

import (
	"net/http"
	"time"

	"github.com/diewo77/go-pedidos/httpx"
	"github.com/diewo77/go-pedidos/internal/notify"
	"github.com/diewo77/go-pedidos/internal/services"
)

// SyncHandler exposes manual sync triggers, device status and the
// notification feed.
type SyncHandler struct {
	sched   *services.Scheduler
	monitor *services.Monitor
	queue   *services.OrderQueue
	state   *services.AppState
	feed    *notify.Feed
}

func NewSyncHandler(sched *services.Scheduler, monitor *services.Monitor, queue *services.OrderQueue, state *services.AppState, feed *notify.Feed) *SyncHandler {
	return &SyncHandler{sched: sched, monitor: monitor, queue: queue, state: state, feed: feed}
}

type statusResponse struct {
	Online   bool   `json:"online"`
	LoggedIn bool   `json:"logged_in"`
	User     string `json:"user,omitempty"`
	Pending  int    `json:"pending"`
	Syncing  bool   `json:"syncing"`
}

// Status reports connectivity and queue state. ?check=1 probes first.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("check") == "1" {
		h.monitor.Check(r.Context())
	}
	_, loggedIn := h.state.Session()
	httpx.JSON(w, http.StatusOK, statusResponse{
		Online:   h.monitor.Online(),
		LoggedIn: loggedIn,
		User:     h.state.User(),
		Pending:  h.queue.Pending(),
		Syncing:  h.queue.Syncing(),
	})
}

// SyncOrders runs one queue batch now.
func (h *SyncHandler) SyncOrders(w http.ResponseWriter, r *http.Request) {
	res := h.sched.SyncQueue(r.Context())
	if res.OK {
		httpx.JSON(w, http.StatusOK, map[string]int{"synced": res.Value})
		return
	}
	httpx.WriteError(w, res.Err)
}

// SyncMaster refreshes the catalog now.
func (h *SyncHandler) SyncMaster(w http.ResponseWriter, r *http.Request) {
	httpx.WriteResult(w, http.StatusOK, h.sched.SyncMasterData(r.Context()))
}

// Notifications returns toasts newer than ?since= (RFC 3339).
func (h *SyncHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_since", nil)
			return
		}
		since = t
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": h.feed.Since(since)})
}
