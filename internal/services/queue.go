package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-pedidos/internal/config"
	"github.com/diewo77/go-pedidos/internal/gateway"
	"github.com/diewo77/go-pedidos/internal/models"
	"github.com/diewo77/go-pedidos/internal/store"
	"github.com/diewo77/go-pedidos/result"
	"github.com/diewo77/go-pedidos/validation"
)

// OrderDraft is an order as composed by the advisor: no ID, date or status.
// Company and advisor default to the session selection.
type OrderDraft struct {
	CompanyID uint        `json:"company_id"`
	AdvisorID uint        `json:"advisor_id"`
	ClientID  uint        `json:"client_id" validate:"required"`
	Items     []DraftLine `json:"items" validate:"required,min=1,dive"`
}

// DraftLine is one product line. UnitPrice defaults to the catalog price.
type DraftLine struct {
	ProductID uint             `json:"product_id" validate:"required"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Quantity  models.Quantity  `json:"quantity"`
}

// OrderQueue holds orders composed offline until the remote service
// confirms them. The in-memory list mirrors the store and is reloaded
// after every mutation.
type OrderQueue struct {
	st       *store.Store
	gw       Gateway
	reserver *Reserver
	state    *AppState
	conn     Connectivity
	log      logrus.FieldLogger
	now      func() time.Time

	addMu   sync.Mutex
	mu      sync.RWMutex
	orders  []models.Order
	syncing atomic.Bool
}

func NewOrderQueue(st *store.Store, gw Gateway, reserver *Reserver, state *AppState, conn Connectivity, log logrus.FieldLogger) *OrderQueue {
	return &OrderQueue{
		st:       st,
		gw:       gw,
		reserver: reserver,
		state:    state,
		conn:     conn,
		log:      log.WithField("module", "queue"),
		now:      time.Now,
	}
}

// buildOrder validates a draft and turns it into an order with snapshotted
// prices and computed totals. The ID and status are left to the caller.
func buildOrder(ctx context.Context, st *store.Store, state *AppState, draft OrderDraft, now time.Time) (models.Order, *result.Error) {
	if draft.CompanyID == 0 {
		if c, ok := state.Company(); ok {
			draft.CompanyID = c.CompanyID
		}
	}
	if draft.AdvisorID == 0 {
		if a, ok := state.Advisor(); ok {
			draft.AdvisorID = a.AdvisorID
		}
	}
	v := validation.Violations{}
	validation.RequiredID("company_id", draft.CompanyID, v)
	validation.RequiredID("advisor_id", draft.AdvisorID, v)
	validation.Struct(draft, v)
	if !v.Empty() {
		return models.Order{}, result.Validation(v.Message())
	}

	user := state.User()
	o := models.Order{
		CompanyID: draft.CompanyID,
		OrderDate: now,
		AdvisorID: draft.AdvisorID,
		ClientID:  draft.ClientID,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: user,
		UpdatedBy: user,
		Items:     make([]models.OrderItem, 0, len(draft.Items)),
	}
	for i, line := range draft.Items {
		price := decimal.Zero
		if line.UnitPrice != nil {
			price = *line.UnitPrice
		} else {
			p, err := st.Product(ctx, line.ProductID)
			switch {
			case errors.Is(err, store.ErrNotFound):
				return models.Order{}, result.Validation(fmt.Sprintf("unknown product %d", line.ProductID))
			case err != nil:
				return models.Order{}, result.LocalStorage(err)
			}
			price = p.Price
		}
		if price.IsNegative() {
			return models.Order{}, result.Validation("negative unit price")
		}
		o.Items = append(o.Items, models.OrderItem{
			ID:        uuid.NewString(),
			Position:  i,
			ProductID: line.ProductID,
			UnitPrice: price,
			Quantity:  line.Quantity.Int(),
			CreatedAt: now,
			UpdatedAt: now,
			CreatedBy: user,
			UpdatedBy: user,
		})
	}
	o.Recalculate()
	return o, nil
}

// AddLocalOrder queues a draft under the next local ID. It never calls the
// remote service.
func (q *OrderQueue) AddLocalOrder(ctx context.Context, draft OrderDraft) result.Result[models.Order] {
	q.addMu.Lock()
	defer q.addMu.Unlock()

	o, rerr := buildOrder(ctx, q.st, q.state, draft, q.now())
	if rerr != nil {
		return result.Fail[models.Order](rerr)
	}
	queued, err := q.st.LocalOrders(ctx)
	if err != nil {
		return result.Fail[models.Order](result.LocalStorage(err))
	}
	highest := 0
	for _, existing := range queued {
		if n, ok := models.LocalSequence(existing.OrderID); ok && n > highest {
			highest = n
		}
	}
	o.OrderID = models.LocalOrderID(highest + 1)
	o.Status = models.OrderStatusPendingLocal
	o.IsLocal = true

	if err := q.st.CreateOrder(ctx, &o); err != nil {
		config.LogError(q.log, "queue", "AddLocalOrder", "create local order", o.OrderID, err)
		return result.Fail[models.Order](result.LocalStorage(err))
	}
	q.reloadLogged(ctx)
	q.log.WithFields(logrus.Fields{"order_id": o.OrderID, "total": o.TotalAmount.StringFixed(2)}).Info("order queued")
	return result.Ok(o)
}

// SyncLocalOrders sends the queued orders one at a time, in queue order.
// The first failure stops the batch; orders already sent stay sent and the
// rest stay queued. A 401 is returned as is, other failures as SYNC_ABORTED.
func (q *OrderQueue) SyncLocalOrders(ctx context.Context) result.Result[int] {
	if !q.syncing.CompareAndSwap(false, true) {
		return result.Fail[int](result.SyncInProgress())
	}
	defer q.syncing.Store(false)
	defer q.reloadLogged(ctx)

	if !q.conn.Online() || q.state.Token() == "" {
		return result.Fail[int](result.Offline("cannot sync orders while offline or logged out"))
	}
	queued, err := q.st.LocalOrders(ctx)
	if err != nil {
		return result.Fail[int](result.LocalStorage(err))
	}
	if len(queued) == 0 {
		return result.Ok(0)
	}

	synced := 0
	abort := func(orderID string, cause *result.Error) result.Result[int] {
		q.log.WithFields(logrus.Fields{
			"order_id": orderID,
			"synced":   synced,
			"total":    len(queued),
		}).WithError(cause).Warn("order sync stopped")
		if result.IsUnauthorized(cause) {
			return result.Fail[int](cause)
		}
		return result.Fail[int](result.SyncAborted(synced, len(queued), orderID, cause))
	}

	for _, local := range queued {
		res := q.reserver.ReserveOrderID(ctx, local.CompanyID)
		if !res.OK {
			return abort(local.OrderID, res.Err)
		}

		confirmed := confirmedCopy(local, res.Value.OrderID, q.state.User(), q.now())
		created := q.gw.CreateOrder(ctx, gateway.NewOrderPayload(confirmed))
		if !created.OK {
			return abort(local.OrderID, created.Err)
		}
		if err := q.st.ConfirmLocalOrder(ctx, local.OrderID, &confirmed); err != nil {
			config.LogError(q.log, "queue", "SyncLocalOrders", "confirm local order", map[string]string{
				"local_id":  local.OrderID,
				"remote_id": confirmed.OrderID,
			}, err)
			return abort(local.OrderID, result.LocalStorage(err))
		}
		synced++
		q.log.WithFields(logrus.Fields{"local_id": local.OrderID, "order_id": confirmed.OrderID}).Info("order synced")
	}
	return result.Ok(synced)
}

// confirmedCopy is local under its reserved ID, ready to send.
func confirmedCopy(local models.Order, orderID, user string, now time.Time) models.Order {
	c := local
	c.OrderID = orderID
	c.Status = models.OrderStatusPending
	c.IsLocal = false
	c.UpdatedAt = now
	if user != "" {
		c.UpdatedBy = user
	}
	c.Items = make([]models.OrderItem, len(local.Items))
	for i, it := range local.Items {
		it.OrderID = orderID
		c.Items[i] = it
	}
	return c
}

// UpdateLocalQuantity commits a quantity edit on a queued order.
func (q *OrderQueue) UpdateLocalQuantity(ctx context.Context, orderID, itemID, raw string) result.Result[models.Order] {
	o, rerr := q.loadLocal(ctx, orderID)
	if rerr != nil {
		return result.Fail[models.Order](rerr)
	}
	item, ok := o.Item(itemID)
	if !ok {
		return result.Fail[models.Order](result.Validation("unknown item " + itemID))
	}
	now := q.now()
	item.SetQuantity(models.CoerceQuantity(raw))
	item.UpdatedAt = now
	item.UpdatedBy = q.state.User()
	o.Recalculate()
	o.UpdatedAt = now
	o.UpdatedBy = q.state.User()
	if err := q.st.SaveOrder(ctx, &o); err != nil {
		return result.Fail[models.Order](result.LocalStorage(err))
	}
	q.reloadLogged(ctx)
	return result.Ok(o)
}

// RemoveLocalOrder drops a queued order.
func (q *OrderQueue) RemoveLocalOrder(ctx context.Context, orderID string) result.Result[string] {
	if _, rerr := q.loadLocal(ctx, orderID); rerr != nil {
		return result.Fail[string](rerr)
	}
	if err := q.st.DeleteOrder(ctx, orderID); err != nil {
		return result.Fail[string](result.LocalStorage(err))
	}
	q.reloadLogged(ctx)
	return result.Ok(orderID)
}

func (q *OrderQueue) loadLocal(ctx context.Context, orderID string) (models.Order, *result.Error) {
	o, err := q.st.Order(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Order{}, result.HTTP(404, "order "+orderID+" not found")
	}
	if err != nil {
		return models.Order{}, result.LocalStorage(err)
	}
	if !o.IsLocal {
		return models.Order{}, result.Validation("order " + orderID + " is not a local order")
	}
	return o, nil
}

// Reload refreshes the in-memory queue from the store.
func (q *OrderQueue) Reload(ctx context.Context) error {
	orders, err := q.st.LocalOrders(ctx)
	if err != nil {
		return err
	}
	q.mu.Lock()
	q.orders = orders
	q.mu.Unlock()
	return nil
}

func (q *OrderQueue) reloadLogged(ctx context.Context) {
	if err := q.Reload(ctx); err != nil {
		config.LogError(q.log, "queue", "Reload", "reload local orders", nil, err)
	}
}

// Orders returns a snapshot of the queued orders.
func (q *OrderQueue) Orders() []models.Order {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]models.Order(nil), q.orders...)
}

// Pending is the number of queued orders.
func (q *OrderQueue) Pending() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.orders)
}

// Syncing reports whether a batch is running.
func (q *OrderQueue) Syncing() bool {
	return q.syncing.Load()
}
