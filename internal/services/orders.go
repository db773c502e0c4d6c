package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-pedidos/internal/gateway"
	"github.com/diewo77/go-pedidos/internal/models"
	"github.com/diewo77/go-pedidos/internal/store"
	"github.com/diewo77/go-pedidos/result"
)

// LineEdit changes the quantity of one line of a confirmed order.
type LineEdit struct {
	ItemID   string          `json:"item_id"`
	Quantity models.Quantity `json:"quantity"`
}

// OrderService submits orders directly when online and falls back to the
// local queue otherwise. It also updates confirmed orders.
type OrderService struct {
	st       *store.Store
	gw       Gateway
	queue    *OrderQueue
	reserver *Reserver
	state    *AppState
	conn     Connectivity
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewOrderService(st *store.Store, gw Gateway, queue *OrderQueue, reserver *Reserver, state *AppState, conn Connectivity, log logrus.FieldLogger) *OrderService {
	return &OrderService{
		st:       st,
		gw:       gw,
		queue:    queue,
		reserver: reserver,
		state:    state,
		conn:     conn,
		log:      log.WithField("module", "orders"),
		now:      time.Now,
	}
}

// Submit reserves an ID and creates the order remotely. Offline, logged
// out, or when the remote service cannot be reached, the draft is queued
// locally instead. A 401 is returned without queueing.
func (s *OrderService) Submit(ctx context.Context, draft OrderDraft) result.Result[models.Order] {
	if !s.conn.Online() || s.state.Token() == "" {
		return s.queue.AddLocalOrder(ctx, draft)
	}
	o, rerr := buildOrder(ctx, s.st, s.state, draft, s.now())
	if rerr != nil {
		return result.Fail[models.Order](rerr)
	}

	res := s.reserver.ReserveOrderID(ctx, o.CompanyID)
	if !res.OK {
		return s.fallback(ctx, draft, res.Err)
	}
	o.OrderID = res.Value.OrderID
	o.Status = models.OrderStatusPending

	created := s.gw.CreateOrder(ctx, gateway.NewOrderPayload(o))
	if !created.OK {
		return s.fallback(ctx, draft, created.Err)
	}
	if err := s.st.CacheOrder(ctx, &o); err != nil {
		// the remote copy is authoritative
		s.log.WithError(err).WithField("order_id", o.OrderID).Warn("cache confirmed order")
	}
	s.log.WithField("order_id", o.OrderID).Info("order created")
	return result.Ok(o)
}

func (s *OrderService) fallback(ctx context.Context, draft OrderDraft, cause *result.Error) result.Result[models.Order] {
	if cause.Code != result.CodeNetwork && cause.Code != result.CodeOffline {
		return result.Fail[models.Order](cause)
	}
	s.log.WithError(cause).Info("remote unavailable, queueing order locally")
	return s.queue.AddLocalOrder(ctx, draft)
}

// UpdateOrder applies quantity edits to a confirmed order and sends it with
// status Modified.
func (s *OrderService) UpdateOrder(ctx context.Context, orderID string, edits []LineEdit) result.Result[models.Order] {
	o, rerr := s.loadConfirmed(ctx, orderID)
	if rerr != nil {
		return result.Fail[models.Order](rerr)
	}
	if !o.IsEditable() {
		return result.Fail[models.Order](result.Validation("order " + orderID + " is printed and can no longer change"))
	}
	now := s.now()
	for _, e := range edits {
		item, ok := o.Item(e.ItemID)
		if !ok {
			return result.Fail[models.Order](result.Validation("unknown item " + e.ItemID))
		}
		item.SetQuantity(e.Quantity.Int())
		item.UpdatedAt = now
		item.UpdatedBy = s.state.User()
	}
	o.Recalculate()
	return s.send(ctx, o, models.OrderStatusModified)
}

// MarkPrinted records that a confirmed order was printed.
func (s *OrderService) MarkPrinted(ctx context.Context, orderID string) result.Result[models.Order] {
	o, rerr := s.loadConfirmed(ctx, orderID)
	if rerr != nil {
		return result.Fail[models.Order](rerr)
	}
	return s.send(ctx, o, models.OrderStatusPrinted)
}

// ConfirmedOrders lists the cached orders accepted by the remote service.
func (s *OrderService) ConfirmedOrders(ctx context.Context) result.Result[[]models.Order] {
	orders, err := s.st.ConfirmedOrders(ctx)
	if err != nil {
		return result.Fail[[]models.Order](result.LocalStorage(err))
	}
	return result.Ok(orders)
}

func (s *OrderService) send(ctx context.Context, o models.Order, status models.OrderStatus) result.Result[models.Order] {
	if !s.conn.Online() || s.state.Token() == "" {
		return result.Fail[models.Order](result.Offline("confirmed orders can only change online"))
	}
	o.Status = status
	o.UpdatedAt = s.now()
	o.UpdatedBy = s.state.User()
	res := s.gw.UpdateOrder(ctx, o.OrderID, gateway.NewOrderPayload(o))
	if !res.OK {
		return result.Forward[models.Order](res)
	}
	if err := s.st.CacheOrder(ctx, &o); err != nil {
		return result.Fail[models.Order](result.LocalStorage(err))
	}
	s.log.WithFields(logrus.Fields{"order_id": o.OrderID, "status": status}).Info("order updated")
	return result.Ok(o)
}

func (s *OrderService) loadConfirmed(ctx context.Context, orderID string) (models.Order, *result.Error) {
	o, err := s.st.Order(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Order{}, result.HTTP(404, "order "+orderID+" not found")
	}
	if err != nil {
		return models.Order{}, result.LocalStorage(err)
	}
	if o.IsLocal {
		return models.Order{}, result.Validation("order " + orderID + " is still queued locally")
	}
	return o, nil
}
