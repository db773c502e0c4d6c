package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-pedidos/internal/gateway"
	"github.com/diewo77/go-pedidos/internal/store"
	"github.com/diewo77/go-pedidos/result"
)

// DefaultMaxAttempts bounds the reservation loop.
const DefaultMaxAttempts = 50

// Reservation is a claimed order number.
type Reservation struct {
	OrderID  string `json:"order_id"`
	Number   int    `json:"number"`
	Attempts int    `json:"attempts"`
}

// ProbeFunc reports whether an order with the given ID already exists.
// Returning an error aborts the reservation.
type ProbeFunc func(ctx context.Context, orderID string) (bool, error)

// CommitFunc claims number. A 401 or a network error aborts the
// reservation; any other error is a lost race.
type CommitFunc func(ctx context.Context, number int) error

// FormatOrderID renders "YYMMDD-NNN".
func FormatOrderID(day time.Time, number int) string {
	return fmt.Sprintf("%s-%03d", day.Format("060102"), number)
}

// Reserve walks candidates start, start+1, ... until one is free on probe
// and commit succeeds, for at most maxAttempts candidates. A candidate whose
// commit failed is never tried again.
func Reserve(ctx context.Context, now time.Time, start int, probe ProbeFunc, commit CommitFunc, maxAttempts int) result.Result[Reservation] {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return result.Fail[Reservation](result.Network(err))
		}
		candidate := start + attempt
		id := FormatOrderID(now, candidate)

		exists, err := probe(ctx, id)
		if err != nil {
			return result.Fail[Reservation](asResultError(err))
		}
		if exists {
			continue
		}
		if err := commit(ctx, candidate); err != nil {
			if result.IsUnauthorized(err) || result.HasCode(err, result.CodeNetwork) {
				return result.Fail[Reservation](asResultError(err))
			}
			continue
		}
		return result.Ok(Reservation{OrderID: id, Number: candidate, Attempts: attempt + 1})
	}
	return result.Fail[Reservation](result.ReservationExhausted(maxAttempts))
}

// Reserver binds Reserve to the remote service and the local store.
type Reserver struct {
	gw          Gateway
	st          *store.Store
	conn        Connectivity
	log         logrus.FieldLogger
	maxAttempts int
	now         func() time.Time
}

func NewReserver(gw Gateway, st *store.Store, conn Connectivity, maxAttempts int, log logrus.FieldLogger) *Reserver {
	return &Reserver{
		gw:          gw,
		st:          st,
		conn:        conn,
		log:         log.WithField("module", "reserver"),
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// ReserveOrderID claims the next free order number of a company. The
// local counter holds the last number issued; the server counter holds the
// next one, so a successful claim of N sends N+1.
func (r *Reserver) ReserveOrderID(ctx context.Context, companyID uint) result.Result[Reservation] {
	if !r.conn.Online() {
		return result.Fail[Reservation](result.Offline("cannot reserve an order id while offline"))
	}
	company, err := r.st.Company(ctx, companyID)
	if errors.Is(err, store.ErrNotFound) {
		// without the stored counter the loop would start at 1
		return result.Fail[Reservation](result.Validation(
			fmt.Sprintf("company %d is not in the local catalog, sync master data first", companyID)))
	}
	if err != nil {
		return result.Fail[Reservation](result.LocalStorage(err))
	}

	probe := func(ctx context.Context, orderID string) (bool, error) {
		res := r.gw.OrderExists(ctx, orderID)
		if !res.OK {
			return false, res.Err
		}
		return res.Value, nil
	}
	commit := func(ctx context.Context, number int) error {
		res := r.gw.UpdateCompanyCounter(ctx, companyID, gateway.CompanyCounterUpdate{IDPedido: number + 1})
		if !res.OK {
			r.log.WithFields(logrus.Fields{"company_id": companyID, "number": number}).
				WithError(res.Err).Warn("counter update rejected")
			return res.Err
		}
		returned := res.Value.Model()
		returned.CompanyID = companyID
		if _, err := r.st.CommitCompanyCounter(ctx, returned, number); err != nil {
			// the number is claimed remotely; keep it and move the local counter on the next sync
			r.log.WithError(err).Error("store reserved counter")
		}
		return nil
	}

	res := Reserve(ctx, r.now(), company.NextOrderCounter+1, probe, commit, r.maxAttempts)
	if res.OK {
		r.log.WithFields(logrus.Fields{
			"company_id": companyID,
			"order_id":   res.Value.OrderID,
			"attempts":   res.Value.Attempts,
		}).Info("order id reserved")
	}
	return res
}
