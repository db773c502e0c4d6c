package services

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/diewo77/go-pedidos/internal/gateway"
	"github.com/diewo77/go-pedidos/internal/models"
	"github.com/diewo77/go-pedidos/internal/store"
	"github.com/diewo77/go-pedidos/result"
)

// SyncSummary reports what a master data sync stored.
type SyncSummary struct {
	Skipped   bool `json:"skipped"`
	Products  int  `json:"products"`
	Companies int  `json:"companies"`
	Advisors  int  `json:"advisors"`
	Clients   int  `json:"clients"`
}

// MasterDataSync mirrors the remote catalog into the local store.
type MasterDataSync struct {
	gw    Gateway
	st    *store.Store
	state *AppState
	conn  Connectivity
	log   logrus.FieldLogger
}

func NewMasterDataSync(gw Gateway, st *store.Store, state *AppState, conn Connectivity, log logrus.FieldLogger) *MasterDataSync {
	return &MasterDataSync{gw: gw, st: st, state: state, conn: conn, log: log.WithField("module", "masterdata")}
}

// Sync fetches products, companies and advisors concurrently and stores
// them in one transaction. Nothing is written when any fetch fails; a 401
// wins over other failures so the caller can log out.
func (m *MasterDataSync) Sync(ctx context.Context) result.Result[SyncSummary] {
	if m.state.Token() == "" || !m.conn.Online() {
		return result.Ok(SyncSummary{Skipped: true})
	}

	var (
		products  result.Result[[]gateway.ProductDTO]
		companies result.Result[[]gateway.CompanyDTO]
		advisors  result.Result[[]gateway.AdvisorDTO]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		products = m.gw.ListProducts(gctx)
		return errOf(products.Err)
	})
	g.Go(func() error {
		companies = m.gw.ListCompanies(gctx)
		return errOf(companies.Err)
	})
	g.Go(func() error {
		advisors = m.gw.ListAdvisors(gctx)
		return errOf(advisors.Err)
	})
	if err := g.Wait(); err != nil {
		for _, e := range []*result.Error{products.Err, companies.Err, advisors.Err} {
			if e != nil && result.IsUnauthorized(e) {
				return result.Fail[SyncSummary](e)
			}
		}
		m.log.WithError(err).Warn("master data fetch failed")
		return result.Fail[SyncSummary](asResultError(err))
	}

	md := store.MasterData{
		Products:  make([]models.Product, 0, len(products.Value)),
		Companies: make([]models.Company, 0, len(companies.Value)),
		Advisors:  make([]models.Advisor, 0, len(advisors.Value)),
	}
	for _, p := range products.Value {
		md.Products = append(md.Products, p.Model())
	}
	for _, c := range companies.Value {
		md.Companies = append(md.Companies, c.Model())
	}
	for _, a := range advisors.Value {
		md.Advisors = append(md.Advisors, a.Model())
	}
	merged, err := m.st.ApplyMasterData(ctx, md)
	if err != nil {
		return result.Fail[SyncSummary](result.LocalStorage(err))
	}
	m.state.RefreshCompany(ctx, merged)

	summary := SyncSummary{Products: len(md.Products), Companies: len(merged), Advisors: len(md.Advisors)}
	if adv, ok := m.state.Advisor(); ok {
		cr := m.RefreshClients(ctx, adv.AdvisorID)
		switch {
		case cr.OK:
			summary.Clients = cr.Value
		case result.IsUnauthorized(cr.Err):
			return result.Fail[SyncSummary](cr.Err)
		default:
			// master data is already stored; clients refresh on the next sync
			m.log.WithError(cr.Err).WithField("advisor_id", adv.AdvisorID).Warn("client refresh failed")
		}
	}
	m.log.WithFields(logrus.Fields{
		"products":  summary.Products,
		"companies": summary.Companies,
		"advisors":  summary.Advisors,
		"clients":   summary.Clients,
	}).Info("master data synced")
	return result.Ok(summary)
}

// RefreshClients replaces the cached clients of one advisor.
func (m *MasterDataSync) RefreshClients(ctx context.Context, advisorID uint) result.Result[int] {
	if m.state.Token() == "" || !m.conn.Online() {
		return result.Fail[int](result.Offline("cannot refresh clients while offline"))
	}
	res := m.gw.ListClients(ctx, advisorID)
	if !res.OK {
		return result.Forward[int](res)
	}
	clients := make([]models.Client, 0, len(res.Value))
	for _, c := range res.Value {
		clients = append(clients, c.Model())
	}
	if err := m.st.ReplaceClients(ctx, advisorID, clients); err != nil {
		return result.Fail[int](result.LocalStorage(err))
	}
	return result.Ok(len(clients))
}

// errOf maps a nil *result.Error to a nil error.
func errOf(e *result.Error) error {
	if e == nil {
		return nil
	}
	return e
}
