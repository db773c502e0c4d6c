package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/go-pedidos/internal/config"
	"github.com/diewo77/go-pedidos/internal/db"
	"github.com/diewo77/go-pedidos/internal/gateway"
	"github.com/diewo77/go-pedidos/internal/models"
	"github.com/diewo77/go-pedidos/internal/notify"
	"github.com/diewo77/go-pedidos/internal/store"
	"github.com/diewo77/go-pedidos/result"
)

// fakeGateway is an in-memory remote service.
type fakeGateway struct {
	mu sync.Mutex

	products  []gateway.ProductDTO
	companies map[uint]gateway.CompanyDTO
	advisors  []gateway.AdvisorDTO
	clients   map[uint][]gateway.ClientDTO
	existing  map[string]bool

	listErr        map[string]*result.Error // "products", "companies", "advisors", "clients"
	probeErr       map[string]*result.Error // by order ID
	commitFailures int
	commitErr      *result.Error
	createErr      map[int]*result.Error // by 1-based create call
	pingErr        error

	calls          int
	probes         []string
	commitAttempts []int
	created        []gateway.OrderPayload
	updated        []gateway.OrderPayload
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		companies: map[uint]gateway.CompanyDTO{},
		clients:   map[uint][]gateway.ClientDTO{},
		existing:  map[string]bool{},
		listErr:   map[string]*result.Error{},
		probeErr:  map[string]*result.Error{},
		createErr: map[int]*result.Error{},
	}
}

func (f *fakeGateway) ListProducts(ctx context.Context) result.Result[[]gateway.ProductDTO] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if e := f.listErr["products"]; e != nil {
		return result.Fail[[]gateway.ProductDTO](e)
	}
	return result.Ok(append([]gateway.ProductDTO(nil), f.products...))
}

func (f *fakeGateway) ListCompanies(ctx context.Context) result.Result[[]gateway.CompanyDTO] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if e := f.listErr["companies"]; e != nil {
		return result.Fail[[]gateway.CompanyDTO](e)
	}
	out := make([]gateway.CompanyDTO, 0, len(f.companies))
	for _, c := range f.companies {
		out = append(out, c)
	}
	return result.Ok(out)
}

func (f *fakeGateway) ListAdvisors(ctx context.Context) result.Result[[]gateway.AdvisorDTO] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if e := f.listErr["advisors"]; e != nil {
		return result.Fail[[]gateway.AdvisorDTO](e)
	}
	return result.Ok(append([]gateway.AdvisorDTO(nil), f.advisors...))
}

func (f *fakeGateway) ListClients(ctx context.Context, advisorID uint) result.Result[[]gateway.ClientDTO] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if e := f.listErr["clients"]; e != nil {
		return result.Fail[[]gateway.ClientDTO](e)
	}
	return result.Ok(append([]gateway.ClientDTO(nil), f.clients[advisorID]...))
}

func (f *fakeGateway) OrderExists(ctx context.Context, orderID string) result.Result[bool] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.probes = append(f.probes, orderID)
	if e := f.probeErr[orderID]; e != nil {
		return result.Fail[bool](e)
	}
	return result.Ok(f.existing[orderID])
}

func (f *fakeGateway) CreateOrder(ctx context.Context, p gateway.OrderPayload) result.Result[gateway.OrderPayload] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	n := len(f.created) + 1
	if e := f.createErr[n]; e != nil {
		delete(f.createErr, n)
		return result.Fail[gateway.OrderPayload](e)
	}
	f.existing[p.IDPedido] = true
	f.created = append(f.created, p)
	return result.Ok(p)
}

func (f *fakeGateway) UpdateOrder(ctx context.Context, orderID string, p gateway.OrderPayload) result.Result[gateway.OrderPayload] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if !f.existing[orderID] {
		return result.Fail[gateway.OrderPayload](result.HTTP(404, ""))
	}
	f.updated = append(f.updated, p)
	return result.Ok(p)
}

func (f *fakeGateway) UpdateCompanyCounter(ctx context.Context, companyID uint, u gateway.CompanyCounterUpdate) result.Result[gateway.CompanyDTO] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.commitAttempts = append(f.commitAttempts, u.IDPedido)
	if f.commitErr != nil {
		return result.Fail[gateway.CompanyDTO](f.commitErr)
	}
	if f.commitFailures > 0 {
		f.commitFailures--
		return result.Fail[gateway.CompanyDTO](result.HTTP(409, "counter moved"))
	}
	c := f.companies[companyID]
	c.IDEmpresa = companyID
	c.IDPedido = u.IDPedido
	f.companies[companyID] = c
	return result.Ok(c)
}

func (f *fakeGateway) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// switchConn is a Connectivity the test flips by hand.
type switchConn struct{ on atomic.Bool }

func (c *switchConn) Online() bool { return c.on.Load() }
func (c *switchConn) set(v bool)   { c.on.Store(v) }

var testDay = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testToken(t *testing.T, sub string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).SignedString([]byte("k"))
	require.NoError(t, err)
	return tok
}

type testEnv struct {
	st       *store.Store
	gw       *fakeGateway
	conn     *switchConn
	state    *AppState
	reserver *Reserver
	queue    *OrderQueue
	master   *MasterDataSync
	orders   *OrderService
	feed     *notify.Feed
	sched    *Scheduler
}

// newTestEnv builds the services over an in-memory store seeded with two
// products and company 1 at counter 100, logged in as "ana" with advisor 7
// and company 1 selected. The device starts offline.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	log := quietLogger()

	gdb, err := db.Open(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, log)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb, false))
	st := store.New(gdb)

	require.NoError(t, st.ReplaceProducts(ctx, []models.Product{
		{ProductID: 1, Description: "Cafe", Price: decimal.RequireFromString("12.50")},
		{ProductID: 2, Description: "Azucar", Price: decimal.RequireFromString("3.10")},
	}))
	_, err = st.MergeCompanies(ctx, []models.Company{{CompanyID: 1, LegalName: "ACME", NextOrderCounter: 100}})
	require.NoError(t, err)

	gw := newFakeGateway()
	gw.companies[1] = gateway.CompanyDTO{IDEmpresa: 1, RazonSocial: "ACME", IDPedido: 101}

	conn := &switchConn{}
	state := NewAppState(st, log)
	_, err = state.Login(ctx, testToken(t, "ana"))
	require.NoError(t, err)
	require.NoError(t, state.SelectAdvisor(ctx, models.Advisor{AdvisorID: 7, Name: "Ana"}))
	company, err := st.Company(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, state.SelectCompany(ctx, company))

	reserver := NewReserver(gw, st, conn, DefaultMaxAttempts, log)
	reserver.now = func() time.Time { return testDay }
	queue := NewOrderQueue(st, gw, reserver, state, conn, log)
	queue.now = func() time.Time { return testDay }
	master := NewMasterDataSync(gw, st, state, conn, log)
	orders := NewOrderService(st, gw, queue, reserver, state, conn, log)
	orders.now = func() time.Time { return testDay }
	feed := notify.NewFeed(20)
	sched := NewScheduler(queue, master, state, conn, feed, time.Minute, log)

	return &testEnv{
		st: st, gw: gw, conn: conn, state: state, reserver: reserver,
		queue: queue, master: master, orders: orders, feed: feed, sched: sched,
	}
}

func sampleDraft() OrderDraft {
	return OrderDraft{
		ClientID: 70,
		Items: []DraftLine{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 3},
		},
	}
}

var errBoom = errors.New("boom")

func mustDecimal(s string) decimal.Decimal { return decimal.RequireFromString(s) }
