package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/go-pedidos/internal/config"
	"github.com/diewo77/go-pedidos/internal/db"
	"github.com/diewo77/go-pedidos/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	gdb, err := db.Open(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, log)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb, true))
	return New(gdb)
}

func localOrder(id string, at time.Time) *models.Order {
	o := &models.Order{
		OrderID:   id,
		CompanyID: 1,
		OrderDate: at,
		AdvisorID: 7,
		ClientID:  70,
		Status:    models.OrderStatusPendingLocal,
		IsLocal:   true,
		CreatedAt: at,
		Items: []models.OrderItem{
			{ID: id + "-a", ProductID: 1, UnitPrice: decimal.RequireFromString("12.50"), Quantity: 2},
			{ID: id + "-b", ProductID: 2, UnitPrice: decimal.RequireFromString("3.10"), Quantity: 3},
		},
	}
	o.Recalculate()
	return o
}

func TestApplyMasterDataMergesCounters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.MergeCompanies(ctx, []models.Company{{CompanyID: 1, LegalName: "ACME", NextOrderCounter: 120}})
	require.NoError(t, err)
	require.NoError(t, s.ReplaceProducts(ctx, []models.Product{{ProductID: 99, Description: "stale", Price: decimal.NewFromInt(1)}}))

	merged, err := s.ApplyMasterData(ctx, MasterData{
		Products: []models.Product{
			{ProductID: 1, Description: "Cafe", Price: decimal.RequireFromString("12.50")},
			{ProductID: 2, Description: "Azucar", Price: decimal.RequireFromString("3.10")},
		},
		Companies: []models.Company{
			{CompanyID: 1, LegalName: "ACME SA", NextOrderCounter: 100, NextReceiptCounter: 9},
			{CompanyID: 2, LegalName: "Other", NextOrderCounter: 5},
		},
		Advisors: []models.Advisor{{AdvisorID: 7, Name: "Ana", CompanyID: 1}},
	})
	require.NoError(t, err)
	require.Len(t, merged, 2)

	c1, err := s.Company(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 120, c1.NextOrderCounter, "local counter ahead of server must survive")
	assert.Equal(t, 9, c1.NextReceiptCounter)
	assert.Equal(t, "ACME SA", c1.LegalName)

	c2, err := s.Company(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, c2.NextOrderCounter)

	products, err := s.Products(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("12.5")))
	_, err = s.Product(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)

	advisors, err := s.Advisors(ctx)
	require.NoError(t, err)
	assert.Len(t, advisors, 1)
}

func TestReplaceClientsScopedToAdvisor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceClients(ctx, 7, []models.Client{{ClientID: 1, Name: "Zeta"}, {ClientID: 2, Name: "Alfa"}}))
	require.NoError(t, s.ReplaceClients(ctx, 8, []models.Client{{ClientID: 3, Name: "Beta"}}))
	require.NoError(t, s.ReplaceClients(ctx, 7, []models.Client{{ClientID: 2, Name: "Alfa"}}))

	mine, err := s.ClientsByAdvisor(ctx, 7)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Alfa", mine[0].Name)

	other, err := s.ClientsByAdvisor(ctx, 8)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestCommitCompanyCounter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.MergeCompanies(ctx, []models.Company{{CompanyID: 1, LegalName: "ACME", NextOrderCounter: 100}})
	require.NoError(t, err)

	saved, err := s.CommitCompanyCounter(ctx, models.Company{CompanyID: 1, LegalName: "ACME", NextOrderCounter: 102}, 101)
	require.NoError(t, err)
	assert.Equal(t, 101, saved.NextOrderCounter)

	// never moves backwards
	saved, err = s.CommitCompanyCounter(ctx, models.Company{CompanyID: 1, NextOrderCounter: 51}, 50)
	require.NoError(t, err)
	assert.Equal(t, 101, saved.NextOrderCounter)
	assert.Equal(t, "ACME", saved.LegalName)
}

func TestLocalOrderLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateOrder(ctx, localOrder("L-002", base.Add(time.Minute))))
	require.NoError(t, s.CreateOrder(ctx, localOrder("L-001", base)))

	queued, err := s.LocalOrders(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.Equal(t, "L-001", queued[0].OrderID)
	assert.Equal(t, "L-002", queued[1].OrderID)
	require.Len(t, queued[0].Items, 2)
	assert.Equal(t, uint(1), queued[0].Items[0].ProductID)
	assert.True(t, queued[0].TotalAmount.Equal(decimal.RequireFromString("34.30")))

	// edit a quantity and persist
	edited := queued[0]
	item, ok := edited.Item("L-001-b")
	require.True(t, ok)
	item.SetQuantity(1)
	edited.Recalculate()
	require.NoError(t, s.SaveOrder(ctx, &edited))

	reloaded, err := s.Order(ctx, "L-001")
	require.NoError(t, err)
	assert.True(t, reloaded.TotalAmount.Equal(decimal.RequireFromString("28.10")))
	assert.Equal(t, 1, reloaded.Items[1].Quantity)

	// confirm replaces the local entry
	confirmed := reloaded
	confirmed.OrderID = "261016-101"
	confirmed.IsLocal = false
	confirmed.Status = models.OrderStatusPending
	require.NoError(t, s.ConfirmLocalOrder(ctx, "L-001", &confirmed))

	_, err = s.Order(ctx, "L-001")
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := s.Order(ctx, "261016-101")
	require.NoError(t, err)
	assert.False(t, got.IsLocal)
	assert.Len(t, got.Items, 2)

	queued, err = s.LocalOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, queued, 1)

	// logout drops the confirmed cache but keeps the queue
	require.NoError(t, s.ClearSession(ctx))
	_, err = s.Order(ctx, "261016-101")
	assert.ErrorIs(t, err, ErrNotFound)
	queued, err = s.LocalOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, queued, 1)

	require.NoError(t, s.DeleteOrder(ctx, "L-002"))
	assert.ErrorIs(t, s.DeleteOrder(ctx, "L-002"), ErrNotFound)
	assert.ErrorIs(t, s.SaveOrder(ctx, localOrder("L-404", base)), ErrNotFound)
}

func TestConfigAndSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var adv models.Advisor
	found, err := s.ConfigValue(ctx, models.ConfigKeyAdvisor, &adv)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetConfig(ctx, models.ConfigKeyAdvisor, models.Advisor{AdvisorID: 7, Name: "Ana"}))
	require.NoError(t, s.SetConfig(ctx, models.ConfigKeyAdvisor, models.Advisor{AdvisorID: 8, Name: "Beto"}))
	found, err = s.ConfigValue(ctx, models.ConfigKeyAdvisor, &adv)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint(8), adv.AdvisorID)

	_, err = s.CurrentUser(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.SaveCurrentUser(ctx, models.SessionUser{Username: "ana", LoginAt: time.Now()}))
	require.NoError(t, s.SaveCurrentUser(ctx, models.SessionUser{Username: "beto", LoginAt: time.Now()}))
	u, err := s.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "beto", u.Username)

	require.NoError(t, s.ClearSession(ctx))
	_, err = s.CurrentUser(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	// config survives logout
	found, err = s.ConfigValue(ctx, models.ConfigKeyAdvisor, &adv)
	require.NoError(t, err)
	assert.True(t, found)
}
