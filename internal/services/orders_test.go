package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/go-pedidos/internal/models"
	"github.com/diewo77/go-pedidos/result"
)

func TestSubmitOnlineCreatesDirectly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.conn.set(true)

	res := env.orders.Submit(ctx, sampleDraft())
	require.True(t, res.OK, "%v", res.Err)
	assert.Equal(t, "261016-101", res.Value.OrderID)
	assert.False(t, res.Value.IsLocal)
	require.Len(t, env.gw.created, 1)
	assert.Zero(t, env.queue.Pending())

	cached := env.orders.ConfirmedOrders(ctx)
	require.True(t, cached.OK)
	require.Len(t, cached.Value, 1)
	assert.Equal(t, "261016-101", cached.Value[0].OrderID)
}

func TestSubmitFallsBackToQueue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.orders.Submit(ctx, sampleDraft())
	require.True(t, res.OK)
	assert.Equal(t, "L-001", res.Value.OrderID)

	// reachable at probe time, gone at create time
	env.conn.set(true)
	env.gw.createErr[1] = result.Network(errBoom)
	res = env.orders.Submit(ctx, sampleDraft())
	require.True(t, res.OK)
	assert.Equal(t, "L-002", res.Value.OrderID)
	assert.Equal(t, 2, env.queue.Pending())
}

func TestSubmitRejectedIsNotQueued(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.conn.set(true)
	env.gw.createErr[1] = result.HTTP(422, "invalid client")

	res := env.orders.Submit(ctx, sampleDraft())
	require.False(t, res.OK)
	assert.Equal(t, "422", res.Err.Code)
	assert.Zero(t, env.queue.Pending())
}

func TestUpdateAndPrintConfirmedOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.conn.set(true)

	o := env.orders.Submit(ctx, sampleDraft()).Value
	itemID := o.Items[0].ID

	res := env.orders.UpdateOrder(ctx, o.OrderID, []LineEdit{{ItemID: itemID, Quantity: 4}})
	require.True(t, res.OK, "%v", res.Err)
	assert.Equal(t, models.OrderStatusModified, res.Value.Status)
	assert.True(t, res.Value.TotalAmount.Equal(mustDecimal("59.30")))
	require.Len(t, env.gw.updated, 1)
	assert.Equal(t, "Modified", env.gw.updated[0].Status)

	res = env.orders.MarkPrinted(ctx, o.OrderID)
	require.True(t, res.OK)
	assert.Equal(t, models.OrderStatusPrinted, res.Value.Status)

	res = env.orders.UpdateOrder(ctx, o.OrderID, []LineEdit{{ItemID: itemID, Quantity: 1}})
	require.False(t, res.OK)
	assert.Equal(t, result.CodeValidation, res.Err.Code)

	stored, err := env.st.Order(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPrinted, stored.Status)
	assert.Equal(t, 4, stored.Items[0].Quantity)
}

func TestUpdateOrderRejectsLocalAndOffline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	local := env.queue.AddLocalOrder(ctx, sampleDraft()).Value
	res := env.orders.MarkPrinted(ctx, local.OrderID)
	require.False(t, res.OK)
	assert.Equal(t, result.CodeValidation, res.Err.Code)

	env.conn.set(true)
	confirmed := env.orders.Submit(ctx, sampleDraft()).Value
	env.conn.set(false)
	res = env.orders.MarkPrinted(ctx, confirmed.OrderID)
	require.False(t, res.OK)
	assert.Equal(t, result.CodeOffline, res.Err.Code)

	res = env.orders.MarkPrinted(ctx, "missing")
	assert.True(t, result.IsNotFound(res.Err))
}
