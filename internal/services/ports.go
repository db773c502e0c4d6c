// Package services holds the offline-first order core: session state,
// master data sync, order ID reservation, the local order queue and the
// connectivity monitor.
package services

import (
	"context"

	"github.com/diewo77/go-pedidos/internal/gateway"
	"github.com/diewo77/go-pedidos/result"
)

// Gateway is the remote order and catalog service.
type Gateway interface {
	ListProducts(ctx context.Context) result.Result[[]gateway.ProductDTO]
	ListCompanies(ctx context.Context) result.Result[[]gateway.CompanyDTO]
	ListAdvisors(ctx context.Context) result.Result[[]gateway.AdvisorDTO]
	ListClients(ctx context.Context, advisorID uint) result.Result[[]gateway.ClientDTO]
	OrderExists(ctx context.Context, orderID string) result.Result[bool]
	CreateOrder(ctx context.Context, p gateway.OrderPayload) result.Result[gateway.OrderPayload]
	UpdateOrder(ctx context.Context, orderID string, p gateway.OrderPayload) result.Result[gateway.OrderPayload]
	UpdateCompanyCounter(ctx context.Context, companyID uint, u gateway.CompanyCounterUpdate) result.Result[gateway.CompanyDTO]
	Ping(ctx context.Context) error
}

// Connectivity is the online/offline gate.
type Connectivity interface {
	Online() bool
}

var _ Gateway = (*gateway.Client)(nil)

// asResultError converts err into a *result.Error, keeping an existing one.
func asResultError(err error) *result.Error {
	if re, ok := result.As(err); ok {
		return re
	}
	return result.Network(err)
}
