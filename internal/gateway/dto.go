package gateway

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/diewo77/go-pedidos/internal/models"
)

// Amount is a decimal encoded as a bare JSON number.
type Amount decimal.Decimal

func NewAmount(d decimal.Decimal) Amount { return Amount(d) }

func (a Amount) Decimal() decimal.Decimal { return decimal.Decimal(a) }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).String()), nil
}

// UnmarshalJSON accepts numbers and quoted numbers.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*a = Amount(d)
	return nil
}

type ProductDTO struct {
	IDProducto  uint   `json:"idProducto"`
	Codigo      string `json:"codigo,omitempty"`
	Descripcion string `json:"descripcion"`
	Precio      Amount `json:"precio"`
	Unidad      string `json:"unidad,omitempty"`
}

func (p ProductDTO) Model() models.Product {
	return models.Product{
		ProductID:   p.IDProducto,
		Code:        p.Codigo,
		Description: p.Descripcion,
		Price:       p.Precio.Decimal(),
		Unit:        p.Unidad,
	}
}

// CompanyDTO carries the company with its counters. IDPedido is the next
// order number the server will hand out; locally the order counter holds
// the last number issued, so Model converts it.
type CompanyDTO struct {
	IDEmpresa   uint   `json:"idEmpresa"`
	RazonSocial string `json:"razonSocial"`
	IDPedido    int    `json:"idPedido"`
	IDRecibo    int    `json:"idRecibo"`
}

func (c CompanyDTO) Model() models.Company {
	return models.Company{
		CompanyID:          c.IDEmpresa,
		LegalName:          c.RazonSocial,
		NextOrderCounter:   max(c.IDPedido-1, 0),
		NextReceiptCounter: c.IDRecibo,
	}
}

type AdvisorDTO struct {
	IDAsesor  uint   `json:"idAsesor"`
	Nombre    string `json:"nombre"`
	IDEmpresa uint   `json:"idEmpresa,omitempty"`
}

func (a AdvisorDTO) Model() models.Advisor {
	return models.Advisor{AdvisorID: a.IDAsesor, Name: a.Nombre, CompanyID: a.IDEmpresa}
}

type ClientDTO struct {
	IDCliente uint   `json:"idCliente"`
	IDAsesor  uint   `json:"idAsesor"`
	Nombre    string `json:"nombre"`
	RUC       string `json:"ruc,omitempty"`
	Direccion string `json:"direccion,omitempty"`
	Telefono  string `json:"telefono,omitempty"`
}

func (c ClientDTO) Model() models.Client {
	return models.Client{
		ClientID:  c.IDCliente,
		AdvisorID: c.IDAsesor,
		Name:      c.Nombre,
		TaxID:     c.RUC,
		Address:   c.Direccion,
		Phone:     c.Telefono,
	}
}

// OrderPayload is the body of POST /pedidos/ and PUT /pedidos/{id}.
type OrderPayload struct {
	IDPedido    string             `json:"idPedido"`
	IDEmpresa   uint               `json:"idEmpresa"`
	FechaPedido time.Time          `json:"fechaPedido"`
	TotalPedido Amount             `json:"totalPedido"`
	IDAsesor    uint               `json:"idAsesor"`
	IDCliente   uint               `json:"idCliente"`
	Status      string             `json:"Status"`
	Detalles    []OrderLinePayload `json:"detalles"`
}

type OrderLinePayload struct {
	IDProducto uint   `json:"idProducto"`
	Precio     Amount `json:"Precio"`
	Cantidad   int    `json:"Cantidad"`
}

// NewOrderPayload builds the wire form of o.
func NewOrderPayload(o models.Order) OrderPayload {
	p := OrderPayload{
		IDPedido:    o.OrderID,
		IDEmpresa:   o.CompanyID,
		FechaPedido: o.OrderDate,
		TotalPedido: NewAmount(o.TotalAmount),
		IDAsesor:    o.AdvisorID,
		IDCliente:   o.ClientID,
		Status:      string(o.Status),
		Detalles:    make([]OrderLinePayload, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		p.Detalles = append(p.Detalles, OrderLinePayload{
			IDProducto: it.ProductID,
			Precio:     NewAmount(it.UnitPrice),
			Cantidad:   it.Quantity,
		})
	}
	return p
}

// CompanyCounterUpdate is the body of PUT /empresas/{id}.
type CompanyCounterUpdate struct {
	IDPedido int `json:"idPedido"`
}

// errorBody is the error shape of the remote service. Detail is usually a
// string but validation errors carry a list.
type errorBody struct {
	Detail any `json:"detail"`
}
