package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the status of an order.
type OrderStatus string

const (
	OrderStatusPending      OrderStatus = "Pending"
	OrderStatusSent         OrderStatus = "Sent"
	OrderStatusPrinted      OrderStatus = "Printed"
	OrderStatusModified     OrderStatus = "Modified"
	OrderStatusPendingLocal OrderStatus = "PendingLocal"
)

// LocalOrderPrefix marks provisional IDs of orders composed offline.
const LocalOrderPrefix = "L-"

// Order is one sales transaction (pedido).
// Local orders (IsLocal) live in the queue until the remote service confirms
// them under a reserved ID.
type Order struct {
	OrderID     string          `gorm:"primaryKey;size:32" json:"order_id"`
	CompanyID   uint            `gorm:"index;not null" json:"company_id"`
	OrderDate   time.Time       `gorm:"not null" json:"order_date"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total_amount"`
	AdvisorID   uint            `gorm:"index;not null" json:"advisor_id"`
	ClientID    uint            `gorm:"not null" json:"client_id"`
	Status      OrderStatus     `gorm:"size:20;not null" json:"status"`
	IsLocal     bool            `gorm:"index;not null;default:false" json:"is_local"`

	Items []OrderItem `gorm:"foreignKey:OrderID;references:OrderID;constraint:OnDelete:CASCADE" json:"items"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy string    `gorm:"size:100" json:"created_by,omitempty"`
	UpdatedBy string    `gorm:"size:100" json:"updated_by,omitempty"`
}

// Recalculate recomputes every line total and the order total.
// Totals are never taken from input.
func (o *Order) Recalculate() {
	total := decimal.Zero
	for i := range o.Items {
		o.Items[i].Recalculate()
		total = total.Add(o.Items[i].LineTotal)
	}
	o.TotalAmount = total
}

// IsEditable reports whether line items may still change. Printed orders
// are frozen.
func (o *Order) IsEditable() bool {
	return o.IsLocal || o.Status != OrderStatusPrinted
}

// Item returns the line with the given ID.
func (o *Order) Item(id string) (*OrderItem, bool) {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return &o.Items[i], true
		}
	}
	return nil, false
}

// LocalSequence extracts the numeric suffix of a local order ID ("L-007" -> 7).
func LocalSequence(orderID string) (int, bool) {
	if !strings.HasPrefix(orderID, LocalOrderPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(orderID, LocalOrderPrefix))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// LocalOrderID formats a local order ID ("L-001").
func LocalOrderID(seq int) string {
	return LocalOrderPrefix + leftPad(seq)
}

func leftPad(n int) string {
	s := strconv.Itoa(n)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}

// OrderItem is one product line (detalle) of an order.
type OrderItem struct {
	ID        string          `gorm:"primaryKey;size:36" json:"id"`
	OrderID   string          `gorm:"index;size:32;not null" json:"order_id"`
	Position  int             `gorm:"not null;default:0" json:"position"`
	ProductID uint            `gorm:"not null" json:"product_id"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"unit_price"`
	Quantity  int             `gorm:"not null;default:1" json:"quantity"`
	LineTotal decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"line_total"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy string    `gorm:"size:100" json:"created_by,omitempty"`
	UpdatedBy string    `gorm:"size:100" json:"updated_by,omitempty"`
}

// Recalculate recomputes the line total from the snapshotted unit price.
func (item *OrderItem) Recalculate() {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	item.LineTotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
}

// SetQuantity applies a committed quantity edit.
func (item *OrderItem) SetQuantity(q int) {
	if q < 1 {
		q = 1
	}
	item.Quantity = q
	item.Recalculate()
}

// CoerceQuantity turns raw quantity input into a positive integer.
// Empty, non-numeric and non-positive input all become 1.
func CoerceQuantity(raw string) int {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 1 {
			return 1
		}
		return n
	}
	// "3.0" and friends
	if d, err := decimal.NewFromString(raw); err == nil {
		n := d.Floor().IntPart()
		if n < 1 {
			return 1
		}
		return int(n)
	}
	return 1
}

// Quantity decodes a JSON number or string and coerces it like
// CoerceQuantity, so form-style input never fails to decode.
type Quantity int

func (q *Quantity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*q = 1
			return nil
		}
		*q = Quantity(CoerceQuantity(s))
		return nil
	}
	*q = Quantity(CoerceQuantity(string(b)))
	return nil
}

// Int returns the quantity as an int, never below 1.
func (q Quantity) Int() int {
	if q < 1 {
		return 1
	}
	return int(q)
}
