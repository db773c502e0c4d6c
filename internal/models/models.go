package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry mirrored from the remote service.
type Product struct {
	ProductID   uint            `gorm:"primaryKey;autoIncrement:false" json:"product_id"`
	Code        string          `gorm:"size:50" json:"code,omitempty"`
	Description string          `gorm:"size:255;not null" json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"price"`
	Unit        string          `gorm:"size:50" json:"unit,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Advisor (asesor) is a sales representative owning a set of clients.
type Advisor struct {
	AdvisorID uint      `gorm:"primaryKey;autoIncrement:false" json:"advisor_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CompanyID uint      `gorm:"index" json:"company_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Client (cliente) belongs to one advisor.
type Client struct {
	ClientID  uint      `gorm:"primaryKey;autoIncrement:false" json:"client_id"`
	AdvisorID uint      `gorm:"index;not null" json:"advisor_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	TaxID     string    `gorm:"size:20" json:"tax_id,omitempty"`
	Address   string    `gorm:"size:500" json:"address,omitempty"`
	Phone     string    `gorm:"size:50" json:"phone,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Config keys for the session selections.
const (
	ConfigKeyAdvisor = "advisor"
	ConfigKeyCompany = "company"
)

// ConfigEntry stores one JSON-encoded setting.
type ConfigEntry struct {
	Key       string    `gorm:"primaryKey;size:50" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ConfigEntry) TableName() string { return "config" }
