package models

import "time"

// Company (empresa) owns the sequential order and receipt counters.
type Company struct {
	CompanyID          uint      `gorm:"primaryKey;autoIncrement:false" json:"company_id"`
	LegalName          string    `gorm:"size:255;not null" json:"legal_name"`
	NextOrderCounter   int       `gorm:"not null;default:0" json:"next_order_counter"`
	NextReceiptCounter int       `gorm:"not null;default:0" json:"next_receipt_counter"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// MergeCounters returns incoming with each counter raised to the local
// value when the local one is ahead. Counters never move backwards, so
// reservations made while offline survive a server refresh.
func (c Company) MergeCounters(incoming Company) Company {
	merged := incoming
	merged.NextOrderCounter = max(c.NextOrderCounter, incoming.NextOrderCounter)
	merged.NextReceiptCounter = max(c.NextReceiptCounter, incoming.NextReceiptCounter)
	return merged
}
