package models

import "time"

const (
	PaymentStatusPending   = "pending"
	PaymentStatusApproved  = "approved"
	PaymentStatusRejected  = "rejected"
	PaymentStatusCancelled = "cancelled"
	PaymentStatusRefunded  = "refunded"
)

// Payment records one purchase attempt and its settlement state. A row is
// created pending by checkout (or already approved by an admin grant) and is
// transitioned exactly once to a terminal status by the reconciler; after
// approval it is never written again by that path.
type Payment struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UUID              string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"uuid"`
	UserID            uint       `gorm:"not null;index:idx_payments_user_status,priority:1" json:"user_id"`
	Amount            float64    `gorm:"type:decimal(12,2);not null;default:0" json:"amount"`
	Currency          string     `gorm:"type:varchar(8);not null;default:'ARS'" json:"currency"`
	Plan              string     `gorm:"type:varchar(32);not null;default:'pro'" json:"plan"`
	Status            string     `gorm:"type:varchar(16);not null;default:'pending';index:idx_payments_user_status,priority:2" json:"status"`
	PayerEmail        string     `gorm:"type:varchar(200)" json:"payer_email"`
	PreferenceID      string     `gorm:"type:varchar(191);index" json:"preference_id"`
	ExternalPaymentID string     `gorm:"type:varchar(191);default:null;uniqueIndex" json:"external_payment_id,omitempty"`
	RawPayloadJSON    string     `gorm:"type:longtext" json:"-"`
	PaidAt            *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	ExpiresAt         *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsCurrent reports whether an approved payment still entitles its plan.
func (p *Payment) IsCurrent(now time.Time) bool {
	if p.Status != PaymentStatusApproved {
		return false
	}
	return p.ExpiresAt == nil || p.ExpiresAt.After(now)
}
