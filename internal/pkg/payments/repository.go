package payments

import (
	"strings"
	"time"

	"github.com/cardlinkhq/cardlink/app/models"
	"gorm.io/gorm"
)

// Repository provides DB operations used by the payments service.
type Repository interface {
	CreatePayment(p *models.Payment) error
	GetPaymentByUUID(uuid string) (*models.Payment, error)
	SetPreferenceID(paymentID uint, preferenceID string) error
	LatestCurrentApproved(userID uint, now time.Time) (*models.Payment, error)
	HasCurrentApproved(userID uint, now time.Time) (bool, error)
	ListPendingByUser(userID uint) ([]models.Payment, error)
	ListByUser(userID uint) ([]models.Payment, error)
	ApplyGatewayResult(paymentID uint, upd GatewayResultUpdate) (int64, error)
}

// GatewayResultUpdate carries the fields written when a gateway result is
// applied to a pending payment.
type GatewayResultUpdate struct {
	Status            string
	ExternalPaymentID string
	RawPayloadJSON    string
	PaidAt            *time.Time
	ExpiresAt         *time.Time
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payments repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreatePayment(p *models.Payment) error {
	return r.db.Create(p).Error
}

func (r *gormRepository) GetPaymentByUUID(uuid string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.Where("uuid = ?", strings.TrimSpace(uuid)).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) SetPreferenceID(paymentID uint, preferenceID string) error {
	return r.db.Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Update("preference_id", preferenceID).Error
}

// LatestCurrentApproved returns the most recently paid approved payment whose
// expiry is unset or still in the future.
func (r *gormRepository) LatestCurrentApproved(userID uint, now time.Time) (*models.Payment, error) {
	var p models.Payment
	err := r.db.
		Where("user_id = ? AND status = ? AND (expires_at IS NULL OR expires_at > ?)",
			userID, models.PaymentStatusApproved, now).
		Order("paid_at DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) HasCurrentApproved(userID uint, now time.Time) (bool, error) {
	var count int64
	err := r.db.Model(&models.Payment{}).
		Where("user_id = ? AND status = ? AND (expires_at IS NULL OR expires_at > ?)",
			userID, models.PaymentStatusApproved, now).
		Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) ListPendingByUser(userID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.
		Where("user_id = ? AND status = ?", userID, models.PaymentStatusPending).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

func (r *gormRepository) ListByUser(userID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

// ApplyGatewayResult performs the single conditional status transition. The
// predicate scopes the write to rows that are not yet approved, so exactly
// one of any number of racing callers observes RowsAffected == 1 and carries
// the approval side effects; the losers observe 0 and must stop.
func (r *gormRepository) ApplyGatewayResult(paymentID uint, upd GatewayResultUpdate) (int64, error) {
	values := map[string]interface{}{
		"status":              upd.Status,
		"external_payment_id": upd.ExternalPaymentID,
		"raw_payload_json":    upd.RawPayloadJSON,
	}
	if upd.PaidAt != nil {
		values["paid_at"] = upd.PaidAt
	}
	if upd.ExpiresAt != nil {
		values["expires_at"] = upd.ExpiresAt
	}

	tx := r.db.Model(&models.Payment{}).
		Where("id = ? AND status <> ?", paymentID, models.PaymentStatusApproved).
		Updates(values)
	return tx.RowsAffected, tx.Error
}
