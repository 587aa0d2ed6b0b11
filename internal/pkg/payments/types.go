package payments

import (
	"errors"
	"strings"
	"time"

	"github.com/cardlinkhq/cardlink/app/models"
	"github.com/cardlinkhq/cardlink/internal/pkg/entitlements"
)

// Typed failures surfaced to callers; everything else is absorbed and logged
// because the gateway redelivers and the poll path exists as a backstop.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUnknownPlan     = errors.New("unknown plan")
	ErrPlanNotPriced   = errors.New("plan has no configured price")
	ErrAlreadyEntitled = errors.New("current plan already covers the requested plan")
)

// GatewayPayment is the normalized shape of a payment read back from the
// gateway's own API. Webhook payload fields are never trusted for status; the
// reconciler always refetches by id.
type GatewayPayment struct {
	ID                string
	Status            string
	ExternalReference string
	PayerEmail        string
	Amount            float64
	Currency          string
	DateApproved      *time.Time
	RawJSON           string
}

// WebhookNotification is the inbound push body plus the headers needed for
// signature verification.
type WebhookNotification struct {
	Type      string
	Action    string
	DataID    string
	Signature string
	RequestID string
	RawBody   []byte
}

// IsPaymentEvent reports whether the notification refers to a payment at all.
// Everything else is logged and dropped.
func (n WebhookNotification) IsPaymentEvent() bool {
	if strings.EqualFold(strings.TrimSpace(n.Type), "payment") {
		return true
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(n.Action)), "payment.")
}

// CheckoutSession is the result of starting a checkout: where to send the
// user, and the internal payment created for the attempt.
type CheckoutSession struct {
	RedirectURL string `json:"redirect_url"`
	PaymentUUID string `json:"payment_uuid"`
}

// Entitlement is the resolver output: the effective plan with its limits and
// expiry, as opposed to the raw stored value.
type Entitlement struct {
	Plan      entitlements.Plan       `json:"plan"`
	Limits    entitlements.PlanLimits `json:"limits"`
	ExpiresAt *time.Time              `json:"expires_at,omitempty"`
}

// mapGatewayStatus folds the gateway status vocabulary onto the internal
// five-state one. Unrecognized values stay pending so a later, clearer event
// can still settle the record.
func mapGatewayStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "approved":
		return models.PaymentStatusApproved
	case "rejected":
		return models.PaymentStatusRejected
	case "cancelled", "expired":
		return models.PaymentStatusCancelled
	case "refunded", "charged_back":
		return models.PaymentStatusRefunded
	default:
		return models.PaymentStatusPending
	}
}
