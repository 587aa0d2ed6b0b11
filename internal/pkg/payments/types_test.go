package payments

import (
	"testing"

	"github.com/cardlinkhq/cardlink/app/models"
)

func TestMapGatewayStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "approved", want: models.PaymentStatusApproved},
		{in: "APPROVED", want: models.PaymentStatusApproved},
		{in: "rejected", want: models.PaymentStatusRejected},
		{in: "cancelled", want: models.PaymentStatusCancelled},
		{in: "expired", want: models.PaymentStatusCancelled},
		{in: "refunded", want: models.PaymentStatusRefunded},
		{in: "charged_back", want: models.PaymentStatusRefunded},
		{in: "pending", want: models.PaymentStatusPending},
		{in: "in_process", want: models.PaymentStatusPending},
		{in: "in_mediation", want: models.PaymentStatusPending},
		{in: "something_new", want: models.PaymentStatusPending},
		{in: "", want: models.PaymentStatusPending},
	}

	for _, tt := range tests {
		if got := mapGatewayStatus(tt.in); got != tt.want {
			t.Fatalf("mapGatewayStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWebhookNotificationIsPaymentEvent(t *testing.T) {
	tests := []struct {
		name string
		n    WebhookNotification
		want bool
	}{
		{name: "payment type", n: WebhookNotification{Type: "payment"}, want: true},
		{name: "payment type uppercase", n: WebhookNotification{Type: "Payment"}, want: true},
		{name: "payment action", n: WebhookNotification{Action: "payment.updated"}, want: true},
		{name: "payment created action", n: WebhookNotification{Action: "payment.created"}, want: true},
		{name: "merchant order", n: WebhookNotification{Type: "merchant_order"}, want: false},
		{name: "plan action", n: WebhookNotification{Action: "subscription.updated"}, want: false},
		{name: "empty", n: WebhookNotification{}, want: false},
	}

	for _, tt := range tests {
		if got := tt.n.IsPaymentEvent(); got != tt.want {
			t.Fatalf("%s: IsPaymentEvent() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
