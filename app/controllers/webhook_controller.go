package controllers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/cardlinkhq/cardlink/internal/pkg/payments"
)

// HandleMercadoPagoWebhook ingests gateway push notifications. It always
// acknowledges with 200: the service absorbs malformed or unknown events
// itself, and a non-2xx would only make the gateway redeliver something we
// already decided to drop.
func HandleMercadoPagoWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	var body struct {
		Type   string `json:"type"`
		Action string `json:"action"`
		Data   struct {
			ID json.Number `json:"id"`
		} `json:"data"`
	}
	if len(rawBody) > 0 {
		if err := json.Unmarshal(rawBody, &body); err != nil {
			// A permanently malformed payload would be redelivered forever
			// if we bounced it. Log it and fall through to the query params.
			log.Warnf("[Webhook] unparseable notification body (%d bytes): %v", len(rawBody), err)
		}
	}

	dataID := body.Data.ID.String()
	if dataID == "" {
		// Some notification modes carry the payment id in the query instead.
		dataID = strings.TrimSpace(c.Query("data.id", c.Query("id")))
	}
	eventType := body.Type
	if eventType == "" {
		eventType = strings.TrimSpace(c.Query("type", c.Query("topic")))
	}

	notification := payments.WebhookNotification{
		Type:      eventType,
		Action:    body.Action,
		DataID:    dataID,
		Signature: strings.TrimSpace(c.Get("x-signature")),
		RequestID: strings.TrimSpace(c.Get("x-request-id")),
		RawBody:   rawBody,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := paymentService().ProcessWebhook(ctx, notification); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_processing_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
