package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/cardlinkhq/cardlink/internal/pkg/database"
	"github.com/cardlinkhq/cardlink/internal/pkg/mail"
	"github.com/cardlinkhq/cardlink/internal/pkg/payments"
	"github.com/cardlinkhq/cardlink/internal/pkg/usercontext"
)

const paymentRequestTimeout = 20 * time.Second

func paymentService() *payments.Service {
	return payments.NewServiceFromDB(
		database.GetDB(),
		mail.NewSMTPMailer(),
		payments.NewRedisEntitlementCache(payments.DefaultEntitlementTTL),
	)
}

type startCheckoutRequest struct {
	Plan string `json:"plan"`
}

// HandleStartCheckout creates a pending payment and returns the gateway
// checkout URL for the authenticated user.
func HandleStartCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req startCheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body", "message": "Malformed request body"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), paymentRequestTimeout)
	defer cancel()

	session, err := paymentService().StartCheckout(ctx, userCtx.UserID, userCtx.Email, req.Plan)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrUnknownPlan):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown_plan", "message": "The requested plan does not exist or is not purchasable"})
		case errors.Is(err, payments.ErrPlanNotPriced):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "plan_not_priced", "message": "The requested plan has no configured price"})
		case errors.Is(err, payments.ErrAlreadyEntitled):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "already_entitled", "message": "Your current plan already covers this tier"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "checkout_failed", "message": "Checkout could not be started"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(session)
}

// HandleVerifyPayments is the pull path: it checks the caller's pending
// payments against the gateway and applies anything that settled.
func HandleVerifyPayments(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), paymentRequestTimeout)
	defer cancel()

	applied, err := paymentService().VerifyPendingPayments(ctx, usercontext.GetUserID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "verify_failed", "message": "Payment verification failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "applied": applied})
}

// HandleGetEntitlement returns the caller's effective plan, limits and expiry.
func HandleGetEntitlement(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), paymentRequestTimeout)
	defer cancel()

	ent, err := paymentService().ResolveEntitlement(ctx, usercontext.GetUserID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "resolve_failed", "message": "Entitlement could not be resolved"})
	}

	return c.Status(fiber.StatusOK).JSON(ent)
}

// HandleListPayments returns the caller's payment history, newest first.
func HandleListPayments(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), paymentRequestTimeout)
	defer cancel()

	history, err := paymentService().ListPayments(ctx, usercontext.GetUserID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "list_failed", "message": "Payments could not be loaded"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"payments": history})
}
