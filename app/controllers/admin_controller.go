package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/cardlinkhq/cardlink/internal/pkg/payments"
	"github.com/cardlinkhq/cardlink/internal/pkg/usercontext"
)

var validate = validator.New()

type grantPlanRequest struct {
	Email string `json:"email" validate:"required,email"`
	Plan  string `json:"plan" validate:"required"`
	Days  int    `json:"days" validate:"gte=0"`
}

// HandleGrantPlan is the operator override: it writes the target user's plan
// directly, bypassing the gateway, and records a zero-amount audit payment.
// The route is gated by the admin middleware.
func HandleGrantPlan(c *fiber.Ctx) error {
	operator := usercontext.GetUserContext(c)

	var req grantPlanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body", "message": "Malformed request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Email, plan or days failed validation"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	user, err := paymentService().GrantPlan(ctx, operator.UserID, req.Email, req.Plan, req.Days)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrUnknownPlan):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown_plan", "message": "The requested plan does not exist"})
		case errors.Is(err, payments.ErrUserNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No user with that email"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "grant_failed", "message": "Plan grant failed"})
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":   true,
		"user": user.Email,
		"plan": user.Plan,
	})
}
