package middleware

import (
	"errors"
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/cardlinkhq/cardlink/app/models"
	"github.com/cardlinkhq/cardlink/app/repository"
	"github.com/cardlinkhq/cardlink/internal/pkg/usercontext"
)

// UserContextMiddleware resolves the authenticated identity injected by the
// upstream auth layer (X-Auth-User-Id) into a full UserContext. Login itself
// lives outside this service; requests without the header stay anonymous.
func UserContextMiddleware(c *fiber.Ctx) error {
	raw := strings.TrimSpace(c.Get("X-Auth-User-Id"))
	if raw == "" {
		return c.Next()
	}

	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return c.Next()
	}

	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(uint(id))
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("user context lookup failed for id %s: %v", raw, err)
		}
		return c.Next()
	}
	if !user.IsActive() {
		return c.Next()
	}

	usercontext.SetUserContext(c, usercontext.UserContext{
		UserID:     user.ID,
		Username:   user.Name,
		Email:      user.Email,
		IsLoggedIn: true,
		IsAdmin:    user.Role == models.ROLE_ADMIN,
		Plan:       user.Plan,
	})
	return c.Next()
}

// RequireUser rejects anonymous requests.
func RequireUser(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}
	return c.Next()
}

// RequireAdmin rejects requests not made by an operator.
func RequireAdmin(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}
	if !usercontext.IsAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Operator access required"})
	}
	return c.Next()
}
