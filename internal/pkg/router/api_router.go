package router

import (
	"github.com/cardlinkhq/cardlink/app/controllers"
	"github.com/cardlinkhq/cardlink/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")

	user := v1.Group("", middleware.RequireUser)
	user.Get("/entitlement", controllers.HandleGetEntitlement)
	user.Get("/payments", controllers.HandleListPayments)
	user.Post("/checkout", controllers.HandleStartCheckout)
	user.Post("/payments/verify", controllers.HandleVerifyPayments)

	admin := v1.Group("/admin", middleware.RequireAdmin)
	admin.Post("/grant-plan", controllers.HandleGrantPlan)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
