package router

import (
	"github.com/cardlinkhq/cardlink/app/controllers"
	"github.com/cardlinkhq/cardlink/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	// Gateway webhooks (no auth, signature-verified in the service)
	app.Post("/webhooks/mercadopago", controllers.HandleMercadoPagoWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
