package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/cardlinkhq/cardlink/app/repository"
	"github.com/cardlinkhq/cardlink/internal/pkg/cache"
	"github.com/cardlinkhq/cardlink/internal/pkg/database"
	"github.com/cardlinkhq/cardlink/internal/pkg/env"
	"github.com/cardlinkhq/cardlink/internal/pkg/mail"
	"github.com/cardlinkhq/cardlink/internal/pkg/payments"
	"github.com/cardlinkhq/cardlink/internal/pkg/router"
	"github.com/cardlinkhq/cardlink/internal/pkg/sweeper"
)

func main() {
	app, sweep := NewApplication()

	sweep.Start()
	defer sweep.Stop()

	go func() {
		addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
		if err := app.Listen(addr); err != nil {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

func NewApplication() (*fiber.App, *sweeper.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName: "CardLink",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// ROUTER
	router.InstallRouter(app)

	// nightly plan expiry sweep
	service := payments.NewServiceFromDB(
		database.GetDB(),
		mail.NewSMTPMailer(),
		payments.NewRedisEntitlementCache(payments.DefaultEntitlementTTL),
	)
	sweep := sweeper.NewManager(service, sweeper.DefaultInterval)

	return app, sweep
}
