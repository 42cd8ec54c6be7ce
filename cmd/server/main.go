package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/homeservepro/marketplace/internal/booking"
	"github.com/homeservepro/marketplace/internal/config"
	"github.com/homeservepro/marketplace/internal/database"
	"github.com/homeservepro/marketplace/internal/handler"
	"github.com/homeservepro/marketplace/internal/middleware"
	"github.com/homeservepro/marketplace/internal/monitor"
	"github.com/homeservepro/marketplace/internal/notify"
	"github.com/homeservepro/marketplace/internal/queue"
	"github.com/homeservepro/marketplace/internal/repository"
	"github.com/homeservepro/marketplace/internal/router"
	"github.com/homeservepro/marketplace/internal/signature"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Repositories
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	vendors := repository.NewVendorRepo(db)
	services := repository.NewServiceRepo(db)
	bookings := repository.NewBookingRepo(db)
	signatures := repository.NewSignatureRepo(db)
	notifications := repository.NewNotificationRepo(db)
	audit := repository.NewAuditRepo(db)

	// Domain services
	dispatcher := notify.NewDispatcher(notifications)
	workflow := signature.NewWorkflow(bookings, signatures, vendors, dispatcher, audit)
	lifecycle := booking.NewLifecycle(bookings, vendors, services, dispatcher, audit)
	lifecycle.SetSignatureTimeoutHours(cfg.SignatureTTLHrs)
	sweeper := monitor.NewMonitor(bookings, workflow, vendors, users, notifications, dispatcher, audit)

	// Background workers: the broker consumer fans notification events
	// out to delivery channels, the sweep loop escalates overdue
	// signature windows.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification-consumer: stopped: %v", err)
		}
	}()
	go sweeper.Start(context.Background(), time.Duration(cfg.SweepIntervalMin)*time.Minute)

	e := echo.New()

	// Redis-backed rate limiting and response caching.  A nil client
	// (Redis unreachable at boot) disables both without failing startup.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, rate limiting and response cache disabled")
	}
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	e.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))

	// Handlers and routes
	catalog := handler.NewCatalogHandler(services)
	router.RegisterRoutes(e, catalog)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, vendors), cfg.JWTSecret)
	router.RegisterNotifications(e, handler.NewNotificationHandler(notifications), cfg.JWTSecret)
	router.RegisterCustomer(e, handler.NewCustomerHandler(bookings, signatures, lifecycle, workflow), cfg.JWTSecret)
	router.RegisterVendor(e, handler.NewVendorHandler(bookings, vendors, lifecycle, workflow), cfg.JWTSecret)
	router.RegisterOps(e, handler.NewOpsHandler(bookings, vendors, lifecycle, sweeper), catalog, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, sweep every %dm)", addr, cfg.Env, cfg.SweepIntervalMin)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
