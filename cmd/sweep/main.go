package main // one-shot signature timeout sweep, for cron or manual runs

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/homeservepro/marketplace/internal/config"
	"github.com/homeservepro/marketplace/internal/database"
	"github.com/homeservepro/marketplace/internal/monitor"
	"github.com/homeservepro/marketplace/internal/notify"
	"github.com/homeservepro/marketplace/internal/repository"
	"github.com/homeservepro/marketplace/internal/signature"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	users := repository.NewUserRepo(db)
	vendors := repository.NewVendorRepo(db)
	bookings := repository.NewBookingRepo(db)
	signatures := repository.NewSignatureRepo(db)
	notifications := repository.NewNotificationRepo(db)
	audit := repository.NewAuditRepo(db)

	dispatcher := notify.NewDispatcher(notifications)
	workflow := signature.NewWorkflow(bookings, signatures, vendors, dispatcher, audit)
	sweeper := monitor.NewMonitor(bookings, workflow, vendors, users, notifications, dispatcher, audit)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	sum, err := sweeper.Run(ctx)
	if err != nil {
		log.Printf("sweep: %v", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sum); err != nil {
		log.Fatalf("encode summary: %v", err)
	}
}
