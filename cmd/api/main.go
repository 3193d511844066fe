package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/duka-app/dukago/internal/alerts"
	"github.com/duka-app/dukago/internal/config"
	"github.com/duka-app/dukago/internal/database"
	"github.com/duka-app/dukago/internal/handlers"
	"github.com/duka-app/dukago/internal/ledger"
	"github.com/duka-app/dukago/internal/messaging"
	"github.com/duka-app/dukago/internal/models"
	"github.com/duka-app/dukago/internal/notify"
	"github.com/duka-app/dukago/internal/scheduler"
	"github.com/duka-app/dukago/internal/services/export"
	"github.com/duka-app/dukago/internal/services/printer"
	"github.com/duka-app/dukago/internal/stock"
	syncpkg "github.com/duka-app/dukago/internal/sync"
	ws "github.com/duka-app/dukago/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (Detects Embedded vs External automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in shutdown handler below

	// 3. Auto-Migrate Schema
	log.Println("🚀 Synchronizing database schema...")
	err = db.AutoMigrate(
		&models.Business{},
		&models.User{},
		&models.Item{},
		&models.Tag{},
		&models.InventoryEvent{},
		&models.SyncOperation{},
		&models.Alert{},
		&models.Notification{},
	)
	if err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. Wire stores and services
	stockStore := stock.NewGormStore(db.DB)
	ledgerStore := ledger.NewStore(db.DB)
	alertStore := alerts.NewGormStore(db.DB)
	alertService := alerts.NewService(alertStore, stockStore, alertStore, cfg.Alerts.ExpiryHorizonDays)

	opStore := syncpkg.NewGormOpStore(db.DB)
	entityStore := syncpkg.NewGormEntityStore(db.DB)
	engine := syncpkg.NewEngine(opStore, entityStore, stockStore, ledgerStore, alertService, cfg.Sync.OpTimeout)

	// 5. Notification fan-out: websocket hub, push producer, outbox worker
	hub := ws.NewHub()
	go hub.Run()

	var pushProducer messaging.PushProducer
	if len(cfg.Kafka.Brokers) > 0 {
		pushProducer = messaging.NewKafkaPushProducer(cfg.Kafka.Brokers, cfg.Kafka.PushTopic)
	} else {
		log.Println("📨 No Kafka brokers configured, push intents will be dropped")
		pushProducer = messaging.NopProducer{}
	}

	notifyStore := notify.NewGormStore(db.DB)
	outboxWorker := notify.NewWorker(notifyStore, hub, pushProducer, nil, cfg.Alerts.OutboxInterval)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	go outboxWorker.Run(workerCtx)

	// 6. Background maintenance jobs
	sched := scheduler.New()
	sched.Add(scheduler.Job{
		Name:     "threshold-recheck",
		Interval: cfg.Alerts.ThresholdInterval,
		Run:      alertService.RecheckAll,
	})
	sched.Add(scheduler.Job{
		Name:     "expiry-sweep",
		Interval: cfg.Alerts.ExpiryInterval,
		Run:      alertService.SweepExpiring,
	})
	sched.Add(scheduler.Job{
		Name:     "sync-retention",
		Interval: 24 * time.Hour,
		Run: func(ctx context.Context) error {
			purged, err := engine.PurgeOlderThan(ctx, cfg.Sync.RetentionDays)
			if err == nil && purged > 0 {
				log.Printf("🧹 Purged %d sync operations past retention", purged)
			}
			return err
		},
	})
	sched.Start(workerCtx)

	// 7. HTTP router
	router := handlers.NewRouter(handlers.Deps{
		DB:            db,
		JWTSecret:     cfg.JWTSecret,
		Engine:        engine,
		Stock:         stockStore,
		Ledger:        ledgerStore,
		Alerts:        alertService,
		AlertStore:    alertStore,
		Notifications: notifyStore,
		Hub:           hub,
		Exporter:      export.NewService(db.DB),
		Printer:       printer.NewGenerator(os.Getenv("QR_SCHEME")),
		RetentionDays: cfg.Sync.RetentionDays,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server (%s) starting on port %s\n", cfg.Env, cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	// Create context with timeout for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Stop background workers
	stopWorkers()
	sched.Wait()

	if err := pushProducer.Close(); err != nil {
		log.Printf("Kafka producer close error: %v", err)
	}

	// Close database (this also stops embedded PostgreSQL)
	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
