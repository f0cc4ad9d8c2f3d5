package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xavierca1/lead-sheets-monitor/internal/infra/database"
	"github.com/xavierca1/lead-sheets-monitor/internal/infra/http/handlers"
	"github.com/xavierca1/lead-sheets-monitor/internal/infra/http/middleware"
	"github.com/xavierca1/lead-sheets-monitor/internal/infra/integration/momence"
	"github.com/xavierca1/lead-sheets-monitor/internal/infra/integration/sheets"
	"github.com/xavierca1/lead-sheets-monitor/internal/infra/mail"
	"github.com/xavierca1/lead-sheets-monitor/internal/infra/queue"
	"github.com/xavierca1/lead-sheets-monitor/internal/infra/worker"
	"github.com/xavierca1/lead-sheets-monitor/internal/usecase"
)

type settings struct {
	DatabaseURL   string
	SheetsAPIURL  string
	SheetsAPIKey  string
	MomenceAPIURL string
	RabbitURL     string
	HTTPAddr      string

	MailHost string
	MailPort int
	MailUser string
	MailPass string
	MailFrom string

	RateLimitDelay  time.Duration
	DeliveryTimeout time.Duration
	FetchTimeout    time.Duration
	ShutdownGrace   time.Duration
	MaxAttempts     int
}

func loadSettings() settings {
	godotenv.Load()

	return settings{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SheetsAPIURL:  envStr("SHEETS_API_URL", "https://sheets.googleapis.com"),
		SheetsAPIKey:  os.Getenv("SHEETS_API_KEY"),
		MomenceAPIURL: envStr("MOMENCE_API_URL", "https://api.momence.com"),
		RabbitURL:     os.Getenv("RABBITMQ_URL"),
		HTTPAddr:      envStr("HTTP_ADDR", ":8080"),

		MailHost: os.Getenv("MAIL_HOST"),
		MailPort: envInt("MAIL_PORT", 587),
		MailUser: os.Getenv("MAIL_USER"),
		MailPass: os.Getenv("MAIL_PASS"),
		MailFrom: envStr("MAIL_FROM", "no-reply@leadsheets.local"),

		RateLimitDelay:  time.Duration(envInt("RATE_LIMIT_DELAY_MS", 1500)) * time.Millisecond,
		DeliveryTimeout: time.Duration(envInt("DELIVERY_TIMEOUT_S", 20)) * time.Second,
		FetchTimeout:    time.Duration(envInt("FETCH_TIMEOUT_S", 30)) * time.Second,
		ShutdownGrace:   time.Duration(envInt("SHUTDOWN_GRACE_S", 30)) * time.Second,
		MaxAttempts:     envInt("MAX_DELIVERY_ATTEMPTS", usecase.DefaultMaxAttempts),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("⚠️ Config: %s=%q is not a number, using %d", key, os.Getenv(key), fallback)
	}
	return fallback
}

func main() {
	dryRun := flag.Bool("dry-run", false, "process rows but skip delivery calls and sent-record writes")
	verbose := flag.Bool("verbose", false, "per-row logging")
	daemon := flag.Bool("daemon", false, "loop forever using tenant schedule intervals (default: single cycle)")
	resetTracker := flag.Bool("reset-tracker", false, "clear all sent records and cursors, then exit")
	queueStatus := flag.Bool("queue-status", false, "print pending/dead queue counts and exit")
	retryFailed := flag.Bool("retry-failed", false, "retry every pending entry now, ignoring the backoff schedule, then exit")
	flag.Parse()

	cfg := loadSettings()

	db, err := database.NewDBConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	defer db.Close()

	// 1. Repositories
	configRepo := database.NewConfigRepository(db)
	tracker := database.NewTrackerRepository(db)
	retryRepo := database.NewRetryQueueRepository(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Bounded grace: after a termination signal, in-flight calls get their own
	// timeouts; past the grace window we force-exit and accept the data loss.
	go func() {
		<-ctx.Done()
		time.Sleep(cfg.ShutdownGrace)
		log.Println("❌ Shutdown grace period exceeded, forcing exit")
		os.Exit(1)
	}()

	if *queueStatus {
		printQueueStatus(ctx, retryRepo)
		return
	}

	if *resetTracker {
		if err := tracker.Reset(ctx); err != nil {
			log.Fatalf("❌ Tracker reset failed: %v", err)
		}
		log.Println("✅ Tracker reset: all sent records and cursors cleared, next run reprocesses everything")
		return
	}

	// 2. Gateways and adapters
	fetcher := sheets.NewClient(cfg.SheetsAPIURL, cfg.SheetsAPIKey, cfg.FetchTimeout)
	delivery := momence.NewClient(cfg.MomenceAPIURL, cfg.DeliveryTimeout, cfg.RateLimitDelay)

	var rabbit *queue.RabbitMQ
	var producer usecase.QueueProducerInterface
	if cfg.RabbitURL != "" {
		rabbit, err = queue.NewRabbitMQ(cfg.RabbitURL)
		if err != nil {
			log.Printf("⚠️ RabbitMQ unavailable, lead events disabled: %v", err)
		} else {
			defer rabbit.Close()
			producer = queue.NewProducer(rabbit.Conn, rabbit.Ch)
		}
	}

	var mailer usecase.EmailService
	if cfg.MailHost != "" {
		mailer = mail.NewEmailSender(cfg.MailHost, cfg.MailPort, cfg.MailUser, cfg.MailPass, cfg.MailFrom)
	}

	// 3. Use case
	monitor := usecase.NewMonitorUseCase(tracker, retryRepo, fetcher, delivery, producer, mailer)
	monitor.DryRun = *dryRun
	monitor.Verbose = *verbose
	monitor.MaxAttempts = cfg.MaxAttempts

	if *dryRun {
		log.Println("🚫 Dry-run mode: no delivery calls, no sent-record writes")
	}

	if *retryFailed {
		runForcedRetries(ctx, monitor, configRepo)
		return
	}

	// 4. Daemon extras: status API + queue maintenance
	if *daemon {
		go serveStatusAPI(cfg.HTTPAddr, db, rabbit, monitor, retryRepo, configRepo)

		maintenance := worker.NewQueueMaintenanceWorker(retryRepo)
		go maintenance.Start(ctx)
	}

	// SIGHUP re-reads tenant/location config at the next cycle boundary,
	// never mid-cycle.
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)

	for {
		snap, err := configRepo.LoadSnapshot(ctx)
		if err != nil {
			log.Fatalf("❌ Config snapshot load failed, exiting for supervisor restart: %v", err)
		}

		stats, err := monitor.RunCycle(ctx, snap, time.Now())
		if err != nil {
			log.Fatalf("❌ Storage subsystem failure, exiting for supervisor restart: %v", err)
		}

		interval := usecase.GlobalInterval(snap, time.Now())
		if !*daemon {
			monitor.LogSummary(snap, stats, 0)
			return
		}
		monitor.LogSummary(snap, stats, interval)

		select {
		case <-ctx.Done():
			log.Println("⚠️ Termination signal received, shutting down cleanly")
			return
		case <-reload:
			log.Println("📥 SIGHUP received, reloading configuration now")
		case <-time.After(interval):
		}
	}
}

func printQueueStatus(ctx context.Context, retryRepo *database.RetryQueueRepository) {
	pending, err := retryRepo.CountPending(ctx)
	if err != nil {
		log.Fatalf("❌ Queue status failed: %v", err)
	}
	dead, err := retryRepo.CountDead(ctx)
	if err != nil {
		log.Fatalf("❌ Queue status failed: %v", err)
	}
	fmt.Printf("pending_retry: %d\ndead: %d\n", pending, dead)
}

func runForcedRetries(ctx context.Context, monitor *usecase.MonitorUseCase, configRepo *database.ConfigRepository) {
	snap, err := configRepo.LoadSnapshot(ctx)
	if err != nil {
		log.Fatalf("❌ Config snapshot load failed: %v", err)
	}

	stats := usecase.CycleStats{StartedAt: time.Now()}
	if err := monitor.ProcessRetries(ctx, snap, time.Now(), true, &stats); err != nil {
		log.Fatalf("❌ Forced retry pass failed: %v", err)
	}
	log.Printf("✅ Forced retry pass done: resolved=%d rescheduled=%d dead=%d", stats.Resolved, stats.Rescheduled, stats.Dead)
}

func serveStatusAPI(addr string, db *sql.DB, rabbit *queue.RabbitMQ, monitor *usecase.MonitorUseCase, retryRepo *database.RetryQueueRepository, configRepo *database.ConfigRepository) {
	healthHandler := handlers.NewHealthHandler(db, rabbitConn(rabbit))
	statusHandler := handlers.NewStatusHandler(monitor, retryRepo, configRepo)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
	}))

	r.Get("/health", healthHandler.Handle)
	r.Get("/status", statusHandler.HandleStatus)
	r.Get("/queue/dead", statusHandler.HandleDeadLetters)
	r.Handle("/metrics", promhttp.Handler())

	log.Printf("🔥 Status API listening on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Printf("❌ Status API stopped: %v", err)
	}
}

func rabbitConn(r *queue.RabbitMQ) *amqp091.Connection {
	if r == nil {
		return nil
	}
	return r.Conn
}
