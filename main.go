package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nobroker_watchdog/config"
	"nobroker_watchdog/health"
	"nobroker_watchdog/httputil"
	"nobroker_watchdog/logging"
	"nobroker_watchdog/matcher"
	"nobroker_watchdog/models"
	"nobroker_watchdog/notifier"
	"nobroker_watchdog/retry"
	"nobroker_watchdog/scheduler"
	"nobroker_watchdog/scraper"
	"nobroker_watchdog/storage"
)

var (
	runOnce = flag.Bool("once", false, "Run a single scan and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("watchdog.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting nobroker_watchdog...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Watching %d area(s) in %s, budget %d-%d",
		len(cfg.Areas), cfg.City, cfg.BudgetMin, cfg.BudgetMax)

	ctx := context.Background()

	store, err := storage.NewSQLiteStore(cfg.StateDBPath)
	if err != nil {
		log.Fatalf("Failed to open state store: %v", err)
	}
	defer store.Close()
	log.Printf("State database: %s", cfg.StateDBPath)

	var archive *storage.PostgresArchive
	if cfg.DatabaseURL != "" {
		archive, err = storage.NewPostgresArchive(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: Postgres archive unavailable: %v", err)
		} else {
			defer archive.Close()
			log.Println("Postgres archive connected")
		}
	}

	clients := httputil.NewClients(time.Duration(cfg.HTTPTimeoutSeconds)*time.Second, cfg.ProxyURL)

	policy := retry.Default()
	policy.MaxAttempts = cfg.MaxRetries
	fetcher := scraper.NewFetcher(clients.Scraping, policy,
		time.Duration(cfg.HTTPMinDelaySeconds*float64(time.Second)),
		time.Duration(cfg.HTTPMaxDelaySeconds*float64(time.Second)))

	source := scraper.NewSource(fetcher, cfg.City, cfg.Areas, cfg.AreaCoords)
	log.Printf("Built %d search targets", len(source.Targets))

	dispatch := buildDispatcher(cfg, clients)

	pipeline := matcher.NewPipeline(cfg.Criteria(), cfg.Preferences(), cfg.SoftMatchThreshold, store, dispatch)
	if archive != nil {
		pipeline.Archive = archive
	}

	cycle := func(ctx context.Context) error {
		return runCycle(ctx, store, archive, source, pipeline)
	}

	if *runOnce {
		log.Println("Running single scan...")
		cycleCtx, cancel := context.WithTimeout(ctx, cfg.CycleTimeout())
		defer cancel()
		if err := cycle(cycleCtx); err != nil {
			log.Fatalf("Scan failed: %v", err)
		}
		log.Println("Scan complete!")
		return
	}

	// Daemon mode
	sched := scheduler.New(cycle, cfg.ScanInterval(), cfg.ScanCron, cfg.CycleTimeout())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	if cfg.HealthPort > 0 {
		healthSrv := health.NewServer(cfg.HealthPort, sched)
		go func() {
			if err := healthSrv.Start(); err != nil {
				log.Printf("Health server error: %v", err)
			}
		}()
		defer healthSrv.Stop()
		log.Printf("Health endpoint on :%d/health", cfg.HealthPort)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

// runCycle is one full fetch+match pass with run bookkeeping.
func runCycle(ctx context.Context, store *storage.SQLiteStore, archive *storage.PostgresArchive, source *scraper.Source, pipeline *matcher.Pipeline) error {
	run := &models.ScanRun{
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	runID, err := store.CreateRun(run)
	if err != nil {
		return err
	}
	run.ID = runID

	var pgRunID int64
	if archive != nil {
		if id, err := archive.CreateRun(ctx, run); err != nil {
			log.Printf("Warning: archive run create failed: %v", err)
		} else {
			pgRunID = id
		}
	}

	listings, fetchErr := source.FetchCycle(ctx)
	stats := pipeline.ProcessCycle(ctx, listings)

	now := time.Now()
	run.FinishedAt = &now
	run.Status = models.RunStatusCompleted
	if fetchErr != nil {
		run.Status = models.RunStatusFailed
		run.ErrorsCount++
	}
	run.CardsSeen = stats.CardsSeen
	run.NewListings = stats.NewListings
	run.AlertsSent = stats.AlertsSent
	run.ErrorsCount += stats.Errors

	if err := store.UpdateRun(run); err != nil {
		log.Printf("Warning: run update failed: %v", err)
	}
	if archive != nil && pgRunID != 0 {
		if err := archive.UpdateRun(ctx, pgRunID, run); err != nil {
			log.Printf("Warning: archive run update failed: %v", err)
		}
	}

	log.Printf("Cycle done: %d cards, %d new, %d alerts, %d errors",
		stats.CardsSeen, stats.NewListings, stats.AlertsSent, stats.Errors)

	if fetchErr != nil {
		return fetchErr
	}
	return nil
}

// buildDispatcher assembles the channels that have credentials, in the
// configured fallback order.
func buildDispatcher(cfg *config.Config, clients *httputil.Clients) *notifier.Dispatcher {
	var channels []notifier.Channel

	if cfg.WhatsApp.PhoneNumberID != "" && cfg.WhatsApp.AccessToken != "" {
		channels = append(channels, notifier.NewWhatsAppChannel(
			clients.API, cfg.WhatsApp.PhoneNumberID, cfg.WhatsApp.AccessToken, cfg.NotifyPhoneE164))
	}
	if cfg.Twilio.AccountSID != "" && cfg.Twilio.AuthToken != "" && cfg.Twilio.FromNumber != "" {
		channels = append(channels, notifier.NewTwilioChannel(
			clients.API, cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber, cfg.NotifyPhoneE164))
	}
	if cfg.AMQP.URL != "" {
		channels = append(channels, notifier.NewAMQPChannel(cfg.AMQP.URL, cfg.AMQP.Queue))
	}

	order := cfg.NotifyChannels
	if len(order) == 0 {
		order = []string{"WHATSAPP", "SMS", "QUEUE"}
	}

	log.Printf("Notifier channels available: %d, order: %v", len(channels), order)
	return notifier.NewDispatcher(order, channels...)
}
