package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/maxliesegang/telraam-data-collector/internal/collector"
	"github.com/maxliesegang/telraam-data-collector/internal/config"
	"github.com/maxliesegang/telraam-data-collector/internal/runlog"
	"github.com/maxliesegang/telraam-data-collector/internal/storage"
	"github.com/maxliesegang/telraam-data-collector/internal/telraam"
	"github.com/maxliesegang/telraam-data-collector/internal/web"
)

func main() {
	// Local development overrides; in deployment the environment is set
	// by the scheduler.
	_ = godotenv.Load()

	if os.Getenv("LOG_FORMAT") == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}

	if err := run(); err != nil {
		log.Fatalf("Collection run failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log.Printf("Config loaded: %d devices, %d day window, data dir %s",
		len(cfg.Devices), cfg.FetchDays, cfg.DataDir)

	client := telraam.NewClient(cfg.APIBaseURL, cfg.APIKey)
	store := storage.New(cfg.DataDir, web.NewLanding("Telraam Traffic Data"))
	c := collector.New(client, store, collector.Options{
		Devices:     cfg.Devices,
		FetchDays:   cfg.FetchDays,
		DeviceDelay: cfg.DeviceDelay,
	})

	ctx := context.Background()
	summary, runErr := c.Run(ctx)

	if cfg.RunlogPath != "" && summary != nil {
		recordRun(ctx, cfg, summary)
	}

	return runErr
}

// recordRun stores the run summary in the run-history database. Best-effort:
// a broken run log must not turn a successful collection into a failure.
func recordRun(ctx context.Context, cfg *config.Config, summary *collector.Summary) {
	db, err := runlog.Open(cfg.RunlogPath)
	if err != nil {
		log.Warnf("Run log unavailable: %v", err)
		return
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		log.Warnf("Run log schema: %v", err)
		return
	}
	if err := db.Record(ctx, summary); err != nil {
		log.Warnf("Failed to record run: %v", err)
		return
	}

	retention := time.Duration(cfg.RunlogRetentionDays) * 24 * time.Hour
	if err := db.Prune(ctx, retention); err != nil {
		log.Warnf("Failed to prune run log: %v", err)
	}
}
