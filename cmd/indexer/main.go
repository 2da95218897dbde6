// Command indexer runs the long-lived ingestion process: internal/indexer's
// Service keeps the state store convergent with Horizon's offer set and
// drives the periodic snapshot and pool-refresh jobs on its own cron
// schedule, while a separate internal/reliability.Scheduler drives the
// daily archive/prune maintenance window (§6 process topology).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stellar-aggregon/aggregon/internal/config"
	"github.com/stellar-aggregon/aggregon/internal/events"
	"github.com/stellar-aggregon/aggregon/internal/horizonclient"
	"github.com/stellar-aggregon/aggregon/internal/indexer"
	"github.com/stellar-aggregon/aggregon/internal/poolregistry"
	"github.com/stellar-aggregon/aggregon/internal/reliability"
	"github.com/stellar-aggregon/aggregon/internal/sorobanclient"
	"github.com/stellar-aggregon/aggregon/internal/store"
	"github.com/stellar-aggregon/aggregon/pkg/logger"
)

// archiveWindowHour/Minute match the corpus's own 2 AM daily maintenance
// window.
const (
	archiveWindowHour   = 2
	archiveWindowMinute = 0
)

func main() {
	dataDir := flag.String("data-dir", "", "override the state database directory")
	healthPort := flag.Int("health-port", 8090, "port for this process's own /health endpoint (lag, mode)")
	flag.Parse()

	cfg, err := config.Load(*dataDir)
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open state database")
	}
	defer st.DB().Close()

	bus := events.NewBus()

	sorobanClient := sorobanclient.New(cfg.SorobanRPCURL, cfg.NetworkPassphrase, log)
	pools := poolregistry.New(sorobanClient, cfg.MaxPoolStaleIntervals, log)

	horizon := horizonclient.New(cfg.HorizonURL, cfg.HorizonRequestTimeout, log)

	svc := indexer.New(indexer.Config{
		Horizon:             horizon,
		Store:               st,
		Pools:               pools,
		Bus:                 bus,
		Mode:                string(cfg.IndexerMode),
		PollInterval:        cfg.PollInterval,
		SnapshotInterval:    cfg.SnapshotInterval,
		PoolRefreshInterval: cfg.PoolRefreshInterval,
		Log:                 log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start indexer")
	}

	maintenance := buildMaintenanceScheduler(cfg, st, log)
	maintenance.Start()

	healthSrv := startHealthServer(*healthPort, svc, string(cfg.IndexerMode), log)

	log.Info().
		Str("mode", string(cfg.IndexerMode)).
		Str("horizon_url", cfg.HorizonURL).
		Int("health_port", *healthPort).
		Msg("indexer process running")

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, draining")

	svc.Stop()
	maintenance.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down health server")
	}
}

// indexerHealthResponse mirrors internal/api's healthResponse shape for
// the lag/mode figures this process is authoritative for; cmd/server's
// own /health reports the same lag figure as a static zero and defers to
// this endpoint for the real value (§6).
type indexerHealthResponse struct {
	Status            string `json:"status"`
	Mode              string `json:"mode"`
	IndexerLagLedgers int64  `json:"indexer_lag_ledgers"`
}

// startHealthServer exposes this process's own /health with the
// authoritative indexer-lag figure, separately from cmd/server's REST
// API (§6 process topology: each long-lived process reports its own
// health).
func startHealthServer(port int, svc *indexer.Service, mode string, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		resp := indexerHealthResponse{Status: "healthy", Mode: mode, IndexerLagLedgers: svc.IndexerLagLedgers()}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	srv := &http.Server{Addr: ":" + strconv.Itoa(port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("indexer health server exited")
		}
	}()
	return srv
}

// buildMaintenanceScheduler wires the daily disk-space check and the
// archive/prune job, with S3 archival enabled only when a backup bucket
// is configured (§9, §12).
func buildMaintenanceScheduler(cfg *config.Config, st *store.Store, log zerolog.Logger) *reliability.Scheduler {
	sched := reliability.NewScheduler(log)

	var archiver *reliability.S3Archiver
	if cfg.S3BackupBucket != "" {
		a, err := reliability.NewS3Archiver(context.Background(), cfg.S3BackupBucket, log)
		if err != nil {
			log.Warn().Err(err).Msg("S3 archiver unavailable, archive/prune will only prune locally")
		} else {
			archiver = a
		}
	}

	archiveJob := reliability.NewArchivePruneJob(st, cfg.ArchiveRetentionDays, cfg.SnapshotRetentionDays, archiver)
	archiveJob.SetLogger(log)
	if err := sched.ScheduleDaily(archiveWindowHour, archiveWindowMinute, archiveJob); err != nil {
		log.Error().Err(err).Msg("failed to schedule archive/prune job")
	}

	maintenanceJob := reliability.NewDailyMaintenanceJob(st.DB(), log)
	if err := sched.ScheduleDaily(archiveWindowHour, archiveWindowMinute+5, maintenanceJob); err != nil {
		log.Error().Err(err).Msg("failed to schedule disk-space maintenance job")
	}

	return sched
}
