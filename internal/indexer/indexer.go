// Package indexer keeps the state store's offer set convergent with
// Horizon's reported state (§4.3). It runs in exactly one of two modes —
// polling or streaming — and drives the periodic snapshot and pool-refresh
// jobs on a cron schedule alongside it.
package indexer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/stellar-aggregon/aggregon/internal/domain"
	"github.com/stellar-aggregon/aggregon/internal/events"
)

const (
	fetchPageLimit = 200
	cursorKey      = "offers"

	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// PoolRefresher is the subset of poolregistry.Registry the indexer drives
// on its own cron schedule.
type PoolRefresher interface {
	RefreshAll(ctx context.Context) error
}

// Config bundles a Service's dependencies and tuning knobs.
type Config struct {
	Horizon             domain.HorizonClient
	Store               domain.StateStore
	Pools               PoolRefresher
	Bus                 *events.Bus
	Mode                string // "poll" or "stream"
	PollInterval        time.Duration
	SnapshotInterval    time.Duration
	PoolRefreshInterval time.Duration
	Log                 zerolog.Logger
}

// Service ingests Horizon offer state into the store, following the
// ticker + stop-channel + sync.Once lifecycle used throughout the corpus
// for long-running background services.
type Service struct {
	horizon domain.HorizonClient
	store   domain.StateStore
	pools   PoolRefresher
	bus     *events.Bus
	mode    string
	log     zerolog.Logger

	pollInterval        time.Duration
	snapshotInterval    time.Duration
	poolRefreshInterval time.Duration

	ticker   *time.Ticker
	cron     *cron.Cron
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	lastLedgerSeen atomic.Int64
	latestHorizon  atomic.Int64
}

// New builds a Service; call Start to begin ingestion.
func New(cfg Config) *Service {
	mode := cfg.Mode
	if mode == "" {
		mode = "poll"
	}
	return &Service{
		horizon:             cfg.Horizon,
		store:               cfg.Store,
		pools:               cfg.Pools,
		bus:                 cfg.Bus,
		mode:                mode,
		pollInterval:        cfg.PollInterval,
		snapshotInterval:    cfg.SnapshotInterval,
		poolRefreshInterval: cfg.PoolRefreshInterval,
		log:                 cfg.Log.With().Str("component", "indexer").Logger(),
	}
}

// Start begins ingestion and the scheduled maintenance jobs. It returns
// once the background goroutines are launched; it does not block.
func (s *Service) Start(ctx context.Context) error {
	s.stopChan = make(chan struct{})

	s.cron = cron.New(cron.WithSeconds())
	s.scheduleJob(everySeconds(s.snapshotInterval), func() { s.runSnapshotCycle(ctx) })
	if s.pools != nil {
		s.scheduleJob(everySeconds(s.poolRefreshInterval), func() { s.runPoolRefresh(ctx) })
	}
	s.cron.Start()

	switch s.mode {
	case "stream":
		s.wg.Add(1)
		go s.streamLoop(ctx)
	default:
		s.wg.Add(1)
		go s.pollLoop(ctx)
	}

	s.log.Info().Str("mode", s.mode).Msg("indexer started")
	return nil
}

// Stop drains the background goroutines and the cron scheduler. Safe to
// call multiple times.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		if s.stopChan != nil {
			close(s.stopChan)
		}
		if s.ticker != nil {
			s.ticker.Stop()
		}
		s.wg.Wait()
		if s.cron != nil {
			cronCtx := s.cron.Stop()
			<-cronCtx.Done()
		}
		s.log.Info().Msg("indexer stopped")
	})
}

// IndexerLagLedgers reports how many ledgers behind Horizon's most recent
// reported ledger the store's offer set currently is. It satisfies
// internal/api.HealthReporter.
func (s *Service) IndexerLagLedgers() int64 {
	latest := s.latestHorizon.Load()
	seen := s.lastLedgerSeen.Load()
	if latest == 0 || seen == 0 || latest < seen {
		return 0
	}
	return latest - seen
}

func (s *Service) scheduleJob(spec string, fn func()) {
	if _, err := s.cron.AddFunc(spec, fn); err != nil {
		s.log.Error().Err(err).Str("spec", spec).Msg("failed to schedule job")
	}
}

// everySeconds renders a cron.WithSeconds spec that fires once per
// interval, floored to whole seconds.
func everySeconds(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs <= 0 {
		secs = 1
	}
	return "@every " + time.Duration(secs*int64(time.Second)).String()
}

func (s *Service) emitLag() {
	if s.bus == nil {
		return
	}
	s.bus.Emit("indexer", &events.IndexerLagData{LagLedgers: s.IndexerLagLedgers(), Mode: s.mode})
}
