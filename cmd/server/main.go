// Command server runs the quote/orderbook REST API (§4.7, §6): it opens
// the same state database the indexer process writes, maintains its own
// warm pool-registry refresh loop so quotes keep flowing at last-known
// reserves if Soroban RPC degrades, and serves until a shutdown signal
// drains in-flight requests.
package main

import (
	"context"
	"flag"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stellar-aggregon/aggregon/internal/analytics"
	"github.com/stellar-aggregon/aggregon/internal/api"
	"github.com/stellar-aggregon/aggregon/internal/cache"
	"github.com/stellar-aggregon/aggregon/internal/config"
	"github.com/stellar-aggregon/aggregon/internal/deployment"
	"github.com/stellar-aggregon/aggregon/internal/domain"
	"github.com/stellar-aggregon/aggregon/internal/poolregistry"
	"github.com/stellar-aggregon/aggregon/internal/routing"
	"github.com/stellar-aggregon/aggregon/internal/sorobanclient"
	"github.com/stellar-aggregon/aggregon/internal/store"
	"github.com/stellar-aggregon/aggregon/pkg/logger"
)

func main() {
	dataDir := flag.String("data-dir", "", "override the state database directory")
	network := flag.String("network", "testnet", "network whose pools-<network>.json seeds the registry at startup")
	flag.Parse()

	cfg, err := config.Load(*dataDir)
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	log.Info().Msg("starting api server")

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open state database")
	}
	defer st.DB().Close()

	sorobanClient := sorobanclient.New(cfg.SorobanRPCURL, cfg.NetworkPassphrase, log)
	pools := poolregistry.New(sorobanClient, cfg.MaxPoolStaleIntervals, log)
	seedPoolRegistry(pools, *network, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	stopRefresh := startWarmRefreshLoop(ctx, pools, cfg.PoolRefreshInterval, log)
	defer stopRefresh()

	engine := routing.New(st, pools, cfg.RouterFeeRateBps, log)
	analyticsSvc := analytics.New(analytics.Config{Store: st, Log: log})

	srv := api.New(api.Config{
		Store:     st,
		Routing:   engine,
		Cache:     cache.New(),
		Health:    staticHealth{},
		Analytics: analyticsSvc,
		Log:       log,
		Addr:      ":" + strconv.Itoa(cfg.Port),
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Fatal().Err(err).Msg("api server exited")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("api server started")

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, draining in-flight requests")
	if err := srv.Shutdown(15 * time.Second); err != nil {
		log.Error().Err(err).Msg("error during graceful shutdown")
	}
}

// seedPoolRegistry loads the last-known pool set from pools-<network>.json
// so quotes are servable immediately at startup, before the indexer
// process's on-chain reg_pool observations (or this process's own first
// refresh cycle) have run.
func seedPoolRegistry(pools *poolregistry.Registry, network string, log zerolog.Logger) {
	list, err := deployment.LoadPoolList(network)
	if err != nil {
		log.Warn().Err(err).Str("network", network).Msg("no pool list found to seed registry; starting empty")
		return
	}
	for _, p := range list.Pools {
		assetA, err := domain.ParseAsset(p.AssetA)
		if err != nil {
			log.Error().Err(err).Str("pool", p.Address).Msg("skipping pool with unparseable asset_a")
			continue
		}
		assetB, err := domain.ParseAsset(p.AssetB)
		if err != nil {
			log.Error().Err(err).Str("pool", p.Address).Msg("skipping pool with unparseable asset_b")
			continue
		}
		pools.Register(p.Address, domain.PoolDescriptor{
			Address: p.Address,
			AssetA:  assetA,
			AssetB:  assetB,
			FeeBps:  p.FeeBps,
			Type:    domain.PoolTypeConstantProduct,
		})
	}
	log.Info().Int("pool_count", len(list.Pools)).Str("network", network).Msg("seeded pool registry from artifact")
}

// startWarmRefreshLoop keeps pool reserves current independently of the
// indexer process, so this server degrades gracefully (serving slightly
// stale quotes) rather than failing outright if the indexer is down.
func startWarmRefreshLoop(ctx context.Context, pools *poolregistry.Registry, interval time.Duration, log zerolog.Logger) func() {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)

	go func() {
		defer close(done)
		for {
			select {
			case <-ticker.C:
				if err := pools.RefreshAll(ctx); err != nil {
					log.Warn().Err(err).Msg("warm pool refresh cycle failed")
				}
			case <-ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		<-done
	}
}

// staticHealth reports zero indexer lag for a server process that does
// not itself run the indexer; the indexer process's own /health endpoint
// is the authoritative lag figure (§6).
type staticHealth struct{}

func (staticHealth) IndexerLagLedgers() int64 { return 0 }
