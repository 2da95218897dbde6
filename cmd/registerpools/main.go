// Command registerpools admits every pool listed in pools-<network>.json
// into a network's router contract instance, reconstituted from its
// deployment artifact (§6).
package main

import (
	"flag"

	"github.com/stellar-aggregon/aggregon/internal/contract"
	"github.com/stellar-aggregon/aggregon/internal/deployment"
	"github.com/stellar-aggregon/aggregon/pkg/logger"
)

func main() {
	network := flag.String("network", "testnet", "target network (testnet|futurenet|mainnet)")
	flag.Parse()

	log := logger.New(logger.Config{Level: "info", Pretty: true})

	artifact, err := deployment.LoadArtifact(*network)
	if err != nil {
		log.Fatal().Err(err).Str("network", *network).Msg("failed to load deployment artifact; run deploy first")
	}

	poolList, err := deployment.LoadPoolList(*network)
	if err != nil {
		log.Fatal().Err(err).Str("network", *network).Msg("failed to load pool list")
	}

	router := contract.New(nil)
	if err := router.Initialize(artifact.Admin, artifact.FeeRateBps, artifact.FeeRecipient); err != nil {
		log.Fatal().Err(err).Msg("failed to reconstitute contract instance from artifact")
	}

	var registered, failed int
	for _, p := range poolList.Pools {
		if err := router.RegisterPool(artifact.Admin, p.Address); err != nil {
			log.Error().Err(err).Str("pool", p.Address).Msg("pool registration failed")
			failed++
			continue
		}
		registered++
		log.Info().Str("pool", p.Address).Str("asset_a", p.AssetA).Str("asset_b", p.AssetB).Msg("pool registered")
	}

	log.Info().
		Str("network", *network).
		Int("registered", registered).
		Int("failed", failed).
		Uint32("pool_count", router.GetPoolCount()).
		Msg("pool registration complete")

	if failed > 0 {
		log.Fatal().Int("failed", failed).Msg("one or more pool registrations failed")
	}
}
