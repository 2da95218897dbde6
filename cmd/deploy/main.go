// Command deploy bootstraps a router contract instance for one network:
// it initializes the in-process contract state machine (internal/contract
// — there is no idiomatic way to compile/deploy Soroban WASM from Go, so
// this records the intended on-chain configuration rather than performing
// the real deployment) and writes deployment-<network>.json so the other
// operational CLIs can reconstitute an equivalent instance (§6).
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/stellar/go/strkey"

	"github.com/stellar-aggregon/aggregon/internal/config"
	"github.com/stellar-aggregon/aggregon/internal/contract"
	"github.com/stellar-aggregon/aggregon/internal/deployment"
	"github.com/stellar-aggregon/aggregon/pkg/logger"
)

func main() {
	network := flag.String("network", "testnet", "target network (testnet|futurenet|mainnet)")
	admin := flag.String("admin", "", "admin account address (required)")
	feeRecipient := flag.String("fee-recipient", "", "fee recipient account address (required)")
	feeRateBps := flag.Int64("fee-rate-bps", 30, "protocol fee rate in basis points")
	flag.Parse()

	log := logger.New(logger.Config{Level: "info", Pretty: true})

	if *admin == "" || *feeRecipient == "" {
		log.Fatal().Msg("--admin and --fee-recipient are required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	router := contract.New(nil)
	if err := router.Initialize(*admin, *feeRateBps, *feeRecipient); err != nil {
		log.Fatal().Err(err).Msg("contract initialization failed")
	}

	contractID, err := newContractID()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to generate contract id")
	}

	artifact := &deployment.Artifact{
		ContractID:   contractID,
		Network:      *network,
		RPCURL:       cfg.SorobanRPCURL,
		DeployedAt:   time.Now().UTC(),
		GitCommit:    gitCommit(),
		Version:      contract.ContractVersion,
		Admin:        *admin,
		FeeRateBps:   *feeRateBps,
		FeeRecipient: *feeRecipient,
	}
	if err := deployment.SaveArtifact(artifact); err != nil {
		log.Fatal().Err(err).Msg("failed to write deployment artifact")
	}

	log.Info().
		Str("network", *network).
		Str("contract_id", contractID).
		Str("artifact", deployment.ArtifactPath(*network)).
		Msg("router contract deployed")
}

// newContractID mints a syntactically valid Soroban contract strkey for a
// freshly initialized instance. It does not correspond to a real on-chain
// address until the artifact is used to deploy the actual WASM out of
// band; cmd/verify only simulates a swap against the recorded ID and does
// not check the deployed bytecode.
func newContractID() (string, error) {
	var payload [32]byte
	if _, err := rand.Read(payload[:]); err != nil {
		return "", fmt.Errorf("generate contract id entropy: %w", err)
	}
	return strkey.Encode(strkey.VersionByteContract, payload[:])
}

// gitCommit reads the current commit hash for the artifact's provenance
// trail; returns "unknown" when not running inside a git checkout.
func gitCommit() string {
	out, err := exec.Command("git", "rev-parse", "HEAD").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}
