// Command upgrade re-stamps a network's deployment artifact after new
// contract bytecode has been built and deployed out of band: storage
// schema changes are additive-only and rollback is unsupported (§6), so
// this only records the new version/commit — it never mutates registered
// pools or admin/fee configuration.
package main

import (
	"flag"
	"os/exec"
	"strings"
	"time"

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

	if contract.ContractVersion <= artifact.Version {
		log.Fatal().
			Uint32("artifact_version", artifact.Version).
			Uint32("binary_version", contract.ContractVersion).
			Msg("binary is not newer than the deployed artifact; nothing to upgrade")
	}

	previousVersion := artifact.Version
	artifact.Version = contract.ContractVersion
	artifact.DeployedAt = time.Now().UTC()
	artifact.GitCommit = gitCommit()

	if err := deployment.SaveArtifact(artifact); err != nil {
		log.Fatal().Err(err).Msg("failed to write upgraded deployment artifact")
	}

	log.Info().
		Str("network", *network).
		Uint32("previous_version", previousVersion).
		Uint32("new_version", artifact.Version).
		Msg("deployment artifact upgraded")
}

func gitCommit() string {
	out, err := exec.Command("git", "rev-parse", "HEAD").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}
