// Package deployment reads and writes the per-network JSON artifacts the
// operational CLIs (cmd/deploy, cmd/registerpools, cmd/upgrade,
// cmd/verify) coordinate through: deployment-<network>.json
// records where the router contract is deployed, pools-<network>.json
// lists the AMM pools it should know about (§6).
package deployment

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Artifact is the persisted record of a router contract deployment. Admin/
// FeeRateBps/FeeRecipient mirror what was passed to the contract's
// Initialize entrypoint at deploy time, so later CLI invocations
// (registerpools) can reconstitute an equivalent contract instance
// without re-running deploy.
type Artifact struct {
	ContractID   string    `json:"contract_id"`
	Network      string    `json:"network"`
	RPCURL       string    `json:"rpc_url"`
	DeployedAt   time.Time `json:"deployed_at"`
	GitCommit    string    `json:"git_commit"`
	Version      uint32    `json:"version"`
	Admin        string    `json:"admin"`
	FeeRateBps   int64     `json:"fee_rate_bps"`
	FeeRecipient string    `json:"fee_recipient"`
}

// PoolEntry is one AMM pool registerpools should admit into the router's
// registered set.
type PoolEntry struct {
	Address string `json:"address"`
	AssetA  string `json:"asset_a"`
	AssetB  string `json:"asset_b"`
	FeeBps  int64  `json:"fee_bps"`
}

// PoolList is the contents of pools-<network>.json.
type PoolList struct {
	Network string      `json:"network"`
	Pools   []PoolEntry `json:"pools"`
}

// ArtifactPath returns the conventional filename for a network's
// deployment artifact.
func ArtifactPath(network string) string {
	return fmt.Sprintf("deployment-%s.json", network)
}

// PoolListPath returns the conventional filename for a network's pool
// list.
func PoolListPath(network string) string {
	return fmt.Sprintf("pools-%s.json", network)
}

// LoadArtifact reads deployment-<network>.json.
func LoadArtifact(network string) (*Artifact, error) {
	var a Artifact
	if err := loadJSON(ArtifactPath(network), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveArtifact writes deployment-<network>.json, overwriting any existing
// file.
func SaveArtifact(a *Artifact) error {
	return saveJSON(ArtifactPath(a.Network), a)
}

// LoadPoolList reads pools-<network>.json.
func LoadPoolList(network string) (*PoolList, error) {
	var l PoolList
	if err := loadJSON(PoolListPath(network), &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func loadJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func saveJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
