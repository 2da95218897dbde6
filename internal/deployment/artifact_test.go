package deployment

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })
}

func TestSaveAndLoadArtifactRoundTrips(t *testing.T) {
	withTempDir(t)

	a := &Artifact{
		ContractID: "CABC123",
		Network:    "testnet",
		RPCURL:     "https://soroban-testnet.stellar.org",
		DeployedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		GitCommit:  "deadbeef",
		Version:    1,
	}
	require.NoError(t, SaveArtifact(a))

	loaded, err := LoadArtifact("testnet")
	require.NoError(t, err)
	assert.Equal(t, a.ContractID, loaded.ContractID)
	assert.Equal(t, a.Network, loaded.Network)
	assert.True(t, a.DeployedAt.Equal(loaded.DeployedAt))
}

func TestLoadArtifactMissingFile(t *testing.T) {
	withTempDir(t)
	_, err := LoadArtifact("nonexistent")
	require.Error(t, err)
}

func TestLoadPoolList(t *testing.T) {
	withTempDir(t)
	raw := `{"network":"testnet","pools":[{"address":"CPOOL1","asset_a":"native","asset_b":"USDC:GISSUER","fee_bps":30}]}`
	require.NoError(t, os.WriteFile(PoolListPath("testnet"), []byte(raw), 0644))

	list, err := LoadPoolList("testnet")
	require.NoError(t, err)
	require.Len(t, list.Pools, 1)
	assert.Equal(t, "CPOOL1", list.Pools[0].Address)
	assert.Equal(t, int64(30), list.Pools[0].FeeBps)
}
