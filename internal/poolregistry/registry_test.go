package poolregistry

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar-aggregon/aggregon/internal/domain"
)

type stubSoroban struct {
	reserves map[string][3]int64
	failing  map[string]bool
}

func (s *stubSoroban) GetPoolReserves(ctx context.Context, poolAddress string) (int64, int64, int64, error) {
	if s.failing[poolAddress] {
		return 0, 0, 0, errors.New("simulated rpc failure")
	}
	r := s.reserves[poolAddress]
	return r[0], r[1], r[2], nil
}

func (s *stubSoroban) SimulateExecuteSwap(ctx context.Context, contractID string, amountIn int64, route domain.Route) (domain.ResourceEstimate, error) {
	return domain.ResourceEstimate{}, nil
}

func TestRegisterAndGet(t *testing.T) {
	r := New(&stubSoroban{}, 3, zerolog.Nop())
	usd, _ := domain.NewCreditAsset("USD", "GISSUER")

	r.Register("CPOOL1", domain.PoolDescriptor{AssetA: domain.NativeAsset, AssetB: usd})

	got, ok := r.Get("CPOOL1")
	require.True(t, ok)
	assert.Equal(t, "CPOOL1", got.Address)
}

func TestListForPairMatchesEitherDirection(t *testing.T) {
	r := New(&stubSoroban{}, 3, zerolog.Nop())
	usd, _ := domain.NewCreditAsset("USD", "GISSUER")
	r.Register("CPOOL1", domain.PoolDescriptor{AssetA: usd, AssetB: domain.NativeAsset})

	matches := r.ListForPair(domain.NativeAsset, usd)
	assert.Len(t, matches, 1)
}

func TestListForPairExcludesStalePools(t *testing.T) {
	r := New(&stubSoroban{}, 3, zerolog.Nop())
	usd, _ := domain.NewCreditAsset("USD", "GISSUER")
	r.Register("CPOOL1", domain.PoolDescriptor{AssetA: domain.NativeAsset, AssetB: usd, StaleRefresh: 4})

	matches := r.ListForPair(domain.NativeAsset, usd)
	assert.Empty(t, matches)
}

func TestRefreshAllUpdatesReservesAndResetsFailureCount(t *testing.T) {
	usd, _ := domain.NewCreditAsset("USD", "GISSUER")
	soroban := &stubSoroban{reserves: map[string][3]int64{"CPOOL1": {1000, 2000, 30}}}
	r := New(soroban, 3, zerolog.Nop())
	r.Register("CPOOL1", domain.PoolDescriptor{AssetA: domain.NativeAsset, AssetB: usd, StaleRefresh: 2})

	require.NoError(t, r.RefreshAll(context.Background()))

	got, ok := r.Get("CPOOL1")
	require.True(t, ok)
	assert.Equal(t, int64(30), got.FeeBps)
	assert.Equal(t, 0, got.StaleRefresh)
}

func TestRefreshAllIncrementsFailureCountIndependently(t *testing.T) {
	usd, _ := domain.NewCreditAsset("USD", "GISSUER")
	soroban := &stubSoroban{
		reserves: map[string][3]int64{"CPOOL2": {500, 500, 10}},
		failing:  map[string]bool{"CPOOL1": true},
	}
	r := New(soroban, 3, zerolog.Nop())
	r.Register("CPOOL1", domain.PoolDescriptor{AssetA: domain.NativeAsset, AssetB: usd})
	r.Register("CPOOL2", domain.PoolDescriptor{AssetA: domain.NativeAsset, AssetB: usd})

	require.NoError(t, r.RefreshAll(context.Background()))

	failing, _ := r.Get("CPOOL1")
	succeeding, _ := r.Get("CPOOL2")
	assert.Equal(t, 1, failing.StaleRefresh)
	assert.Equal(t, 0, succeeding.StaleRefresh)
}
