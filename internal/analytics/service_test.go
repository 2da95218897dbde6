package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar-aggregon/aggregon/internal/domain"
)

type fakeStore struct {
	domain.StateStore
	snapshots []domain.OrderbookSnapshot
}

func (f *fakeStore) RecentSnapshots(ctx context.Context, base, counter domain.Asset, limit int) ([]domain.OrderbookSnapshot, error) {
	if limit > len(f.snapshots) {
		limit = len(f.snapshots)
	}
	return f.snapshots[:limit], nil
}

func usdAsset(t *testing.T) domain.Asset {
	t.Helper()
	a, err := domain.NewCreditAsset("USDC", "GISSUERUSDCXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX")
	require.NoError(t, err)
	return a
}

// newDescendingSnapshots builds count snapshots, newest first (matching
// RecentSnapshots' contract), with mid-price falling by step per step back
// in time (the oldest snapshot sits at base).
func newDescendingSnapshots(count int, base float64, step float64) []domain.OrderbookSnapshot {
	out := make([]domain.OrderbookSnapshot, count)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		price := base + step*float64(count-1-i)
		out[i] = domain.OrderbookSnapshot{
			MidPrice:     decimal.NewFromFloat(price),
			SnapshotTime: now.Add(-time.Duration(i) * time.Minute),
		}
	}
	return out
}

func TestComputeReturnsPairNotFoundWithNoHistory(t *testing.T) {
	svc := New(Config{Store: &fakeStore{}, Log: zerolog.Nop()})
	_, err := svc.Compute(context.Background(), domain.NativeAsset, usdAsset(t))
	require.Error(t, err)
	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.CodePairNotFound, derr.Code)
}

func TestComputeProducesSMAAndVolatility(t *testing.T) {
	store := &fakeStore{snapshots: newDescendingSnapshots(50, 1.0, 0.01)}
	svc := New(Config{Store: store, Log: zerolog.Nop(), SMAPeriod: 10, Lookback: 50})

	result, err := svc.Compute(context.Background(), domain.NativeAsset, usdAsset(t))
	require.NoError(t, err)
	assert.Equal(t, 50, result.SampleCount)
	assert.True(t, result.LatestMidPrice.Equal(store.snapshots[0].MidPrice))
	assert.False(t, result.SMA.IsZero())
	assert.True(t, result.Volatility.GreaterThanOrEqual(decimal.Zero))
}

func TestComputeHandlesShortHistoryGracefully(t *testing.T) {
	store := &fakeStore{snapshots: newDescendingSnapshots(3, 1.0, 0.01)}
	svc := New(Config{Store: store, Log: zerolog.Nop(), SMAPeriod: 20, Lookback: 50})

	result, err := svc.Compute(context.Background(), domain.NativeAsset, usdAsset(t))
	require.NoError(t, err)
	assert.Equal(t, 3, result.SampleCount)
	assert.False(t, result.SMA.IsZero())
}
