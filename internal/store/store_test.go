package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stellar-aggregon/aggregon/internal/domain"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustCreditAsset(t *testing.T, code, issuer string) domain.Asset {
	t.Helper()
	a, err := domain.NewCreditAsset(code, issuer)
	require.NoError(t, err)
	return a
}

func TestUpsertAssetIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	usd := mustCreditAsset(t, "USD", "GISSUERONE")

	id1, err := s.UpsertAsset(ctx, usd)
	require.NoError(t, err)
	id2, err := s.UpsertAsset(ctx, usd)
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestUpsertOfferDiscardsStaleLedger(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	usd := mustCreditAsset(t, "USD", "GISSUERONE")

	fresh := domain.Offer{
		ID:                 1,
		Seller:             "GSELLER",
		Selling:            domain.NativeAsset,
		Buying:             usd,
		Amount:             decimal.NewFromInt(100),
		PriceN:             1,
		PriceD:             1,
		Price:              decimal.NewFromInt(1),
		LastModifiedLedger: 100,
	}
	require.NoError(t, s.UpsertOffer(ctx, fresh))

	stale := fresh
	stale.Amount = decimal.NewFromInt(999)
	stale.LastModifiedLedger = 50
	require.NoError(t, s.UpsertOffer(ctx, stale))

	got, err := s.GetOffer(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.Amount.Equal(decimal.NewFromInt(100)), "stale update must be discarded")

	newer := fresh
	newer.Amount = decimal.NewFromInt(50)
	newer.LastModifiedLedger = 200
	require.NoError(t, s.UpsertOffer(ctx, newer))

	got, err = s.GetOffer(ctx, 1)
	require.NoError(t, err)
	require.True(t, got.Amount.Equal(decimal.NewFromInt(50)), "newer update must apply")
}

func TestDeleteOfferRemovesRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	usd := mustCreditAsset(t, "USD", "GISSUERONE")

	o := domain.Offer{
		ID: 5, Seller: "GSELLER", Selling: domain.NativeAsset, Buying: usd,
		Amount: decimal.NewFromInt(10), PriceN: 1, PriceD: 1, Price: decimal.NewFromInt(1), LastModifiedLedger: 1,
	}
	require.NoError(t, s.UpsertOffer(ctx, o))
	require.NoError(t, s.DeleteOffer(ctx, 5))

	got, err := s.GetOffer(ctx, 5)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestActiveOrderbookOrdersBidsDescendingAsksAscending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	usd := mustCreditAsset(t, "USD", "GISSUERONE")

	// Asks: selling native for usd.
	asks := []decimal.Decimal{decimal.NewFromFloat(1.05), decimal.NewFromFloat(1.01), decimal.NewFromFloat(1.10)}
	for i, p := range asks {
		require.NoError(t, s.UpsertOffer(ctx, domain.Offer{
			ID: int64(100 + i), Seller: "GSELLER", Selling: domain.NativeAsset, Buying: usd,
			Amount: decimal.NewFromInt(10), PriceN: 1, PriceD: 1, Price: p, LastModifiedLedger: 1,
		}))
	}

	// Bids: selling usd for native.
	bids := []decimal.Decimal{decimal.NewFromFloat(0.90), decimal.NewFromFloat(0.95), decimal.NewFromFloat(0.80)}
	for i, p := range bids {
		require.NoError(t, s.UpsertOffer(ctx, domain.Offer{
			ID: int64(200 + i), Seller: "GSELLER", Selling: usd, Buying: domain.NativeAsset,
			Amount: decimal.NewFromInt(10), PriceN: 1, PriceD: 1, Price: p, LastModifiedLedger: 1,
		}))
	}

	gotBids, gotAsks, _, err := s.ActiveOrderbook(ctx, domain.NativeAsset, usd)
	require.NoError(t, err)
	require.Len(t, gotAsks, 3)
	require.Len(t, gotBids, 3)

	for i := 1; i < len(gotAsks); i++ {
		require.True(t, gotAsks[i].Price.GreaterThanOrEqual(gotAsks[i-1].Price), "asks must be ascending")
	}
	for i := 1; i < len(gotBids); i++ {
		require.True(t, gotBids[i].Price.LessThanOrEqual(gotBids[i-1].Price), "bids must be descending")
	}
}

func TestCaptureSnapshotComputesSpreadAndMidPrice(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	usd := mustCreditAsset(t, "USD", "GISSUERONE")

	require.NoError(t, s.UpsertOffer(ctx, domain.Offer{
		ID: 1, Seller: "GSELLER", Selling: domain.NativeAsset, Buying: usd,
		Amount: decimal.NewFromInt(10), PriceN: 1, PriceD: 1, Price: decimal.NewFromFloat(1.10), LastModifiedLedger: 1,
	}))
	require.NoError(t, s.UpsertOffer(ctx, domain.Offer{
		ID: 2, Seller: "GSELLER", Selling: usd, Buying: domain.NativeAsset,
		Amount: decimal.NewFromInt(10), PriceN: 1, PriceD: 1, Price: decimal.NewFromFloat(0.90), LastModifiedLedger: 1,
	}))

	snap, err := s.CaptureSnapshot(ctx, domain.NativeAsset, usd, 42)
	require.NoError(t, err)
	require.True(t, snap.Spread.Equal(decimal.NewFromFloat(0.20)), "got spread %s", snap.Spread)
	require.True(t, snap.MidPrice.Equal(decimal.NewFromFloat(1.00)), "got mid %s", snap.MidPrice)
	require.Equal(t, int64(42), snap.LedgerSequence)
}

func TestRecentSnapshotsReturnsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	usd := mustCreditAsset(t, "USD", "GISSUERONE")

	require.NoError(t, s.UpsertOffer(ctx, domain.Offer{
		ID: 1, Seller: "GSELLER", Selling: domain.NativeAsset, Buying: usd,
		Amount: decimal.NewFromInt(10), PriceN: 1, PriceD: 1, Price: decimal.NewFromFloat(1.0), LastModifiedLedger: 1,
	}))

	_, err := s.CaptureSnapshot(ctx, domain.NativeAsset, usd, 1)
	require.NoError(t, err)
	_, err = s.CaptureSnapshot(ctx, domain.NativeAsset, usd, 2)
	require.NoError(t, err)

	snaps, err := s.RecentSnapshots(ctx, domain.NativeAsset, usd, 10)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	require.Equal(t, int64(2), snaps[0].LedgerSequence)
}

func TestArchiveOffersOlderThanMovesRowsOut(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	usd := mustCreditAsset(t, "USD", "GISSUERONE")

	require.NoError(t, s.UpsertOffer(ctx, domain.Offer{
		ID: 1, Seller: "GSELLER", Selling: domain.NativeAsset, Buying: usd,
		Amount: decimal.NewFromInt(10), PriceN: 1, PriceD: 1, Price: decimal.NewFromFloat(1.0), LastModifiedLedger: 1,
	}))

	// Force updated_at into the past by writing directly, since UpsertOffer
	// always stamps "now".
	past := time.Now().UTC().AddDate(0, 0, -60).Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `UPDATE offers SET updated_at = ? WHERE offer_id = 1`, past)
	require.NoError(t, err)

	archived, err := s.ArchiveOffersOlderThan(ctx, 30)
	require.NoError(t, err)
	require.Equal(t, int64(1), archived)

	got, err := s.GetOffer(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestCursorLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetCursor(ctx, "horizon_offers")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SetCursor(ctx, "horizon_offers", "12345-1"))
	val, ok, err := s.GetCursor(ctx, "horizon_offers")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "12345-1", val)

	require.NoError(t, s.ClearCursor(ctx, "horizon_offers"))
	_, ok, err = s.GetCursor(ctx, "horizon_offers")
	require.NoError(t, err)
	require.False(t, ok)
}
