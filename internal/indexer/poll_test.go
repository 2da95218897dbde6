package indexer

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

// fakeHorizon stubs domain.HorizonClient with scripted FetchOffers pages;
// every other method panics since the poll path never calls them.
type fakeHorizon struct {
	domain.HorizonClient
	pages     [][]domain.Offer
	nextCur   []string
	fetchErrs []error
	calls     int
}

func (f *fakeHorizon) FetchOffers(ctx context.Context, cursor string, limit int) ([]domain.Offer, string, error) {
	i := f.calls
	f.calls++
	if i < len(f.fetchErrs) && f.fetchErrs[i] != nil {
		return nil, "", f.fetchErrs[i]
	}
	if i >= len(f.pages) {
		return nil, cursor, nil
	}
	return f.pages[i], f.nextCur[i], nil
}

// fakeStore stubs domain.StateStore with an in-memory offer map and
// cursor; every other method panics.
type fakeStore struct {
	domain.StateStore
	offers    map[int64]domain.Offer
	cursor    string
	pairs     []domain.TradingPair
	snapshots int
}

func newFakeStore() *fakeStore {
	return &fakeStore{offers: map[int64]domain.Offer{}}
}

func (f *fakeStore) GetCursor(ctx context.Context, key string) (string, bool, error) {
	return f.cursor, f.cursor != "", nil
}

func (f *fakeStore) SetCursor(ctx context.Context, key, value string) error {
	f.cursor = value
	return nil
}

func (f *fakeStore) ClearCursor(ctx context.Context, key string) error {
	f.cursor = ""
	return nil
}

func (f *fakeStore) GetOffer(ctx context.Context, offerID int64) (*domain.Offer, error) {
	o, ok := f.offers[offerID]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (f *fakeStore) UpsertOffer(ctx context.Context, o domain.Offer) error {
	f.offers[o.ID] = o
	return nil
}

func (f *fakeStore) DeleteOffer(ctx context.Context, offerID int64) error {
	delete(f.offers, offerID)
	return nil
}

func (f *fakeStore) AllActiveOffers(ctx context.Context) ([]domain.Offer, error) {
	out := make([]domain.Offer, 0, len(f.offers))
	for _, o := range f.offers {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeStore) ActivePairs(ctx context.Context) ([]domain.TradingPair, error) {
	return f.pairs, nil
}

func (f *fakeStore) CaptureSnapshot(ctx context.Context, base, counter domain.Asset, ledgerSeq int64) (*domain.OrderbookSnapshot, error) {
	f.snapshots++
	return &domain.OrderbookSnapshot{LedgerSequence: ledgerSeq}, nil
}

func testOffer(id, ledger int64) domain.Offer {
	return domain.Offer{
		ID:                 id,
		Seller:             "GSELLER",
		Selling:            domain.NativeAsset,
		Buying:             domain.Asset{Tag: domain.AssetCredit, Code: "USDC", Issuer: "GISSUER"},
		Amount:             decimal.NewFromInt(100),
		PriceN:             1,
		PriceD:             1,
		Price:              decimal.NewFromInt(1),
		LastModifiedLedger: ledger,
	}
}

func newTestService(t *testing.T, horizon domain.HorizonClient, store domain.StateStore) *Service {
	t.Helper()
	return New(Config{
		Horizon:      horizon,
		Store:        store,
		Mode:         "poll",
		PollInterval: time.Hour,
		Log:          zerolog.Nop(),
	})
}

func TestPollOnceUpsertsOffersAndAdvancesCursor(t *testing.T) {
	horizon := &fakeHorizon{
		pages:   [][]domain.Offer{{testOffer(1, 100), testOffer(2, 101)}},
		nextCur: []string{"c1"},
	}
	store := newFakeStore()
	svc := newTestService(t, horizon, store)

	svc.pollOnce(context.Background())

	require.Len(t, store.offers, 2)
	assert.Equal(t, "c1", store.cursor)
	assert.Equal(t, int64(101), svc.lastLedgerSeen.Load())
}

func TestPollOnceDiscardsStaleOffer(t *testing.T) {
	store := newFakeStore()
	store.offers[1] = testOffer(1, 500)
	horizon := &fakeHorizon{
		pages:   [][]domain.Offer{{testOffer(1, 100)}},
		nextCur: []string{"c1"},
	}
	svc := newTestService(t, horizon, store)

	svc.pollOnce(context.Background())

	assert.Equal(t, int64(500), store.offers[1].LastModifiedLedger)
}

func TestColdStartPrunesUnseenOffers(t *testing.T) {
	store := newFakeStore()
	store.offers[1] = testOffer(1, 10)
	store.offers[2] = testOffer(2, 20)
	store.cursor = "stale-cursor"

	horizon := &fakeHorizon{
		fetchErrs: []error{domain.Wrap(domain.KindFatalExternal, "horizon_fatal", "fetch offers", assertErr{})},
		pages:     [][]domain.Offer{nil, {testOffer(2, 30)}},
		nextCur:   []string{"", "c2"},
	}
	svc := newTestService(t, horizon, store)

	svc.pollOnce(context.Background())

	_, ok := store.offers[1]
	assert.False(t, ok, "offer not seen in cold-start sweep should be pruned")
	_, ok = store.offers[2]
	assert.True(t, ok, "offer seen in cold-start sweep should survive")
}

func TestIndexerLagLedgersComputesDifference(t *testing.T) {
	svc := newTestService(t, &fakeHorizon{}, newFakeStore())
	svc.lastLedgerSeen.Store(90)
	svc.latestHorizon.Store(100)
	assert.Equal(t, int64(10), svc.IndexerLagLedgers())
}

type assertErr struct{}

func (assertErr) Error() string { return "simulated fatal horizon error" }
