package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar-aggregon/aggregon/internal/analytics"
	"github.com/stellar-aggregon/aggregon/internal/cache"
	"github.com/stellar-aggregon/aggregon/internal/domain"
)

// fakeStore stubs domain.StateStore with fixed pairs/orderbook data; every
// other method panics because the handlers under test only call
// ActivePairs and ActiveOrderbook.
type fakeStore struct {
	domain.StateStore
	pairs          []domain.TradingPair
	bids, asks     []domain.BookEntry
	ledgerSeq      int64
	orderbookErr   error
	activePairsErr error
}

func (f *fakeStore) ActivePairs(ctx context.Context) ([]domain.TradingPair, error) {
	return f.pairs, f.activePairsErr
}

func (f *fakeStore) ActiveOrderbook(ctx context.Context, base, counter domain.Asset) ([]domain.BookEntry, []domain.BookEntry, int64, error) {
	return f.bids, f.asks, f.ledgerSeq, f.orderbookErr
}

// fakeRouting stubs domain.RoutingEngine with a canned result or error.
type fakeRouting struct {
	result *domain.QuoteResult
	err    error
}

func (f *fakeRouting) Quote(ctx context.Context, req domain.QuoteRequest) (*domain.QuoteResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeHealth struct{ lag int64 }

func (f *fakeHealth) IndexerLagLedgers() int64 { return f.lag }

// fakeAnalytics stubs AnalyticsProvider with a canned result or error.
type fakeAnalytics struct {
	result *analytics.PairAnalytics
	err    error
}

func (f *fakeAnalytics) Compute(ctx context.Context, base, counter domain.Asset) (*analytics.PairAnalytics, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func usdAsset(t *testing.T) domain.Asset {
	t.Helper()
	a, err := domain.NewCreditAsset("USDC", "GISSUERUSDCXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX")
	require.NoError(t, err)
	return a
}

func newTestServer(t *testing.T, store domain.StateStore, routing domain.RoutingEngine, health HealthReporter) *chi.Mux {
	t.Helper()
	return newTestServerWithAnalytics(t, store, routing, health, nil)
}

func newTestServerWithAnalytics(t *testing.T, store domain.StateStore, routing domain.RoutingEngine, health HealthReporter, analyticsProvider AnalyticsProvider) *chi.Mux {
	t.Helper()
	s := New(Config{
		Store:     store,
		Routing:   routing,
		Cache:     cache.New(),
		Health:    health,
		Analytics: analyticsProvider,
		Log:       zerolog.Nop(),
		Addr:      ":0",
	})
	return s.router
}

func TestHandlePairsReturnsActivePairs(t *testing.T) {
	usdc := usdAsset(t)
	store := &fakeStore{pairs: []domain.TradingPair{
		{ID: 1, Base: domain.NativeAsset, Counter: usdc, Active: true},
	}}
	router := newTestServer(t, store, &fakeRouting{}, &fakeHealth{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pairs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp pairsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Pairs, 1)
	assert.Equal(t, domain.NativeAsset.String(), resp.Pairs[0].Base)
}

func TestHandleOrderbookReturns404WhenPairMissing(t *testing.T) {
	store := &fakeStore{}
	router := newTestServer(t, store, &fakeRouting{}, &fakeHealth{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orderbook/native/USDC:GISSUERUSDCXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleOrderbookReturnsBook(t *testing.T) {
	store := &fakeStore{
		bids:      []domain.BookEntry{{Price: decimal.NewFromFloat(0.085), Amount: decimal.NewFromInt(1000), OfferID: 1}},
		ledgerSeq: 12345,
	}
	router := newTestServer(t, store, &fakeRouting{}, &fakeHealth{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orderbook/native/USDC:GISSUERUSDCXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp orderbookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Bids, 1)
	assert.Equal(t, int64(12345), resp.Ledger)
}

func TestHandleQuoteRejectsInvalidAmount(t *testing.T) {
	router := newTestServer(t, &fakeStore{}, &fakeRouting{}, &fakeHealth{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quote/native/USDC:GISSUERUSDCXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX?amount=not-a-number", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleQuoteReturnsShapedPath(t *testing.T) {
	usdc := usdAsset(t)
	result := &domain.QuoteResult{
		Route: domain.Route{
			ID: "r1",
			Hops: []domain.Hop{
				{Source: domain.NativeAsset, Destination: usdc, Venue: domain.Venue{Kind: domain.VenueSdex}, ExpectedOutput: decimal.NewFromInt(1176), Price: decimal.NewFromFloat(0.085)},
			},
			ExpectedOutput: decimal.NewFromInt(1176),
			Expiry:         time.Now().Add(30 * time.Second),
		},
		AggregatePrice: decimal.NewFromFloat(11.76),
	}
	router := newTestServer(t, &fakeStore{}, &fakeRouting{result: result}, &fakeHealth{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quote/native/USDC:GISSUERUSDCXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX?amount=100", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp quoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Path, 1)
	assert.Equal(t, "sdex", resp.Path[0].Source)
}

func TestHandleQuoteMapsNoRouteToUnprocessable(t *testing.T) {
	usdc := usdAsset(t)
	router := newTestServer(t, &fakeStore{}, &fakeRouting{err: domain.ErrNoRoute(domain.NativeAsset, usdc)}, &fakeHealth{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quote/native/USDC:GISSUERUSDCXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX?amount=100", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleHealthReportsDbStatus(t *testing.T) {
	router := newTestServer(t, &fakeStore{}, &fakeRouting{}, &fakeHealth{lag: 3})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, int64(3), resp.IndexerLag)
}

func TestHandleAnalyticsReturnsFigures(t *testing.T) {
	result := &analytics.PairAnalytics{
		SampleCount:    42,
		LatestMidPrice: decimal.NewFromFloat(0.09),
		SMA:            decimal.NewFromFloat(0.088),
		Volatility:     decimal.NewFromFloat(0.01),
		AsOf:           time.Now(),
	}
	router := newTestServerWithAnalytics(t, &fakeStore{}, &fakeRouting{}, &fakeHealth{}, &fakeAnalytics{result: result})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics/native/USDC:GISSUERUSDCXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp analyticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 42, resp.SampleCount)
	assert.Equal(t, "0.088", resp.SMA)
}

func TestHandleAnalyticsMapsPairNotFoundTo404(t *testing.T) {
	usdc := usdAsset(t)
	fake := &fakeAnalytics{err: domain.NewError(domain.KindRoutingError, domain.CodePairNotFound, "no snapshot history")}
	router := newTestServerWithAnalytics(t, &fakeStore{}, &fakeRouting{}, &fakeHealth{}, fake)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics/native/"+usdc.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
