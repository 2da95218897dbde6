// Package analytics computes read-only observability figures — simple
// moving averages and realized volatility — over the mid-price history
// orderbook_snapshots already accumulates. It never feeds the routing
// engine; it exists purely to surface trend data through the REST API and
// the monitor CLI's status stream.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/stellar-aggregon/aggregon/internal/domain"
)

const (
	defaultLookback  = 200
	defaultSMAPeriod = 20
)

// PairAnalytics is the computed SMA/volatility figure for one trading pair
// as of the most recent snapshot in the lookback window.
type PairAnalytics struct {
	Base           domain.Asset
	Counter        domain.Asset
	SampleCount    int
	LatestMidPrice decimal.Decimal
	SMA            decimal.Decimal
	Volatility     decimal.Decimal
	AsOf           time.Time
}

// Service computes PairAnalytics on demand from a pair's recent snapshot
// history.
type Service struct {
	store     domain.StateStore
	log       zerolog.Logger
	lookback  int
	smaPeriod int
}

// Config configures a Service. Zero values fall back to defaultLookback /
// defaultSMAPeriod.
type Config struct {
	Store     domain.StateStore
	Lookback  int
	SMAPeriod int
	Log       zerolog.Logger
}

// New builds a Service.
func New(cfg Config) *Service {
	lookback := cfg.Lookback
	if lookback <= 0 {
		lookback = defaultLookback
	}
	smaPeriod := cfg.SMAPeriod
	if smaPeriod <= 0 {
		smaPeriod = defaultSMAPeriod
	}
	return &Service{
		store:     cfg.Store,
		log:       cfg.Log.With().Str("component", "analytics").Logger(),
		lookback:  lookback,
		smaPeriod: smaPeriod,
	}
}

// Compute returns the SMA and realized volatility of (base, counter)'s
// mid-price over the service's lookback window, oldest-to-newest.
func (s *Service) Compute(ctx context.Context, base, counter domain.Asset) (*PairAnalytics, error) {
	snaps, err := s.store.RecentSnapshots(ctx, base, counter, s.lookback)
	if err != nil {
		return nil, fmt.Errorf("load snapshot history: %w", err)
	}
	if len(snaps) == 0 {
		return nil, domain.NewError(domain.KindRoutingError, domain.CodePairNotFound,
			fmt.Sprintf("no snapshot history for %s/%s", base, counter))
	}

	// RecentSnapshots returns newest-first; talib's moving-window functions
	// expect chronological order.
	prices := make([]float64, len(snaps))
	for i, snap := range snaps {
		prices[len(snaps)-1-i] = snap.MidPrice.InexactFloat64()
	}

	result := &PairAnalytics{
		Base:           base,
		Counter:        counter,
		SampleCount:    len(snaps),
		LatestMidPrice: snaps[0].MidPrice,
		AsOf:           snaps[0].SnapshotTime,
	}

	smaPeriod := s.smaPeriod
	if smaPeriod > len(prices) {
		smaPeriod = len(prices)
	}
	sma := talib.Sma(prices, smaPeriod)
	if v := lastFinite(sma); v != 0 || smaPeriod == 1 {
		result.SMA = decimal.NewFromFloat(v)
	} else {
		result.SMA = result.LatestMidPrice
	}

	returns := percentReturns(prices)
	volPeriod := smaPeriod
	if volPeriod > len(returns) {
		volPeriod = len(returns)
	}
	if volPeriod >= 2 {
		stdDev := talib.StdDev(returns, volPeriod, 1)
		result.Volatility = decimal.NewFromFloat(lastFinite(stdDev))
	}

	return result, nil
}

// percentReturns converts a chronological price series into period-over-
// period percentage returns.
func percentReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		if prev == 0 {
			out[i-1] = 0
			continue
		}
		out[i-1] = (prices[i] - prev) / prev
	}
	return out
}

// lastFinite returns the last non-NaN value in a talib output series, or 0
// if the series never warmed up (fewer samples than the indicator period).
func lastFinite(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if series[i] == series[i] { // NaN != NaN
			return series[i]
		}
	}
	return 0
}
