package api

import (
	"context"
	"net/http"

	"github.com/stellar-aggregon/aggregon/internal/analytics"
	"github.com/stellar-aggregon/aggregon/internal/cache"
	"github.com/stellar-aggregon/aggregon/internal/domain"
)

// AnalyticsProvider supplies SMA/volatility figures for GET
// /api/v1/analytics/{base}/{counter} (§12 supplement); read-only
// observability, never consulted by routing or quoting.
type AnalyticsProvider interface {
	Compute(ctx context.Context, base, counter domain.Asset) (*analytics.PairAnalytics, error)
}

type analyticsResponse struct {
	SampleCount    int    `msgpack:"sample_count" json:"sample_count"`
	LatestMidPrice string `msgpack:"latest_mid_price" json:"latest_mid_price"`
	SMA            string `msgpack:"sma" json:"sma"`
	Volatility     string `msgpack:"volatility" json:"volatility"`
	AsOf           string `msgpack:"as_of" json:"as_of"`
}

// handleAnalytics implements GET /api/v1/analytics/{base}/{counter}.
func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.analytics == nil {
		writeError(w, h.log, domain.Wrap(domain.KindStoreError, "store_error", "analytics unavailable", domain.NewError(domain.KindStoreError, "store_error", "not configured")))
		return
	}

	base, counter, err := parseAssetPair(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	cacheKey := "analytics:" + base.String() + ":" + counter.String()
	if raw, ok := h.cache.Get(ctx, cacheKey); ok {
		var cached analyticsResponse
		if cache.Decode(raw, &cached) == nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	result, err := h.analytics.Compute(ctx, base, counter)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	resp := analyticsResponse{
		SampleCount:    result.SampleCount,
		LatestMidPrice: result.LatestMidPrice.String(),
		SMA:            result.SMA.String(),
		Volatility:     result.Volatility.String(),
		AsOf:           result.AsOf.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}

	if encoded, err := cache.Encode(resp); err == nil {
		_ = h.cache.Set(ctx, cacheKey, encoded, analyticsTTL)
	}
	writeJSON(w, http.StatusOK, resp)
}
