package api

import (
	"net/http"

	"github.com/stellar-aggregon/aggregon/internal/cache"
)

type pairView struct {
	Base         string `msgpack:"base" json:"base"`
	Counter      string `msgpack:"counter" json:"counter"`
	BaseAsset    string `msgpack:"base_asset" json:"base_asset"`
	CounterAsset string `msgpack:"counter_asset" json:"counter_asset"`
}

type pairsResponse struct {
	Pairs []pairView `msgpack:"pairs" json:"pairs"`
}

const pairsCacheKey = "pairs"

// handlePairs implements GET /api/v1/pairs.
func (h *Handler) handlePairs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if raw, ok := h.cache.Get(ctx, pairsCacheKey); ok {
		var cached pairsResponse
		if cache.Decode(raw, &cached) == nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	pairs, err := h.store.ActivePairs(ctx)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	resp := pairsResponse{Pairs: make([]pairView, 0, len(pairs))}
	for _, p := range pairs {
		resp.Pairs = append(resp.Pairs, pairView{
			Base:         p.Base.String(),
			Counter:      p.Counter.String(),
			BaseAsset:    p.Base.String(),
			CounterAsset: p.Counter.String(),
		})
	}

	if encoded, err := cache.Encode(resp); err == nil {
		_ = h.cache.Set(ctx, pairsCacheKey, encoded, pairsTTL)
	}
	writeJSON(w, http.StatusOK, resp)
}
