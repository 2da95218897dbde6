package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/stellar-aggregon/aggregon/internal/cache"
	"github.com/stellar-aggregon/aggregon/internal/domain"
)

type pathStepView struct {
	FromAsset string `msgpack:"from_asset" json:"from_asset"`
	ToAsset   string `msgpack:"to_asset" json:"to_asset"`
	Price     string `msgpack:"price" json:"price"`
	Source    string `msgpack:"source" json:"source"`
}

type quoteResponse struct {
	BaseAsset  string         `msgpack:"base_asset" json:"base_asset"`
	QuoteAsset string         `msgpack:"quote_asset" json:"quote_asset"`
	Amount     string         `msgpack:"amount" json:"amount"`
	Total      string         `msgpack:"total" json:"total"`
	Price      string         `msgpack:"price" json:"price"`
	Path       []pathStepView `msgpack:"path" json:"path"`
}

// handleQuote implements GET
// /api/v1/quote/{base}/{counter}?amount=&quote_type=sell|buy. The exposed
// surface exercises quote_type=sell (sell_exact_in); buy is accepted and
// mapped to domain.BuyExactOut; the direction is part of the cache key, so
// buy and sell quotes at the same amount are cached separately.
func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	base, counter, err := parseAssetPair(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	amountParam := r.URL.Query().Get("amount")
	amount, decErr := decimal.NewFromString(amountParam)
	if decErr != nil || !amount.IsPositive() {
		writeError(w, h.log, domain.NewError(domain.KindInvalidRequest, domain.CodeInvalidRequest, "amount must be a positive decimal string"))
		return
	}

	direction := domain.SellExactIn
	if r.URL.Query().Get("quote_type") == "buy" {
		direction = domain.BuyExactOut
	}

	cacheKey := "quote:" + base.String() + ":" + counter.String() + ":" + string(direction) + ":" + amount.String()
	if raw, ok := h.cache.Get(ctx, cacheKey); ok {
		var cached quoteResponse
		if cache.Decode(raw, &cached) == nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	result, err := h.routing.Quote(ctx, domain.QuoteRequest{
		Source:    base,
		Dest:      counter,
		AmountIn:  amount,
		Direction: direction,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	resp := quoteResponse{
		BaseAsset:  base.String(),
		QuoteAsset: counter.String(),
		Amount:     amount.String(),
		Total:      result.Route.ExpectedOutput.String(),
		Price:      result.AggregatePrice.String(),
		Path:       make([]pathStepView, 0, len(result.Route.Hops)),
	}
	for _, hop := range result.Route.Hops {
		resp.Path = append(resp.Path, pathStepView{
			FromAsset: hop.Source.String(),
			ToAsset:   hop.Destination.String(),
			Price:     hop.Price.String(),
			Source:    hop.Venue.String(),
		})
	}

	if encoded, err := cache.Encode(resp); err == nil {
		_ = h.cache.Set(ctx, cacheKey, encoded, quoteTTL)
	}
	writeJSON(w, http.StatusOK, resp)
}
