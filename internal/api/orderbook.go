package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stellar-aggregon/aggregon/internal/cache"
	"github.com/stellar-aggregon/aggregon/internal/domain"
)

type bookLevelView struct {
	Price  string `msgpack:"price" json:"price"`
	Amount string `msgpack:"amount" json:"amount"`
}

type orderbookResponse struct {
	Bids   []bookLevelView `msgpack:"bids" json:"bids"`
	Asks   []bookLevelView `msgpack:"asks" json:"asks"`
	Ledger int64           `msgpack:"ledger" json:"ledger"`
}

// handleOrderbook implements GET /api/v1/orderbook/{base}/{counter}.
func (h *Handler) handleOrderbook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	base, counter, err := parseAssetPair(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	cacheKey := "orderbook:" + base.String() + ":" + counter.String()
	if raw, ok := h.cache.Get(ctx, cacheKey); ok {
		var cached orderbookResponse
		if cache.Decode(raw, &cached) == nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	bids, asks, ledgerSeq, err := h.store.ActiveOrderbook(ctx, base, counter)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if len(bids) == 0 && len(asks) == 0 {
		writeError(w, h.log, domain.NewError(domain.KindRoutingError, domain.CodePairNotFound, "no active orderbook for this pair"))
		return
	}

	resp := orderbookResponse{
		Bids:   bookEntriesToView(bids),
		Asks:   bookEntriesToView(asks),
		Ledger: ledgerSeq,
	}

	if encoded, err := cache.Encode(resp); err == nil {
		_ = h.cache.Set(ctx, cacheKey, encoded, orderbookTTL)
	}
	writeJSON(w, http.StatusOK, resp)
}

func bookEntriesToView(entries []domain.BookEntry) []bookLevelView {
	out := make([]bookLevelView, 0, len(entries))
	for _, e := range entries {
		out = append(out, bookLevelView{Price: e.Price.String(), Amount: e.Amount.String()})
	}
	return out
}

// parseAssetPair reads the {base}/{counter} path parameters as
// domain.Asset identifiers.
func parseAssetPair(r *http.Request) (base, counter domain.Asset, err error) {
	base, err = domain.ParseAsset(chi.URLParam(r, "base"))
	if err != nil {
		return domain.Asset{}, domain.Asset{}, domain.NewError(domain.KindInvalidRequest, domain.CodeInvalidRequest, err.Error())
	}
	counter, err = domain.ParseAsset(chi.URLParam(r, "counter"))
	if err != nil {
		return domain.Asset{}, domain.Asset{}, domain.NewError(domain.KindInvalidRequest, domain.CodeInvalidRequest, err.Error())
	}
	return base, counter, nil
}
