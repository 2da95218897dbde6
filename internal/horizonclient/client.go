// Package horizonclient wraps the Stellar Horizon HTTP API (offers,
// streaming, orderbook) behind domain.HorizonClient, classifying failures
// into the transient/fatal taxonomy (§7) and retrying transient ones with
// bounded backoff.
package horizonclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	stellarhorizon "github.com/stellar/go/clients/horizonclient"
	horizonprotocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/protocols/horizon/base"

	"github.com/shopspring/decimal"
	"github.com/stellar-aggregon/aggregon/internal/domain"
)

const (
	retryBaseDelay = 100 * time.Millisecond
	retryMaxDelay  = 5 * time.Second
	retryAttempts  = 3
)

// Client implements domain.HorizonClient against a live Horizon instance.
type Client struct {
	horizon *stellarhorizon.Client
	log     zerolog.Logger
}

// New builds a Client pointed at horizonURL.
func New(horizonURL string, requestTimeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		horizon: &stellarhorizon.Client{
			HorizonURL: horizonURL,
			HTTP:       &http.Client{Timeout: requestTimeout},
		},
		log: log.With().Str("component", "horizonclient").Logger(),
	}
}

// FetchOffers pages through all offers ordered ascending by cursor, newest
// Horizon record last (§4.1 poll-mode ingestion).
func (c *Client) FetchOffers(ctx context.Context, cursor string, limit int) ([]domain.Offer, string, error) {
	req := stellarhorizon.OffersRequest{
		Order: stellarhorizon.OrderAsc,
		Limit: uint(limit),
	}
	if cursor != "" {
		req.Cursor = cursor
	}

	var page horizonprotocol.OffersPage
	err := withRetry(ctx, c.log, "fetch_offers", func() error {
		var err error
		page, err = c.horizon.Offers(req)
		return err
	})
	if err != nil {
		return nil, cursor, classify(err, "fetch offers")
	}

	offers := make([]domain.Offer, 0, len(page.Embedded.Records))
	nextCursor := cursor
	for _, rec := range page.Embedded.Records {
		o, err := convertOffer(rec)
		if err != nil {
			return nil, cursor, domain.Wrap(domain.KindInvariantViolation, "bad_horizon_offer", "converting offer record", err)
		}
		offers = append(offers, o)
		nextCursor = rec.PagingToken
	}
	return offers, nextCursor, nil
}

// StreamOffers opens a long-lived Horizon SSE subscription for offers,
// translating each record into a created/updated delta (Horizon's offers
// stream never distinguishes the two). Removed offers are not reported on
// this stream; the indexer prunes them only in a poll-mode cold start.
func (c *Client) StreamOffers(ctx context.Context, startingCursor string) (<-chan domain.OfferEvent, error) {
	events := make(chan domain.OfferEvent, 256)

	req := stellarhorizon.OffersRequest{
		Order: stellarhorizon.OrderAsc,
		Cursor: startingCursor,
	}

	go func() {
		defer close(events)
		err := c.horizon.StreamOffers(ctx, req, func(rec horizonprotocol.Offer) {
			o, err := convertOffer(rec)
			if err != nil {
				c.log.Warn().Err(err).Msg("dropping unparseable streamed offer")
				return
			}
			select {
			case events <- domain.OfferEvent{Kind: domain.OfferUpdated, Offer: o, Cursor: rec.PagingToken}:
			case <-ctx.Done():
			}
		})
		if err != nil && ctx.Err() == nil {
			c.log.Error().Err(err).Msg("offers stream terminated")
		}
	}()

	return events, nil
}

// FetchOrderbook returns Horizon's own aggregated bid/ask view for a pair.
func (c *Client) FetchOrderbook(ctx context.Context, base, counter domain.Asset, depth int) ([]domain.BookEntry, []domain.BookEntry, int64, error) {
	req, err := orderbookRequest(base, counter, depth)
	if err != nil {
		return nil, nil, 0, domain.Wrap(domain.KindInvalidRequest, "invalid_request", "building orderbook request", err)
	}

	var book horizonprotocol.OrderBookSummary
	err = withRetry(ctx, c.log, "fetch_orderbook", func() error {
		var err error
		book, err = c.horizon.OrderBook(req)
		return err
	})
	if err != nil {
		return nil, nil, 0, classify(err, "fetch orderbook")
	}

	bids := make([]domain.BookEntry, 0, len(book.Bids))
	for _, b := range book.Bids {
		bids = append(bids, priceLevelToEntry(b.Price, b.Amount))
	}
	asks := make([]domain.BookEntry, 0, len(book.Asks))
	for _, a := range book.Asks {
		asks = append(asks, priceLevelToEntry(a.Price, a.Amount))
	}
	// horizonprotocol.OrderBookSummary carries no ledger sequence; the
	// caller should pair this with a close-ledger lookup if it needs one.
	return bids, asks, 0, nil
}

// withRetry retries fn up to retryAttempts times with exponential backoff,
// only when the failure classifies as transient (§7).
func withRetry(ctx context.Context, log zerolog.Logger, op string, fn func() error) error {
	delay := retryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		if attempt == retryAttempts {
			break
		}
		log.Warn().Err(lastErr).Str("op", op).Int("attempt", attempt).Dur("delay", delay).Msg("retrying transient horizon failure")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
	return lastErr
}

func isTransient(err error) bool {
	herr, ok := err.(*stellarhorizon.Error)
	if !ok {
		// Network-level errors (timeouts, connection resets) are transient.
		return true
	}
	status := herr.Problem.Status
	return status == 429 || status >= 500
}

func classify(err error, op string) error {
	if isTransient(err) {
		return domain.Wrap(domain.KindTransientExternal, "horizon_transient", op, err)
	}
	return domain.Wrap(domain.KindFatalExternal, "horizon_fatal", op, err)
}

func orderbookRequest(base, counter domain.Asset, depth int) (stellarhorizon.OrderBookRequest, error) {
	req := stellarhorizon.OrderBookRequest{Limit: uint(depth)}
	if err := setAssetFields(&req.SellingAssetType, &req.SellingAssetCode, &req.SellingAssetIssuer, base); err != nil {
		return req, fmt.Errorf("selling asset: %w", err)
	}
	if err := setAssetFields(&req.BuyingAssetType, &req.BuyingAssetCode, &req.BuyingAssetIssuer, counter); err != nil {
		return req, fmt.Errorf("buying asset: %w", err)
	}
	return req, nil
}

func setAssetFields(assetType *stellarhorizon.AssetType, code, issuer *string, a domain.Asset) error {
	if a.Tag == domain.AssetNative {
		*assetType = stellarhorizon.AssetTypeNative
		return nil
	}
	*code = a.Code
	*issuer = a.Issuer
	switch {
	case len(a.Code) <= 4:
		*assetType = stellarhorizon.AssetType4
	case len(a.Code) <= 12:
		*assetType = stellarhorizon.AssetType12
	default:
		return fmt.Errorf("asset code %q exceeds 12 bytes", a.Code)
	}
	return nil
}

func priceLevelToEntry(price string, amount string) domain.BookEntry {
	p, _ := decimal.NewFromString(price)
	a, _ := decimal.NewFromString(amount)
	return domain.BookEntry{Price: p, Amount: a}
}

func convertOffer(rec horizonprotocol.Offer) (domain.Offer, error) {
	selling, err := assetFromHorizon(rec.Selling)
	if err != nil {
		return domain.Offer{}, fmt.Errorf("selling asset: %w", err)
	}
	buying, err := assetFromHorizon(rec.Buying)
	if err != nil {
		return domain.Offer{}, fmt.Errorf("buying asset: %w", err)
	}
	amount, err := decimal.NewFromString(rec.Amount)
	if err != nil {
		return domain.Offer{}, fmt.Errorf("amount: %w", err)
	}
	price, err := decimal.NewFromString(rec.Price)
	if err != nil {
		return domain.Offer{}, fmt.Errorf("price: %w", err)
	}

	return domain.Offer{
		ID:                 rec.ID,
		Seller:             rec.Seller,
		Selling:            selling,
		Buying:             buying,
		Amount:             amount,
		PriceN:             int64(rec.PriceR.N),
		PriceD:             int64(rec.PriceR.D),
		Price:              price,
		LastModifiedLedger: int64(rec.LastModifiedLedger),
		Cursor:             rec.PagingToken,
	}, nil
}

func assetFromHorizon(a base.Asset) (domain.Asset, error) {
	if a.Type == "native" {
		return domain.NativeAsset, nil
	}
	return domain.NewCreditAsset(a.Code, a.Issuer)
}
