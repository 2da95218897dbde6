package domain

import "context"

// HorizonClient is the typed request layer over the Stellar Horizon HTTP
// API (§4.1). Implementations must retry Transient failures internally per
// the failure policy and surface Fatal failures immediately.
type HorizonClient interface {
	// FetchOffers pages through offers ordered by cursor.
	FetchOffers(ctx context.Context, cursor string, limit int) (batch []Offer, nextCursor string, err error)

	// StreamOffers opens a long-lived subscription yielding offer deltas in
	// cursor order starting after startingCursor. The returned channel is
	// closed when ctx is cancelled or the stream cannot be recovered.
	StreamOffers(ctx context.Context, startingCursor string) (<-chan OfferEvent, error)

	// FetchOrderbook returns a consistent snapshot for one pair at a single
	// ledger.
	FetchOrderbook(ctx context.Context, base, counter Asset, depth int) (bids, asks []BookEntry, ledgerSeq int64, err error)
}

// OfferEventKind distinguishes the delta kinds a streamed offer event may
// carry.
type OfferEventKind string

const (
	OfferCreated OfferEventKind = "created"
	OfferUpdated OfferEventKind = "updated"
	OfferRemoved OfferEventKind = "removed"
)

// OfferEvent is one delta yielded by a streaming subscription.
type OfferEvent struct {
	Kind   OfferEventKind
	Offer  Offer
	Cursor string
}

// SorobanClient is the typed request layer over Soroban RPC used to read
// pool reserves and simulate/submit router contract transactions (§4.4,
// §4.6, §6).
type SorobanClient interface {
	// GetPoolReserves reads a pool's current reserves via its reserves-read
	// entrypoint.
	GetPoolReserves(ctx context.Context, poolAddress string) (reserveA, reserveB int64, feeBps int64, err error)

	// SimulateExecuteSwap performs a read-only simulation of execute_swap
	// against the deployed router contract, used by cmd/verify's smoke
	// test.
	SimulateExecuteSwap(ctx context.Context, contractID string, amountIn int64, route Route) (ResourceEstimate, error)
}

// StateStore is the durable relational store holding assets, offers,
// trading pairs, orderbook snapshots, and indexer cursor state (§4.2).
type StateStore interface {
	UpsertAsset(ctx context.Context, a Asset) (id int64, err error)
	UpsertOffer(ctx context.Context, o Offer) error
	DeleteOffer(ctx context.Context, offerID int64) error
	GetOffer(ctx context.Context, offerID int64) (*Offer, error)

	ActivePairs(ctx context.Context) ([]TradingPair, error)
	ActiveOrderbook(ctx context.Context, base, counter Asset) (bids, asks []BookEntry, ledgerSeq int64, err error)
	OffersForPair(ctx context.Context, base, counter Asset) ([]Offer, error)
	AllActiveOffers(ctx context.Context) ([]Offer, error)

	CaptureSnapshot(ctx context.Context, base, counter Asset, ledgerSeq int64) (*OrderbookSnapshot, error)
	RecentSnapshots(ctx context.Context, base, counter Asset, limit int) ([]OrderbookSnapshot, error)

	ArchiveOffersOlderThan(ctx context.Context, days int) (archived int64, err error)
	PruneSnapshotsOlderThan(ctx context.Context, days int) (pruned int64, err error)

	GetCursor(ctx context.Context, key string) (string, bool, error)
	SetCursor(ctx context.Context, key, value string) error
	ClearCursor(ctx context.Context, key string) error
}

// PoolRegistry is the in-memory cache of admin-registered AMM pool
// descriptors (§4.4).
type PoolRegistry interface {
	Register(address string, descriptor PoolDescriptor)
	Get(address string) (PoolDescriptor, bool)
	ListForPair(a, b Asset) []PoolDescriptor
	ListAll() []PoolDescriptor
	RefreshAll(ctx context.Context) error
}

// RoutingEngine builds the liquidity graph and produces the best-ranked
// route for a quote request (§4.5).
type RoutingEngine interface {
	Quote(ctx context.Context, req QuoteRequest) (*QuoteResult, error)
}

// Cache is the best-effort read-through accelerator described in §4.7;
// correctness must never depend on it (§1 Non-goals).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl int64) error
}
