// Package domain provides the core domain models shared by every component:
// the indexer, the state store, the pool registry, the routing engine, the
// router contract simulation, and the REST API.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MoneyScale is the fixed-point scale used for all on- and off-chain
// amounts and prices throughout the system.
const MoneyScale = 14

// MaxHops bounds the length of any route; the router contract enforces the
// same limit on-chain.
const MaxHops = 4

// AssetTag distinguishes the Stellar native asset from issued credit assets.
type AssetTag string

const (
	AssetNative AssetTag = "native"
	AssetCredit AssetTag = "credit"
)

// Asset is the identity of a tradeable token. Two assets are equal iff
// (Tag, Code, Issuer) match exactly. Assets are immutable once minted into
// the store.
type Asset struct {
	Tag    AssetTag
	Code   string // 1-12 bytes; empty for native
	Issuer string // account address; empty for native
}

// NativeAsset is the canonical native-lumen asset value.
var NativeAsset = Asset{Tag: AssetNative}

// NewCreditAsset builds a non-native asset, validating the code length.
func NewCreditAsset(code, issuer string) (Asset, error) {
	if len(code) == 0 || len(code) > 12 {
		return Asset{}, fmt.Errorf("asset code must be 1-12 bytes, got %d", len(code))
	}
	if issuer == "" {
		return Asset{}, fmt.Errorf("credit asset requires an issuer")
	}
	return Asset{Tag: AssetCredit, Code: code, Issuer: issuer}, nil
}

// Equal reports whether two assets share the same identity.
func (a Asset) Equal(other Asset) bool {
	return a.Tag == other.Tag && a.Code == other.Code && a.Issuer == other.Issuer
}

// String renders the asset the way it appears in REST path segments:
// "native", "CODE", or "CODE:ISSUER".
func (a Asset) String() string {
	if a.Tag == AssetNative {
		return "native"
	}
	if a.Issuer == "" {
		return a.Code
	}
	return a.Code + ":" + a.Issuer
}

// ParseAsset parses the REST path representation of an asset.
func ParseAsset(s string) (Asset, error) {
	if s == "" {
		return Asset{}, fmt.Errorf("empty asset identifier")
	}
	if s == "native" {
		return NativeAsset, nil
	}
	code := s
	issuer := ""
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			code = s[:i]
			issuer = s[i+1:]
			break
		}
	}
	if issuer == "" {
		return Asset{}, fmt.Errorf("credit asset %q must be CODE:ISSUER", s)
	}
	return NewCreditAsset(code, issuer)
}

// Offer is a unit of SDEX liquidity: a standing limit order.
type Offer struct {
	ID                 int64
	Seller             string
	Selling            Asset
	Buying             Asset
	Amount             decimal.Decimal // remaining amount, scale 14
	PriceN             int64           // price numerator
	PriceD             int64           // price denominator
	Price              decimal.Decimal // derived decimal price, scale 14
	LastModifiedLedger int64
	Cursor             string
	UpdatedAt          time.Time
}

// Validate checks the invariants §3 requires of every Offer row.
func (o Offer) Validate() error {
	if o.Selling.Equal(o.Buying) {
		return fmt.Errorf("offer %d: selling asset equals buying asset", o.ID)
	}
	if !o.Amount.IsPositive() {
		return fmt.Errorf("offer %d: amount must be positive, got %s", o.ID, o.Amount)
	}
	if o.PriceD <= 0 {
		return fmt.Errorf("offer %d: price denominator must be positive, got %d", o.ID, o.PriceD)
	}
	return nil
}

// TradingPair is a denormalized aggregate keyed by an ordered asset pair.
type TradingPair struct {
	ID           int64
	Base         Asset
	Counter      Asset
	Active       bool
	TotalOffers  int64
	TotalVolume  decimal.Decimal
	LastTradeAt  *time.Time
}

// Validate checks base != counter, required by §3.
func (p TradingPair) Validate() error {
	if p.Base.Equal(p.Counter) {
		return fmt.Errorf("trading pair: base equals counter (%s)", p.Base)
	}
	return nil
}

// BookEntry is one row of a bid or ask side, used both in live orderbook
// reads and in persisted snapshots.
type BookEntry struct {
	Price   decimal.Decimal
	Amount  decimal.Decimal
	OfferID int64
}

// OrderbookSnapshot is a timestamped point-in-time aggregation of offers for
// one trading pair. Immutable once written.
type OrderbookSnapshot struct {
	ID              int64
	PairID          int64
	SnapshotTime    time.Time
	Bids            []BookEntry // sorted descending by price
	Asks            []BookEntry // sorted ascending by price
	BidCount        int
	AskCount        int
	Spread          decimal.Decimal
	MidPrice        decimal.Decimal
	TotalBidVolume  decimal.Decimal
	TotalAskVolume  decimal.Decimal
	LedgerSequence  int64
}

// PoolType enumerates the AMM pool pricing models the system understands.
type PoolType string

const (
	PoolTypeConstantProduct PoolType = "constant_product"
)

// PoolDescriptor is the identity and live state of an AMM pool, owned by the
// pool registry and refreshed from Soroban RPC.
type PoolDescriptor struct {
	Address      string
	AssetA       Asset
	AssetB       Asset
	Type         PoolType
	ReserveA     decimal.Decimal
	ReserveB     decimal.Decimal
	FeeBps       int64
	LastRefresh  time.Time
	StaleRefresh int // consecutive refresh failures
}

// Stale reports whether the descriptor has failed to refresh for more than
// the given number of consecutive intervals (policy: skip after 3, §4.4).
func (p PoolDescriptor) Stale(maxIntervals int) bool {
	return p.StaleRefresh > maxIntervals
}

// VenueKind distinguishes the two liquidity sources a hop may draw from.
type VenueKind string

const (
	VenueSdex VenueKind = "sdex"
	VenueAmm  VenueKind = "amm"
)

// Venue identifies the liquidity source of one hop. For VenueSdex,
// PoolAddress is empty.
type Venue struct {
	Kind        VenueKind
	PoolAddress string // set only when Kind == VenueAmm
	PoolType    PoolType
}

// String renders the venue the way it appears in REST path steps:
// "sdex" or "amm:<pool_address>".
func (v Venue) String() string {
	if v.Kind == VenueSdex {
		return "sdex"
	}
	return "amm:" + v.PoolAddress
}

// Hop is one edge of a route.
type Hop struct {
	Source         Asset
	Destination    Asset
	Venue          Venue
	ExpectedOutput decimal.Decimal
	Price          decimal.Decimal // destination-per-source realized price for this hop
}

// Direction distinguishes exact-in (sell) from exact-out (buy) requests.
type Direction string

const (
	SellExactIn  Direction = "sell"
	BuyExactOut  Direction = "buy"
)

// Route is an ordered sequence of 1..MaxHops hops connecting a source asset
// to a destination asset.
type Route struct {
	ID             string
	Hops           []Hop
	ExpectedOutput decimal.Decimal
	MinOutput      decimal.Decimal
	Expiry         time.Time
}

// Validate checks the hop-chaining invariants from §3.
func (r Route) Validate(source, dest Asset) error {
	if len(r.Hops) == 0 || len(r.Hops) > MaxHops {
		return fmt.Errorf("route must have 1-%d hops, got %d", MaxHops, len(r.Hops))
	}
	if !r.Hops[0].Source.Equal(source) {
		return fmt.Errorf("route source %s does not match request source %s", r.Hops[0].Source, source)
	}
	last := r.Hops[len(r.Hops)-1]
	if !last.Destination.Equal(dest) {
		return fmt.Errorf("route destination %s does not match request destination %s", last.Destination, dest)
	}
	for i := 0; i < len(r.Hops)-1; i++ {
		if !r.Hops[i].Destination.Equal(r.Hops[i+1].Source) {
			return fmt.Errorf("route hop %d destination does not match hop %d source", i, i+1)
		}
	}
	for _, h := range r.Hops {
		if h.Source.Equal(h.Destination) {
			return fmt.Errorf("route hop has identical source and destination (%s)", h.Source)
		}
	}
	return nil
}

// QuoteRequest is the routing engine's input.
type QuoteRequest struct {
	Source    Asset
	Dest      Asset
	AmountIn  decimal.Decimal
	Direction Direction
}

// Validate checks the request-level invariants (§8 boundary cases).
func (q QuoteRequest) Validate() error {
	if q.Source.Equal(q.Dest) {
		return NewError(KindInvalidRequest, "invalid_request", "source and destination assets are identical")
	}
	if !q.AmountIn.IsPositive() {
		return NewError(KindInvalidRequest, "invalid_request", "amount_in must be greater than zero")
	}
	return nil
}

// QuoteResult is the routing engine's output: request echo plus the
// best-ranked route and aggregate figures.
type QuoteResult struct {
	Request           QuoteRequest
	Route             Route
	AggregatePrice    decimal.Decimal // destination-per-source
	PriceImpactPct    decimal.Decimal
	ProtocolFee       decimal.Decimal
	ValidUntil        time.Time
}

// ResourceEstimate is the pure function output of the resource estimator
// (§2, §4.6): an expected CPU/storage profile for a route.
type ResourceEstimate struct {
	EstimatedCPU   int64
	StorageReads   int
	StorageWrites  int
	Events         int
	WillSucceed    bool
	Reason         string
}
