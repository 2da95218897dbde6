package routing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/stellar-aggregon/aggregon/internal/domain"
	"github.com/stellar-aggregon/aggregon/internal/utils"
)

// candidateCount bounds how many Yen candidate paths are requested per
// quote; the liquidity-aware edge weights already bias the search toward
// deep paths, so a modest k keeps per-path simulation cost predictable.
const candidateCount = 8

// quoteValidity is the wall-clock lifetime of a returned quote (§4.5 step 5
// default).
const quoteValidity = 30 * time.Second

// defaultSlippageTolerance sets min_output when the caller does not widen
// it explicitly; the REST layer may override this per request in future
// work, but the engine always has a sane default.
const defaultSlippageTolerance = "0.005"

// Engine implements domain.RoutingEngine over live offers and AMM pools.
type Engine struct {
	store      domain.StateStore
	pools      domain.PoolRegistry
	feeRateBps int64
	log        zerolog.Logger
}

// New builds a routing engine charging feeRateBps as the protocol fee on
// every quote's final output (§4.5 step 5). log may be the zero value; a
// disabled zerolog.Logger is a safe no-op.
func New(store domain.StateStore, pools domain.PoolRegistry, feeRateBps int64, log zerolog.Logger) *Engine {
	return &Engine{store: store, pools: pools, feeRateBps: feeRateBps, log: log.With().Str("component", "routing").Logger()}
}

// Quote builds the liquidity graph, enumerates bounded-depth candidate
// paths, simulates each, and returns the best-ranked route.
func (e *Engine) Quote(ctx context.Context, req domain.QuoteRequest) (*domain.QuoteResult, error) {
	defer utils.OperationTimer("routing.Quote", e.log)()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	offers, err := e.store.AllActiveOffers(ctx)
	if err != nil {
		return nil, domain.Wrap(domain.KindStoreError, "store_error", "loading active offers for quote", err)
	}
	pools := e.pools.ListAll()

	lg := buildLiquidityGraph(offers, pools)

	srcID, srcOK := lg.assetID[req.Source.String()]
	dstID, dstOK := lg.assetID[req.Dest.String()]
	if !srcOK || !dstOK {
		return nil, domain.ErrNoRoute(req.Source, req.Dest)
	}

	paths := path.YenKShortestPaths(lg.g, candidateCount, simple.Node(srcID), simple.Node(dstID))
	if len(paths) == 0 {
		return nil, domain.ErrNoRoute(req.Source, req.Dest)
	}

	var best *simResult
	for _, p := range paths {
		if len(p) < 2 || len(p)-1 > domain.MaxHops {
			continue
		}
		if sr := e.simulatePath(lg, p, req.AmountIn); sr != nil {
			if best == nil || sr.better(best) {
				best = sr
			}
		}
	}
	if best == nil {
		return nil, domain.ErrInsufficientLiquidity(req.Source, req.Dest)
	}

	return e.buildResult(req, best), nil
}

// simResult is one fully-simulated candidate path.
type simResult struct {
	hops          []domain.Hop
	finalOutput   decimal.Decimal
	priceImpactPct decimal.Decimal
	routeID       string
}

// better implements the §4.5 step 4 ranking: greatest output, then fewer
// hops, then lower price-impact, then lexical route id.
func (s *simResult) better(other *simResult) bool {
	if !s.finalOutput.Equal(other.finalOutput) {
		return s.finalOutput.GreaterThan(other.finalOutput)
	}
	if len(s.hops) != len(other.hops) {
		return len(s.hops) < len(other.hops)
	}
	if !s.priceImpactPct.Equal(other.priceImpactPct) {
		return s.priceImpactPct.LessThan(other.priceImpactPct)
	}
	return s.routeID < other.routeID
}

// simulatePath walks one candidate node sequence left to right, feeding
// each hop's output as the next hop's input, and aggregates the
// path-level price impact from each hop's spot price.
func (e *Engine) simulatePath(lg *liquidityGraph, nodes []graph.Node, amountIn decimal.Decimal) *simResult {
	amount := amountIn
	spotProduct := decimal.NewFromInt(1)
	hops := make([]domain.Hop, 0, len(nodes)-1)

	for i := 0; i < len(nodes)-1; i++ {
		from := nodes[i].ID()
		to := nodes[i+1].ID()
		edges := lg.edgesBetween(from, to)
		if len(edges) == 0 {
			return nil
		}
		r := simulateEdge(edges, amount)
		if !r.ok {
			return nil
		}

		hops = append(hops, domain.Hop{
			Source:         lg.idAsset[from],
			Destination:    lg.idAsset[to],
			Venue:          r.venue,
			ExpectedOutput: r.output,
			Price:          r.price,
		})
		spotProduct = spotProduct.Mul(r.spot)
		amount = r.output
	}

	if !amount.IsPositive() {
		return nil
	}

	realizedPrice := amount.Div(amountIn)
	impact := decimal.NewFromInt(1)
	if spotProduct.IsPositive() {
		impact = decimal.NewFromInt(1).Sub(realizedPrice.Div(spotProduct))
	}
	if impact.IsNegative() {
		impact = decimal.Zero
	}

	return &simResult{
		hops:           hops,
		finalOutput:    amount,
		priceImpactPct: impact,
		routeID:        uuid.NewString(),
	}
}

// buildResult turns a winning simulation into the engine's public result
// shape, computing min_output and the protocol fee.
func (e *Engine) buildResult(req domain.QuoteRequest, sr *simResult) *domain.QuoteResult {
	slippage, _ := decimal.NewFromString(defaultSlippageTolerance)
	minOutput := sr.finalOutput.Mul(decimal.NewFromInt(1).Sub(slippage))
	fee := decimal.NewFromInt(e.feeRateBps).Mul(sr.finalOutput).Div(decimal.NewFromInt(10000))
	aggregatePrice := sr.finalOutput.Div(req.AmountIn)

	route := domain.Route{
		ID:             sr.routeID,
		Hops:           sr.hops,
		ExpectedOutput: sr.finalOutput,
		MinOutput:      minOutput,
		Expiry:         time.Now().UTC().Add(quoteValidity),
	}

	return &domain.QuoteResult{
		Request:        req,
		Route:          route,
		AggregatePrice: aggregatePrice,
		PriceImpactPct: sr.priceImpactPct,
		ProtocolFee:    fee,
		ValidUntil:     route.Expiry,
	}
}
