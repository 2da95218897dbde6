package routing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/stellar-aggregon/aggregon/internal/domain"
)

// hopResult is the outcome of simulating one edge with a given input
// amount: the output it yields, the realized price, and the spot price the
// edge quoted before consuming any liquidity (used for price-impact, §4.5
// step 4).
type hopResult struct {
	venue  domain.Venue
	output decimal.Decimal
	price  decimal.Decimal // output/input, this hop only
	spot   decimal.Decimal // best available price before this hop consumed liquidity
	ok     bool
}

// simulateSdex walks the offer ladder greedily: the taker pays in the
// offer's buying asset and receives its selling asset, so the cheapest
// offer (lowest buying-per-selling price) is consumed first, then the
// next, until amountIn is exhausted or the ladder runs dry. Ties in price
// are broken by lower offer_id (§4.5 step 3).
func simulateSdex(offers []domain.Offer, amountIn decimal.Decimal) hopResult {
	if len(offers) == 0 || !amountIn.IsPositive() {
		return hopResult{}
	}

	ladder := make([]domain.Offer, len(offers))
	copy(ladder, offers)
	sort.Slice(ladder, func(i, j int) bool {
		if !ladder[i].Price.Equal(ladder[j].Price) {
			return ladder[i].Price.LessThan(ladder[j].Price)
		}
		return ladder[i].ID < ladder[j].ID
	})
	if ladder[0].Price.IsZero() {
		return hopResult{}
	}

	spot := decimal.NewFromInt(1).Div(ladder[0].Price) // output units per 1 input unit, at the best price
	remaining := amountIn
	output := decimal.Zero

	for _, o := range ladder {
		if !remaining.IsPositive() {
			break
		}
		if o.Price.IsZero() || !o.Amount.IsPositive() {
			continue
		}
		// cost is how much of the buying asset it takes to drain this
		// offer's full selling-asset depth.
		cost := o.Amount.Mul(o.Price)
		if remaining.LessThanOrEqual(cost) {
			output = output.Add(remaining.Div(o.Price))
			remaining = decimal.Zero
			break
		}
		output = output.Add(o.Amount)
		remaining = remaining.Sub(cost)
	}

	if !output.IsPositive() {
		return hopResult{}
	}

	consumed := amountIn.Sub(remaining)
	price := output.Div(consumed)
	return hopResult{
		venue:  domain.Venue{Kind: domain.VenueSdex},
		output: output,
		price:  price,
		spot:   spot,
		ok:     remaining.IsZero(), // partial fills do not satisfy the hop (§4.5 edge case)
	}
}

// simulateAmm applies the constant-product formula with a basis-point fee,
// exactly as §4.5 specifies:
//
//	output = (reserveOut * amountIn * (10000 - feeBps)) / (reserveIn * 10000 + amountIn * (10000 - feeBps))
func simulateAmm(pool domain.PoolDescriptor, amountIn decimal.Decimal) hopResult {
	reserveIn, reserveOut := pool.ReserveA, pool.ReserveB
	if !reserveIn.IsPositive() || !reserveOut.IsPositive() || !amountIn.IsPositive() {
		return hopResult{}
	}

	tenThousand := decimal.NewFromInt(10000)
	feeFactor := tenThousand.Sub(decimal.NewFromInt(pool.FeeBps))
	if feeFactor.IsNegative() {
		return hopResult{}
	}

	numerator := reserveOut.Mul(amountIn).Mul(feeFactor)
	denominator := reserveIn.Mul(tenThousand).Add(amountIn.Mul(feeFactor))
	if denominator.IsZero() {
		return hopResult{}
	}
	output := numerator.Div(denominator)
	if !output.IsPositive() || output.GreaterThanOrEqual(reserveOut) {
		return hopResult{}
	}

	spot := reserveOut.Div(reserveIn)
	price := output.Div(amountIn)
	return hopResult{
		venue: domain.Venue{
			Kind:        domain.VenueAmm,
			PoolAddress: pool.Address,
			PoolType:    pool.Type,
		},
		output: output,
		price:  price,
		spot:   spot,
		ok:     true,
	}
}

// simulateEdge dispatches to the venue-appropriate simulator. When an edge
// carries both an SDEX ladder and an AMM pool (possible once both exist for
// the same asset pair), it picks whichever yields the larger output for
// this input — the graph only models one parallel edge at a time, but
// simulation happens per edgeData, so the candidate-path walk tries each
// edgeData entry and keeps the best.
func simulateEdge(edges []edgeData, amountIn decimal.Decimal) hopResult {
	var best hopResult
	for _, e := range edges {
		var r hopResult
		switch e.kind {
		case edgeSdex:
			r = simulateSdex(e.offers, amountIn)
		case edgeAmm:
			r = simulateAmm(e.pool, amountIn)
		}
		if r.ok && r.output.GreaterThan(best.output) {
			best = r
		}
	}
	return best
}
