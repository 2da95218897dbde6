// Package routing implements the multi-hop quote engine (§4.5): liquidity
// graph construction over live offers and AMM pools, bounded-depth
// candidate-path enumeration, per-hop venue simulation, and ranking by
// realized output.
package routing

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"

	"github.com/stellar-aggregon/aggregon/internal/domain"
)

// edgeKind distinguishes the two liquidity sources an edge may represent.
type edgeKind int

const (
	edgeSdex edgeKind = iota
	edgeAmm
)

// edgeData carries the venue-specific state a graph edge needs for
// simulation; gonum's graph only models connectivity, not payload, so this
// lives in a side map keyed by (from, to) node ids.
type edgeData struct {
	kind  edgeKind
	offers []domain.Offer      // sorted ascending by price, edgeSdex only
	pool  domain.PoolDescriptor // edgeAmm only; ReserveA/B are always (from-asset, to-asset) order
}

// liquidityDepth is used both to prune low-liquidity detours (§4.5 step 2)
// and as a gonum edge weight so denser liquidity is preferred when the
// search enumerates candidates.
func (e edgeData) liquidityDepth() float64 {
	switch e.kind {
	case edgeSdex:
		total := 0.0
		for _, o := range e.offers {
			f, _ := o.Amount.Float64()
			total += f
		}
		return total
	case edgeAmm:
		a, _ := e.pool.ReserveA.Float64()
		b, _ := e.pool.ReserveB.Float64()
		return a + b
	}
	return 0
}

// liquidityGraph is the per-request, read-only graph built from a
// snapshot of offers and pool descriptors (§4.5 concurrency note: the
// engine never holds these across awaits, so two concurrent quotes can
// observe different-but-internally-consistent snapshots).
type liquidityGraph struct {
	g       *simple.WeightedDirectedGraph
	assetID map[string]int64
	idAsset map[int64]domain.Asset
	edges   map[[2]int64][]edgeData // parallel edges between a node pair (multiple SDEX ladders never occur, but AMM+SDEX can coexist)
	nextID  int64
}

func newLiquidityGraph() *liquidityGraph {
	return &liquidityGraph{
		g:       simple.NewWeightedDirectedGraph(0, 0),
		assetID: map[string]int64{},
		idAsset: map[int64]domain.Asset{},
		edges:   map[[2]int64][]edgeData{},
	}
}

func (lg *liquidityGraph) nodeFor(a domain.Asset) int64 {
	key := a.String()
	if id, ok := lg.assetID[key]; ok {
		return id
	}
	id := lg.nextID
	lg.nextID++
	lg.assetID[key] = id
	lg.idAsset[id] = a
	lg.g.AddNode(simple.Node(id))
	return id
}

func (lg *liquidityGraph) addEdge(from, to domain.Asset, data edgeData) {
	f := lg.nodeFor(from)
	t := lg.nodeFor(to)
	key := [2]int64{f, t}
	lg.edges[key] = append(lg.edges[key], data)

	depth := data.liquidityDepth()
	weight := 1.0
	if depth > 0 {
		weight = 1.0 / depth
	}
	if existing := lg.g.WeightedEdge(f, t); existing == nil || existing.Weight() > weight {
		lg.g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(f), T: simple.Node(t), W: weight})
	}
}

// edgesBetween returns every parallel edge (SDEX and/or AMM) from one node
// to another.
func (lg *liquidityGraph) edgesBetween(from, to int64) []edgeData {
	return lg.edges[[2]int64{from, to}]
}

// buildLiquidityGraph constructs the graph for one quote request from a
// flat snapshot of offers and pools (§4.5 step 1).
func buildLiquidityGraph(offers []domain.Offer, pools []domain.PoolDescriptor) *liquidityGraph {
	lg := newLiquidityGraph()

	// A taker walks an offer in the direction opposite to how its owner
	// posted it: the owner sells Selling for Buying, so a taker pays
	// Buying and receives Selling. The graph edge therefore runs
	// Buying -> Selling.
	byPair := map[[2]string][]domain.Offer{}
	for _, o := range offers {
		key := [2]string{o.Buying.String(), o.Selling.String()}
		byPair[key] = append(byPair[key], o)
	}
	for _, group := range byPair {
		sort.Slice(group, func(i, j int) bool { return group[i].Price.LessThan(group[j].Price) })
		from, to := group[0].Buying, group[0].Selling
		lg.addEdge(from, to, edgeData{kind: edgeSdex, offers: group})
	}

	for _, p := range pools {
		if p.ReserveA.IsZero() || p.ReserveB.IsZero() {
			continue
		}
		lg.addEdge(p.AssetA, p.AssetB, edgeData{kind: edgeAmm, pool: p})
		reversed := p
		reversed.ReserveA, reversed.ReserveB = p.ReserveB, p.ReserveA
		lg.addEdge(p.AssetB, p.AssetA, edgeData{kind: edgeAmm, pool: reversed})
	}

	return lg
}
