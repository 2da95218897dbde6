// Package poolregistry maintains the in-memory AMM pool directory (§4.4):
// addresses known to the system, their last-refreshed reserves, and the
// stale-after-N-consecutive-failures policy that takes a pool out of
// routing consideration without forgetting it.
package poolregistry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/stellar-aggregon/aggregon/internal/domain"
)

func toDecimal(raw int64) decimal.Decimal {
	return decimal.New(raw, -domain.MoneyScale)
}

type poolMap map[string]domain.PoolDescriptor

// Registry implements domain.PoolRegistry with copy-on-write snapshots:
// reads never block behind a refresh, and a refresh never blocks a read.
type Registry struct {
	pools             atomic.Pointer[poolMap]
	soroban           domain.SorobanClient
	maxStaleIntervals int
	log               zerolog.Logger
}

// New builds an empty registry backed by soroban for reserve refreshes.
func New(soroban domain.SorobanClient, maxStaleIntervals int, log zerolog.Logger) *Registry {
	r := &Registry{
		soroban:           soroban,
		maxStaleIntervals: maxStaleIntervals,
		log:               log.With().Str("component", "poolregistry").Logger(),
	}
	empty := poolMap{}
	r.pools.Store(&empty)
	return r
}

// Register adds or replaces a pool descriptor, used when a new pool is
// registered on-chain (reg_pool event, §4.6) or seeded at startup from
// pools-<network>.json.
func (r *Registry) Register(address string, descriptor domain.PoolDescriptor) {
	descriptor.Address = address
	r.mutate(func(next poolMap) {
		next[address] = descriptor
	})
}

// Get reads one pool descriptor by address.
func (r *Registry) Get(address string) (domain.PoolDescriptor, bool) {
	m := *r.pools.Load()
	p, ok := m[address]
	return p, ok
}

// ListForPair returns every non-stale pool descriptor trading between a
// and b, in either direction.
func (r *Registry) ListForPair(a, b domain.Asset) []domain.PoolDescriptor {
	m := *r.pools.Load()
	var out []domain.PoolDescriptor
	for _, p := range m {
		if p.Stale(r.maxStaleIntervals) {
			continue
		}
		if (p.AssetA.Equal(a) && p.AssetB.Equal(b)) || (p.AssetA.Equal(b) && p.AssetB.Equal(a)) {
			out = append(out, p)
		}
	}
	return out
}

// ListAll returns every pool descriptor, stale or not; the routing engine
// builds its liquidity graph from it.
func (r *Registry) ListAll() []domain.PoolDescriptor {
	m := *r.pools.Load()
	out := make([]domain.PoolDescriptor, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	return out
}

// RefreshAll queries Soroban RPC for every registered pool's current
// reserves, independently so a failing pool cannot block the others
// (§4.4). A pool that fails has its StaleRefresh counter incremented; a
// pool that succeeds has it reset to zero.
func (r *Registry) RefreshAll(ctx context.Context) error {
	m := *r.pools.Load()
	next := make(poolMap, len(m))
	var failed, refreshed int

	for addr, p := range m {
		reserveA, reserveB, feeBps, err := r.soroban.GetPoolReserves(ctx, addr)
		if err != nil {
			p.StaleRefresh++
			next[addr] = p
			failed++
			r.log.Warn().Err(err).Str("pool", addr).Int("consecutive_failures", p.StaleRefresh).Msg("pool refresh failed")
			continue
		}
		p.ReserveA = toDecimal(reserveA)
		p.ReserveB = toDecimal(reserveB)
		p.FeeBps = feeBps
		p.LastRefresh = time.Now().UTC()
		p.StaleRefresh = 0
		next[addr] = p
		refreshed++
	}

	r.pools.Store(&next)
	r.log.Debug().Int("refreshed", refreshed).Int("failed", failed).Msg("pool refresh cycle complete")
	return nil
}

func (r *Registry) mutate(fn func(next poolMap)) {
	for {
		oldPtr := r.pools.Load()
		next := make(poolMap, len(*oldPtr)+1)
		for k, v := range *oldPtr {
			next[k] = v
		}
		fn(next)
		if r.pools.CompareAndSwap(oldPtr, &next) {
			return
		}
	}
}
