// Package contract is a Go-native expression of the on-chain router
// contract's state machine (§4.6). Soroban contracts compile from Rust to
// WASM; there is no idiomatic way to author or run one from Go, so this
// package implements the same storage model, entrypoints, typed error
// taxonomy, and event emission as a deterministic, single-threaded,
// in-process state machine instead — used by cmd/deploy,
// cmd/registerpools and cmd/upgrade, but it is explicitly not a
// substitute for the real on-chain contract.
package contract

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stellar-aggregon/aggregon/internal/domain"
	"github.com/stellar-aggregon/aggregon/internal/estimator"
	"github.com/stellar-aggregon/aggregon/internal/events"
)

const (
	instanceTTLBump   = 7 * 24 * time.Hour
	persistentTTLBump = 30 * 24 * time.Hour

	// ContractVersion is returned by the version() view; bumped whenever
	// the entrypoint set or storage schema changes.
	ContractVersion uint32 = 1
)

// lifecycle tracks the Uninitialized -> Active <-> Paused state machine;
// Active -> Uninitialized is unreachable, matching the on-chain contract.
type lifecycle int

const (
	lifecycleUninitialized lifecycle = iota
	lifecycleActive
	lifecyclePaused
)

// instanceState is the contract's instance storage: admin, fee
// configuration, and pause flag. TTL is bumped on every write.
type instanceState struct {
	admin         string
	feeRateBps    int64
	feeRecipient  string
	state         lifecycle
	ttlExpiresAt  time.Time
}

// persistentState is the contract's persistent storage: the registered
// pool set and its count. TTL is bumped on every write, independently of
// instance storage.
type persistentState struct {
	pools        map[string]struct{}
	ttlExpiresAt time.Time
}

// Router is the in-process state machine implementing the router
// contract's public entrypoints. All methods are safe for concurrent
// invocation; the contract itself is single-threaded per §4.6, so Router
// serializes entrypoint execution behind one mutex, matching the host
// runtime's execution model.
type Router struct {
	mu         sync.Mutex
	instance   instanceState
	persistent persistentState
	bus        *events.Bus
	now        func() time.Time
}

// New builds an uninitialized router contract. bus may be nil, in which
// case events are computed but not published.
func New(bus *events.Bus) *Router {
	return &Router{
		persistent: persistentState{pools: map[string]struct{}{}},
		bus:        bus,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *Router) emit(component string, data events.EventData) {
	if r.bus != nil {
		r.bus.Emit(component, data)
	}
}

// Initialize is the one-shot admin/fee bootstrap. Fails with
// AlreadyInitialized if called twice.
func (r *Router) Initialize(admin string, feeRateBps int64, feeRecipient string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.instance.state != lifecycleUninitialized {
		return domain.NewContractError(domain.ErrAlreadyInitialized)
	}

	r.instance = instanceState{
		admin:        admin,
		feeRateBps:   feeRateBps,
		feeRecipient: feeRecipient,
		state:        lifecycleActive,
		ttlExpiresAt: r.now().Add(instanceTTLBump),
	}
	r.emit("contract", &events.ContractInitializedData{Admin: admin, FeeRateBps: feeRateBps, FeeTo: feeRecipient})
	return nil
}

// requireAdmin must be called with r.mu held.
func (r *Router) requireAdmin(caller string) error {
	if r.instance.state == lifecycleUninitialized {
		return domain.NewContractError(domain.ErrNotInitialized)
	}
	if caller != r.instance.admin {
		return domain.NewContractError(domain.ErrUnauthorized)
	}
	return nil
}

// SetAdmin rotates the admin address; requires the current admin's auth.
func (r *Router) SetAdmin(caller, newAdmin string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	old := r.instance.admin
	r.instance.admin = newAdmin
	r.instance.ttlExpiresAt = r.now().Add(instanceTTLBump)
	r.emit("contract", &events.AdminChangedData{Old: old, New: newAdmin})
	return nil
}

// RegisterPool admits a pool address into the registered set; admin-only.
func (r *Router) RegisterPool(caller, poolAddress string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	if _, exists := r.persistent.pools[poolAddress]; exists {
		// No dedicated "already registered" variant in the fixed taxonomy;
		// PoolNotRegistered is the closest fit for a pool-identity conflict.
		return domain.NewContractError(domain.ErrPoolNotRegistered)
	}
	r.persistent.pools[poolAddress] = struct{}{}
	r.persistent.ttlExpiresAt = r.now().Add(persistentTTLBump)
	r.emit("contract", &events.PoolRegisteredData{Pool: poolAddress})
	return nil
}

// Pause halts execute_swap while leaving get_quote available; admin-only.
func (r *Router) Pause(caller string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	r.instance.state = lifecyclePaused
	r.instance.ttlExpiresAt = r.now().Add(instanceTTLBump)
	r.emit("contract", &events.ContractPausedData{})
	return nil
}

// Unpause restores execute_swap; admin-only.
func (r *Router) Unpause(caller string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	r.instance.state = lifecycleActive
	r.instance.ttlExpiresAt = r.now().Add(instanceTTLBump)
	r.emit("contract", &events.ContractUnpausedData{})
	return nil
}

// IsPoolRegistered is a read-only view.
func (r *Router) IsPoolRegistered(poolAddress string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.persistent.pools[poolAddress]
	return ok
}

// GetPoolCount is a read-only view.
func (r *Router) GetPoolCount() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint32(len(r.persistent.pools))
}

// GetAdmin is a read-only view.
func (r *Router) GetAdmin() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instance.admin
}

// GetFeeRateValue is a read-only view.
func (r *Router) GetFeeRateValue() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instance.feeRateBps
}

// IsPaused is a read-only view.
func (r *Router) IsPaused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instance.state == lifecyclePaused
}

// Version is a read-only view.
func (r *Router) Version() uint32 { return ContractVersion }

// EstimateResources implements the estimate_resources view (§4.6): a
// pure prediction of a route's on-chain CPU/storage profile, checked
// against the host's budgets without running simulate.
func (r *Router) EstimateResources(route domain.Route) domain.ResourceEstimate {
	return estimator.Estimate(route)
}

// checkRoute validates the route-shape preconditions shared by get_quote
// and execute_swap: hop count in range and every pool registered.
func (r *Router) checkRoute(route domain.Route) error {
	if len(route.Hops) == 0 {
		return domain.NewContractError(domain.ErrInvalidRoute)
	}
	if len(route.Hops) > domain.MaxHops {
		return domain.NewContractError(domain.ErrRouteTooLong)
	}
	for _, h := range route.Hops {
		if h.Venue.Kind != domain.VenueAmm {
			continue
		}
		if _, ok := r.persistent.pools[h.Venue.PoolAddress]; !ok {
			return domain.NewContractError(domain.ErrPoolNotRegistered)
		}
	}
	return nil
}

// GetQuote performs a read-only simulation of the route using each hop's
// reserve-only swap_out view, without transferring anything. It succeeds
// even while the contract is paused.
func (r *Router) GetQuote(amountIn decimal.Decimal, route domain.Route) (*domain.QuoteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.instance.state == lifecycleUninitialized {
		return nil, domain.NewContractError(domain.ErrNotInitialized)
	}
	if err := r.checkRoute(route); err != nil {
		return nil, err
	}

	output, err := r.simulate(amountIn, route)
	if err != nil {
		return nil, err
	}

	fee := decimal.NewFromInt(r.instance.feeRateBps).Mul(output).Div(decimal.NewFromInt(10000))
	aggregatePrice := output.Div(amountIn)

	return &domain.QuoteResult{
		Route: domain.Route{
			ID:             route.ID,
			Hops:           route.Hops,
			ExpectedOutput: output,
			MinOutput:      route.MinOutput,
			Expiry:         route.Expiry,
		},
		AggregatePrice: aggregatePrice,
		ProtocolFee:    fee,
		ValidUntil:     r.now().Add(30 * time.Second),
	}, nil
}

// SwapParams is the execute_swap argument bundle (§4.6).
type SwapParams struct {
	AmountIn  decimal.Decimal
	Route     domain.Route
	MinOutput decimal.Decimal
	Deadline  time.Time
}

// ExecuteSwap chains cross-"contract" swap calls hop-by-hop, threading
// each hop's output into the next hop's input, and asserts the realized
// output against min_output before any state change is considered final.
// The contract holds no balances between invocations; it is strictly a
// chainer over already-registered pools.
func (r *Router) ExecuteSwap(sender string, params SwapParams) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.instance.state == lifecycleUninitialized {
		return decimal.Zero, domain.NewContractError(domain.ErrNotInitialized)
	}
	if r.instance.state == lifecyclePaused {
		return decimal.Zero, domain.NewContractError(domain.ErrPaused)
	}
	if err := r.checkRoute(params.Route); err != nil {
		return decimal.Zero, err
	}
	if r.now().After(params.Deadline) {
		return decimal.Zero, domain.NewContractError(domain.ErrExpired)
	}

	output, err := r.simulate(params.AmountIn, params.Route)
	if err != nil {
		return decimal.Zero, err
	}
	if output.LessThan(params.MinOutput) {
		return decimal.Zero, domain.NewContractError(domain.ErrSlippageExceeded)
	}

	fee := decimal.NewFromInt(r.instance.feeRateBps).Mul(output).Div(decimal.NewFromInt(10000))
	r.emit("contract", &events.SwapExecutedData{
		Sender:    sender,
		RouteHash: routeHash(params.Route),
		AmountIn:  params.AmountIn.String(),
		AmountOut: output.String(),
		Fee:       fee.String(),
	})
	return output, nil
}

// simulate walks the route hop by hop using each hop's already-computed
// ExpectedOutput as the reserve-only swap_out result (the routing engine
// is responsible for populating it from live reserves/ladders before a
// route reaches the contract layer); a hop whose output collapses to zero
// or negative fails the whole route at that hop index.
func (r *Router) simulate(amountIn decimal.Decimal, route domain.Route) (decimal.Decimal, error) {
	amount := amountIn
	for i, h := range route.Hops {
		if !h.ExpectedOutput.IsPositive() {
			return decimal.Zero, domain.NewPoolCallFailed(i)
		}
		amount = h.ExpectedOutput
	}
	return amount, nil
}

// routeHash is a deterministic, order-sensitive digest of a route's hops,
// used as the swap event's audit identifier in place of the on-chain
// contract's native route hash.
func routeHash(route domain.Route) string {
	h := fmt.Sprintf("%d", len(route.Hops))
	for _, hop := range route.Hops {
		h += "|" + hop.Source.String() + ">" + hop.Destination.String() + ":" + hop.Venue.String()
	}
	return h
}
