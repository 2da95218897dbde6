// Package estimator implements the router contract's estimate_resources
// view (§4.6) as a pure function: given a route, predict the CPU and
// storage profile executing it on-chain would consume, without actually
// running the contract's state machine.
package estimator

import (
	"github.com/stellar-aggregon/aggregon/internal/domain"
)

// Runtime budgets estimate_resources checks against (§4.6): the Soroban
// host's approximate per-transaction ceilings.
const (
	cpuBudget      = 100_000_000
	wasmSizeBudget = 56 * 1024
)

// Per-hop CPU cost, in instructions, by venue. An AMM hop uses inline
// constant-product math; an SDEX hop walks an offer ladder and costs
// more per the resource-discipline note in §4.6.
const (
	baseCPU       int64 = 2_000_000 // admin/paused reads, route-shape checks
	ammHopCPU     int64 = 1_500_000
	sdexHopCPU    int64 = 4_000_000
	instanceReads       = 2 // admin, paused
)

// Estimate computes a conservative resource profile for a route, mirroring
// the contract's own instance/persistent storage access pattern: two
// instance reads plus one membership read per hop, and a single storage
// write for TTL-bump bookkeeping (§4.6 resource-discipline note: "at most
// 6 storage reads and 1 storage write on a 4-hop swap").
func Estimate(route domain.Route) domain.ResourceEstimate {
	if len(route.Hops) == 0 || len(route.Hops) > domain.MaxHops {
		return domain.ResourceEstimate{
			WillSucceed: false,
			Reason:      "route must have between 1 and 4 hops",
		}
	}

	cpu := baseCPU
	for _, h := range route.Hops {
		switch h.Venue.Kind {
		case domain.VenueAmm:
			cpu += ammHopCPU
		case domain.VenueSdex:
			cpu += sdexHopCPU
		}
	}

	reads := instanceReads + len(route.Hops)
	writes := 1
	evts := 1

	if cpu > cpuBudget {
		return domain.ResourceEstimate{
			EstimatedCPU:  cpu,
			StorageReads:  reads,
			StorageWrites: writes,
			Events:        evts,
			WillSucceed:   false,
			Reason:        "estimated CPU exceeds the host's per-transaction budget",
		}
	}

	return domain.ResourceEstimate{
		EstimatedCPU:  cpu,
		StorageReads:  reads,
		StorageWrites: writes,
		Events:        evts,
		WillSucceed:   true,
	}
}
