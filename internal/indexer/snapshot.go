package indexer

import "context"

// runSnapshotCycle captures a fresh orderbook snapshot for every active
// pair (§4.3: "a periodic task... invokes the store's snapshot routine.
// Snapshots are purely additive.").
func (s *Service) runSnapshotCycle(ctx context.Context) {
	pairs, err := s.store.ActivePairs(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("snapshot cycle: list active pairs")
		return
	}

	ledgerSeq := s.lastLedgerSeen.Load()
	for _, p := range pairs {
		if _, err := s.store.CaptureSnapshot(ctx, p.Base, p.Counter, ledgerSeq); err != nil {
			s.log.Error().Err(err).Str("base", p.Base.String()).Str("counter", p.Counter.String()).Msg("capture snapshot")
		}
	}
}

// runPoolRefresh drives the pool registry's own refresh cycle on the
// indexer's cron schedule rather than a second hand-rolled ticker.
func (s *Service) runPoolRefresh(ctx context.Context) {
	if err := s.pools.RefreshAll(ctx); err != nil {
		s.log.Error().Err(err).Msg("pool registry refresh")
	}
}
