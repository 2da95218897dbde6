package indexer

import (
	"context"
	"errors"
	"time"

	"github.com/stellar-aggregon/aggregon/internal/domain"
)

// pollLoop runs pollOnce on a ticker until stopChan closes (§4.3 polling
// mode).
func (s *Service) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	s.ticker = time.NewTicker(s.pollInterval)
	defer s.ticker.Stop()

	s.pollOnce(ctx)

	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		case <-s.ticker.C:
			s.pollOnce(ctx)
		}
	}
}

// pollOnce pages fetch_offers from the last committed cursor, upserting
// each page and then advancing the cursor once per page. The upserts and
// the cursor write are separate store calls, not one transaction. A fatal
// Horizon error (the stored cursor was rejected) triggers a one-shot
// cold-start resweep.
func (s *Service) pollOnce(ctx context.Context) {
	cursor, _, err := s.store.GetCursor(ctx, cursorKey)
	if err != nil {
		s.log.Error().Err(err).Msg("read cursor")
		return
	}

	for {
		batch, nextCursor, err := s.horizon.FetchOffers(ctx, cursor, fetchPageLimit)
		if err != nil {
			var derr *domain.Error
			if errors.As(err, &derr) && derr.Kind == domain.KindFatalExternal {
				s.log.Warn().Err(err).Msg("cursor rejected by horizon, starting cold-start resweep")
				s.coldStart(ctx)
				return
			}
			s.log.Error().Err(err).Msg("fetch offers")
			return
		}

		if err := s.applyBatch(ctx, batch, nextCursor); err != nil {
			s.log.Error().Err(err).Msg("apply offer batch")
			return
		}

		cursor = nextCursor
		if len(batch) < fetchPageLimit {
			break
		}
	}

	s.emitLag()
}

// applyBatch upserts every offer in batch (discarding any whose
// last_modified_ledger regresses relative to the stored row — idempotence
// under reorder) and advances the cursor, both per §4.3.
func (s *Service) applyBatch(ctx context.Context, batch []domain.Offer, nextCursor string) error {
	for _, o := range batch {
		if err := s.upsertIfNewer(ctx, o); err != nil {
			return err
		}
		if o.LastModifiedLedger > s.lastLedgerSeen.Load() {
			s.lastLedgerSeen.Store(o.LastModifiedLedger)
			s.latestHorizon.Store(o.LastModifiedLedger)
		}
	}
	if nextCursor != "" {
		if err := s.store.SetCursor(ctx, cursorKey, nextCursor); err != nil {
			return err
		}
	}
	return nil
}

// upsertIfNewer discards the incoming record if a fresher one is already
// stored (§4.3 upsert semantics).
func (s *Service) upsertIfNewer(ctx context.Context, o domain.Offer) error {
	existing, err := s.store.GetOffer(ctx, o.ID)
	if err != nil {
		return err
	}
	if existing != nil && existing.LastModifiedLedger > o.LastModifiedLedger {
		return nil
	}
	return s.store.UpsertOffer(ctx, o)
}

// coldStart clears the cursor and resweeps the full offer set from the
// beginning. Offers not observed by the sweep are not deleted until the
// sweep completes, so a crash mid-sweep never loses previously-known
// offers.
func (s *Service) coldStart(ctx context.Context) {
	if err := s.store.ClearCursor(ctx, cursorKey); err != nil {
		s.log.Error().Err(err).Msg("clear cursor for cold start")
		return
	}

	seen := make(map[int64]struct{})
	cursor := ""
	for {
		batch, nextCursor, err := s.horizon.FetchOffers(ctx, cursor, fetchPageLimit)
		if err != nil {
			s.log.Error().Err(err).Msg("cold-start fetch offers")
			return
		}
		for _, o := range batch {
			seen[o.ID] = struct{}{}
		}
		if err := s.applyBatch(ctx, batch, nextCursor); err != nil {
			s.log.Error().Err(err).Msg("cold-start apply batch")
			return
		}
		cursor = nextCursor
		if len(batch) < fetchPageLimit {
			break
		}
	}

	s.pruneUnseen(ctx, seen)
}

// pruneUnseen deletes offers the cold-start sweep did not observe, once
// the sweep has fully completed.
func (s *Service) pruneUnseen(ctx context.Context, seen map[int64]struct{}) {
	all, err := s.store.AllActiveOffers(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("cold-start prune: list active offers")
		return
	}
	for _, o := range all {
		if _, ok := seen[o.ID]; ok {
			continue
		}
		if err := s.store.DeleteOffer(ctx, o.ID); err != nil {
			s.log.Error().Err(err).Int64("offer_id", o.ID).Msg("cold-start prune: delete stale offer")
		}
	}
}
