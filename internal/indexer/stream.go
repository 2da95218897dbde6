package indexer

import (
	"context"
	"time"

	"github.com/stellar-aggregon/aggregon/internal/domain"
)

// streamLoop opens a long-lived Horizon subscription and applies deltas as
// they arrive, reconnecting with bounded backoff on disconnection (§4.3
// streaming mode).
func (s *Service) streamLoop(ctx context.Context) {
	defer s.wg.Done()

	delay := reconnectBaseDelay
	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		cursor, _, err := s.store.GetCursor(ctx, cursorKey)
		if err != nil {
			s.log.Error().Err(err).Msg("read cursor for stream")
			return
		}

		events, err := s.horizon.StreamOffers(ctx, cursor)
		if err != nil {
			s.log.Warn().Err(err).Dur("backoff", delay).Msg("stream subscribe failed, reconnecting")
			if !s.sleepOrStop(delay) {
				return
			}
			delay = nextBackoff(delay)
			continue
		}

		delay = reconnectBaseDelay
		s.consumeStream(ctx, events)

		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}
		s.log.Warn().Dur("backoff", delay).Msg("stream disconnected, reconnecting")
		if !s.sleepOrStop(delay) {
			return
		}
		delay = nextBackoff(delay)
	}
}

// consumeStream applies each delta until the channel closes.
func (s *Service) consumeStream(ctx context.Context, ch <-chan domain.OfferEvent) {
	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			s.applyEvent(ctx, ev)
		}
	}
}

func (s *Service) applyEvent(ctx context.Context, ev domain.OfferEvent) {
	var err error
	switch ev.Kind {
	case domain.OfferRemoved:
		err = s.store.DeleteOffer(ctx, ev.Offer.ID)
	default:
		err = s.upsertIfNewer(ctx, ev.Offer)
	}
	if err != nil {
		s.log.Error().Err(err).Int64("offer_id", ev.Offer.ID).Msg("apply stream event")
		return
	}

	if ev.Offer.LastModifiedLedger > s.lastLedgerSeen.Load() {
		s.lastLedgerSeen.Store(ev.Offer.LastModifiedLedger)
		s.latestHorizon.Store(ev.Offer.LastModifiedLedger)
	}
	if ev.Cursor != "" {
		if err := s.store.SetCursor(ctx, cursorKey, ev.Cursor); err != nil {
			s.log.Error().Err(err).Msg("advance cursor for stream event")
			return
		}
	}
	s.emitLag()
}

func (s *Service) sleepOrStop(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.stopChan:
		return false
	case <-timer.C:
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	next := d * 2
	if next > reconnectMaxDelay {
		return reconnectMaxDelay
	}
	return next
}
