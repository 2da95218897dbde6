package store

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stellar-aggregon/aggregon/internal/domain"
)

type bookEntryJSON struct {
	Price   string `json:"price"`
	Amount  string `json:"amount"`
	OfferID int64  `json:"offer_id"`
}

// CaptureSnapshot materializes the current orderbook for (base, counter)
// into orderbook_snapshots: bids sorted descending by price, asks ascending,
// with spread and mid-price computed from the best bid/ask (§8 scenario 4).
func (s *Store) CaptureSnapshot(ctx context.Context, base, counter domain.Asset, ledgerSeq int64) (*domain.OrderbookSnapshot, error) {
	bids, asks, observedLedger, err := s.ActiveOrderbook(ctx, base, counter)
	if err != nil {
		return nil, err
	}
	if ledgerSeq == 0 {
		ledgerSeq = observedLedger
	}

	sort.Slice(bids, func(i, j int) bool { return bids[i].Price.GreaterThan(bids[j].Price) })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price.LessThan(asks[j].Price) })

	snap := domain.OrderbookSnapshot{
		Bids:           bids,
		Asks:           asks,
		BidCount:       len(bids),
		AskCount:       len(asks),
		SnapshotTime:   time.Now().UTC(),
		LedgerSequence: ledgerSeq,
	}

	if len(bids) > 0 && len(asks) > 0 {
		snap.Spread = asks[0].Price.Sub(bids[0].Price)
		snap.MidPrice = bids[0].Price.Add(asks[0].Price).Div(decimal.NewFromInt(2))
	}

	snap.TotalBidVolume = decimal.Zero
	for _, b := range bids {
		snap.TotalBidVolume = snap.TotalBidVolume.Add(b.Amount)
	}
	snap.TotalAskVolume = decimal.Zero
	for _, a := range asks {
		snap.TotalAskVolume = snap.TotalAskVolume.Add(a.Amount)
	}

	baseID, err := s.UpsertAsset(ctx, base)
	if err != nil {
		return nil, err
	}
	counterID, err := s.UpsertAsset(ctx, counter)
	if err != nil {
		return nil, err
	}
	var pairID int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO trading_pairs (base_id, counter_id, active, total_offers)
		VALUES (?, ?, 1, 0)
		ON CONFLICT (base_id, counter_id) DO UPDATE SET active = trading_pairs.active
		RETURNING id`, baseID, counterID,
	).Scan(&pairID)
	if err != nil {
		return nil, domain.Wrap(domain.KindStoreError, "store_error", "resolve trading pair for snapshot", err)
	}

	bidsJSON, err := marshalBook(bids)
	if err != nil {
		return nil, domain.Wrap(domain.KindStoreError, "store_error", "marshal bids", err)
	}
	asksJSON, err := marshalBook(asks)
	if err != nil {
		return nil, domain.Wrap(domain.KindStoreError, "store_error", "marshal asks", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO orderbook_snapshots
			(pair_id, snapshot_time, bids, asks, bid_count, ask_count, spread, mid_price, total_bid_volume, total_ask_volume, ledger_sequence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pairID, snap.SnapshotTime.Format(time.RFC3339Nano), string(bidsJSON), string(asksJSON),
		len(bids), len(asks), snap.Spread.String(), snap.MidPrice.String(),
		snap.TotalBidVolume.String(), snap.TotalAskVolume.String(), ledgerSeq,
	)
	if err != nil {
		return nil, domain.Wrap(domain.KindStoreError, "store_error", "insert snapshot", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, domain.Wrap(domain.KindStoreError, "store_error", "read snapshot id", err)
	}
	snap.ID = id
	snap.PairID = pairID
	return &snap, nil
}

func marshalBook(entries []domain.BookEntry) ([]byte, error) {
	out := make([]bookEntryJSON, len(entries))
	for i, e := range entries {
		out[i] = bookEntryJSON{Price: e.Price.String(), Amount: e.Amount.String(), OfferID: e.OfferID}
	}
	return json.Marshal(out)
}

func unmarshalBook(raw string) ([]domain.BookEntry, error) {
	var in []bookEntryJSON
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, err
	}
	out := make([]domain.BookEntry, len(in))
	for i, e := range in {
		price, _ := decimal.NewFromString(e.Price)
		amount, _ := decimal.NewFromString(e.Amount)
		out[i] = domain.BookEntry{Price: price, Amount: amount, OfferID: e.OfferID}
	}
	return out, nil
}

// RecentSnapshots returns up to limit most-recent snapshots for (base,
// counter), newest first.
func (s *Store) RecentSnapshots(ctx context.Context, base, counter domain.Asset, limit int) ([]domain.OrderbookSnapshot, error) {
	baseID, err := s.UpsertAsset(ctx, base)
	if err != nil {
		return nil, err
	}
	counterID, err := s.UpsertAsset(ctx, counter)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT os.id, os.pair_id, os.snapshot_time, os.bids, os.asks, os.bid_count, os.ask_count,
			os.spread, os.mid_price, os.total_bid_volume, os.total_ask_volume, os.ledger_sequence
		FROM orderbook_snapshots os
		JOIN trading_pairs tp ON tp.id = os.pair_id
		WHERE tp.base_id = ? AND tp.counter_id = ?
		ORDER BY os.snapshot_time DESC
		LIMIT ?`, baseID, counterID, limit)
	if err != nil {
		return nil, domain.Wrap(domain.KindStoreError, "store_error", "query recent snapshots", err)
	}
	defer rows.Close()

	var snaps []domain.OrderbookSnapshot
	for rows.Next() {
		var snap domain.OrderbookSnapshot
		var snapTime, bidsRaw, asksRaw, spread, mid, totalBid, totalAsk string
		if err := rows.Scan(&snap.ID, &snap.PairID, &snapTime, &bidsRaw, &asksRaw, &snap.BidCount, &snap.AskCount,
			&spread, &mid, &totalBid, &totalAsk, &snap.LedgerSequence); err != nil {
			return nil, domain.Wrap(domain.KindStoreError, "store_error", "scan snapshot row", err)
		}
		snap.SnapshotTime, _ = time.Parse(time.RFC3339Nano, snapTime)
		snap.Spread, _ = decimal.NewFromString(spread)
		snap.MidPrice, _ = decimal.NewFromString(mid)
		snap.TotalBidVolume, _ = decimal.NewFromString(totalBid)
		snap.TotalAskVolume, _ = decimal.NewFromString(totalAsk)
		if snap.Bids, err = unmarshalBook(bidsRaw); err != nil {
			return nil, domain.Wrap(domain.KindStoreError, "store_error", "unmarshal bids", err)
		}
		if snap.Asks, err = unmarshalBook(asksRaw); err != nil {
			return nil, domain.Wrap(domain.KindStoreError, "store_error", "unmarshal asks", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// PruneSnapshotsOlderThan deletes snapshot rows older than the retention
// window (§4.3, §9 maintenance).
func (s *Store) PruneSnapshotsOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `DELETE FROM orderbook_snapshots WHERE snapshot_time < ?`, cutoff)
	if err != nil {
		return 0, domain.Wrap(domain.KindStoreError, "store_error", "prune snapshots", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, domain.Wrap(domain.KindStoreError, "store_error", "read rows affected", err)
	}
	return n, nil
}
