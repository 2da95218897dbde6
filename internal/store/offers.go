package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stellar-aggregon/aggregon/internal/database"
	"github.com/stellar-aggregon/aggregon/internal/domain"
)

// UpsertOffer resolves the offer's assets, then inserts or replaces the
// offer row, discarding the incoming record if its last_modified_ledger is
// not strictly greater than the stored value (idempotence under reorder,
// §4.3). It also upserts the owning trading pair.
func (s *Store) UpsertOffer(ctx context.Context, o domain.Offer) error {
	if err := o.Validate(); err != nil {
		return domain.Wrap(domain.KindInvariantViolation, "invariant_violation", "offer failed validation", err)
	}

	err := database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		sellingID, err := s.assetID(ctx, tx, o.Selling)
		if err != nil {
			return fmt.Errorf("intern selling asset: %w", err)
		}
		buyingID, err := s.assetID(ctx, tx, o.Buying)
		if err != nil {
			return fmt.Errorf("intern buying asset: %w", err)
		}

		var storedLedger sql.NullInt64
		err = tx.QueryRowContext(ctx, `SELECT last_modified_ledger FROM offers WHERE offer_id = ?`, o.ID).
			Scan(&storedLedger)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("read stored ledger: %w", err)
		}
		if err == nil && storedLedger.Valid && storedLedger.Int64 >= o.LastModifiedLedger {
			// Idempotence under reorder: discard the stale incoming record.
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO offers (offer_id, seller, selling_id, buying_id, amount, price, price_n, price_d, last_modified_ledger, cursor, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (offer_id) DO UPDATE SET
				seller = excluded.seller,
				selling_id = excluded.selling_id,
				buying_id = excluded.buying_id,
				amount = excluded.amount,
				price = excluded.price,
				price_n = excluded.price_n,
				price_d = excluded.price_d,
				last_modified_ledger = excluded.last_modified_ledger,
				cursor = excluded.cursor,
				updated_at = excluded.updated_at`,
			o.ID, o.Seller, sellingID, buyingID, o.Amount.String(), o.Price.String(),
			o.PriceN, o.PriceD, o.LastModifiedLedger, o.Cursor, time.Now().UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("upsert offer: %w", err)
		}

		return s.touchPairLocked(ctx, tx, sellingID, buyingID)
	})
	if err != nil {
		return domain.Wrap(domain.KindStoreError, "store_error", "upsert offer", err)
	}
	return nil
}

// touchPairLocked ensures the trading_pairs row for (base, counter) exists
// and refreshes its active-offer count. Must be called within the same
// transaction as the offer write it follows.
func (s *Store) touchPairLocked(ctx context.Context, tx *sql.Tx, baseID, counterID int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO trading_pairs (base_id, counter_id, active, total_offers)
		VALUES (?, ?, 1, 0)
		ON CONFLICT (base_id, counter_id) DO NOTHING`,
		baseID, counterID,
	)
	if err != nil {
		return fmt.Errorf("ensure trading pair: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE trading_pairs SET
			total_offers = (SELECT COUNT(*) FROM offers WHERE selling_id = ? AND buying_id = ?),
			active = 1
		WHERE base_id = ? AND counter_id = ?`,
		baseID, counterID, baseID, counterID,
	)
	if err != nil {
		return fmt.Errorf("refresh trading pair count: %w", err)
	}
	return nil
}

// DeleteOffer removes an offer row, used when Horizon no longer reports it
// and the indexer reconciles the pair (§3).
func (s *Store) DeleteOffer(ctx context.Context, offerID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM offers WHERE offer_id = ?`, offerID)
	if err != nil {
		return domain.Wrap(domain.KindStoreError, "store_error", "delete offer", err)
	}
	return nil
}

// GetOffer reads a single offer by id.
func (s *Store) GetOffer(ctx context.Context, offerID int64) (*domain.Offer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT offer_id, seller, selling_id, buying_id, amount, price, price_n, price_d, last_modified_ledger, cursor, updated_at
		FROM offers WHERE offer_id = ?`, offerID)
	o, sellingID, buyingID, err := scanOfferRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindStoreError, "store_error", "get offer", err)
	}
	if o.Selling, err = s.assetByID(ctx, sellingID); err != nil {
		return nil, domain.Wrap(domain.KindStoreError, "store_error", "resolve selling asset", err)
	}
	if o.Buying, err = s.assetByID(ctx, buyingID); err != nil {
		return nil, domain.Wrap(domain.KindStoreError, "store_error", "resolve buying asset", err)
	}
	return &o, nil
}

func scanOfferRow(row *sql.Row) (domain.Offer, int64, int64, error) {
	var o domain.Offer
	var sellingID, buyingID int64
	var amount, price string
	var updatedAt string
	err := row.Scan(&o.ID, &o.Seller, &sellingID, &buyingID, &amount, &price, &o.PriceN, &o.PriceD, &o.LastModifiedLedger, &o.Cursor, &updatedAt)
	if err != nil {
		return domain.Offer{}, 0, 0, err
	}
	o.Amount, _ = decimal.NewFromString(amount)
	o.Price, _ = decimal.NewFromString(price)
	o.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return o, sellingID, buyingID, nil
}

// OffersForPair returns every active offer selling base for counter,
// ordered by price ascending (the shape the routing engine's ladder
// simulation consumes, §4.5).
func (s *Store) OffersForPair(ctx context.Context, base, counter domain.Asset) ([]domain.Offer, error) {
	baseID, err := s.UpsertAsset(ctx, base)
	if err != nil {
		return nil, err
	}
	counterID, err := s.UpsertAsset(ctx, counter)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT offer_id, seller, selling_id, buying_id, amount, price, price_n, price_d, last_modified_ledger, cursor, updated_at
		FROM offers WHERE selling_id = ? AND buying_id = ?
		ORDER BY price ASC, offer_id ASC`, baseID, counterID)
	if err != nil {
		return nil, domain.Wrap(domain.KindStoreError, "store_error", "query offers for pair", err)
	}
	defer rows.Close()

	var offers []domain.Offer
	for rows.Next() {
		var o domain.Offer
		var sellingID, buyingID int64
		var amount, price, updatedAt string
		if err := rows.Scan(&o.ID, &o.Seller, &sellingID, &buyingID, &amount, &price, &o.PriceN, &o.PriceD, &o.LastModifiedLedger, &o.Cursor, &updatedAt); err != nil {
			return nil, domain.Wrap(domain.KindStoreError, "store_error", "scan offer row", err)
		}
		o.Amount, _ = decimal.NewFromString(amount)
		o.Price, _ = decimal.NewFromString(price)
		o.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		o.Selling = base
		o.Buying = counter
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

// AllActiveOffers returns every offer currently in the store, used by the
// routing engine to build the liquidity graph (§4.5) and by the indexer's
// cold-start prune.
func (s *Store) AllActiveOffers(ctx context.Context) ([]domain.Offer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.offer_id, o.seller, o.amount, o.price, o.price_n, o.price_d, o.last_modified_ledger, o.cursor, o.updated_at,
			sa.tag, sa.code, sa.issuer, ba.tag, ba.code, ba.issuer
		FROM offers o
		JOIN assets sa ON sa.id = o.selling_id
		JOIN assets ba ON ba.id = o.buying_id`)
	if err != nil {
		return nil, domain.Wrap(domain.KindStoreError, "store_error", "query all active offers", err)
	}
	defer rows.Close()

	var offers []domain.Offer
	for rows.Next() {
		var o domain.Offer
		var amount, price, updatedAt string
		var sTag, sCode, sIssuer, bTag, bCode, bIssuer string
		if err := rows.Scan(&o.ID, &o.Seller, &amount, &price, &o.PriceN, &o.PriceD, &o.LastModifiedLedger, &o.Cursor, &updatedAt,
			&sTag, &sCode, &sIssuer, &bTag, &bCode, &bIssuer); err != nil {
			return nil, domain.Wrap(domain.KindStoreError, "store_error", "scan active offer row", err)
		}
		o.Amount, _ = decimal.NewFromString(amount)
		o.Price, _ = decimal.NewFromString(price)
		o.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		o.Selling = domain.Asset{Tag: domain.AssetTag(sTag), Code: sCode, Issuer: sIssuer}
		o.Buying = domain.Asset{Tag: domain.AssetTag(bTag), Code: bCode, Issuer: bIssuer}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

// ActivePairs lists every trading pair with at least one active offer
// (§6 GET /pairs).
func (s *Store) ActivePairs(ctx context.Context) ([]domain.TradingPair, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tp.id, tp.active, tp.total_offers, tp.total_volume, tp.last_trade_at,
			ba.tag, ba.code, ba.issuer, ca.tag, ca.code, ca.issuer
		FROM trading_pairs tp
		JOIN assets ba ON ba.id = tp.base_id
		JOIN assets ca ON ca.id = tp.counter_id
		WHERE tp.active = 1 AND tp.total_offers > 0`)
	if err != nil {
		return nil, domain.Wrap(domain.KindStoreError, "store_error", "query active pairs", err)
	}
	defer rows.Close()

	var pairs []domain.TradingPair
	for rows.Next() {
		var p domain.TradingPair
		var active int
		var totalVolume string
		var lastTradeAt sql.NullString
		var bTag, bCode, bIssuer, cTag, cCode, cIssuer string
		if err := rows.Scan(&p.ID, &active, &p.TotalOffers, &totalVolume, &lastTradeAt,
			&bTag, &bCode, &bIssuer, &cTag, &cCode, &cIssuer); err != nil {
			return nil, domain.Wrap(domain.KindStoreError, "store_error", "scan trading pair row", err)
		}
		p.Active = active == 1
		p.TotalVolume, _ = decimal.NewFromString(totalVolume)
		p.Base = domain.Asset{Tag: domain.AssetTag(bTag), Code: bCode, Issuer: bIssuer}
		p.Counter = domain.Asset{Tag: domain.AssetTag(cTag), Code: cCode, Issuer: cIssuer}
		if lastTradeAt.Valid {
			t, _ := time.Parse(time.RFC3339Nano, lastTradeAt.String)
			p.LastTradeAt = &t
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// ActiveOrderbook builds a live bid/ask view directly from current offers
// for (base, counter) — served by GET /orderbook (§9 Open Question #3: live
// offers, not historical snapshots).
func (s *Store) ActiveOrderbook(ctx context.Context, base, counter domain.Asset) (bids, asks []domain.BookEntry, ledgerSeq int64, err error) {
	// Asks: base sold for counter (selling=base, buying=counter), ascending price.
	askOffers, err := s.OffersForPair(ctx, base, counter)
	if err != nil {
		return nil, nil, 0, err
	}
	for _, o := range askOffers {
		asks = append(asks, domain.BookEntry{Price: o.Price, Amount: o.Amount, OfferID: o.ID})
		if o.LastModifiedLedger > ledgerSeq {
			ledgerSeq = o.LastModifiedLedger
		}
	}

	// Bids: counter sold for base (selling=counter, buying=base), reported
	// at their stored price without inversion. Sorted descending.
	bidOffers, err := s.OffersForPair(ctx, counter, base)
	if err != nil {
		return nil, nil, 0, err
	}
	for i := len(bidOffers) - 1; i >= 0; i-- {
		o := bidOffers[i]
		bids = append(bids, domain.BookEntry{Price: o.Price, Amount: o.Amount, OfferID: o.ID})
		if o.LastModifiedLedger > ledgerSeq {
			ledgerSeq = o.LastModifiedLedger
		}
	}
	return bids, asks, ledgerSeq, nil
}

// ArchiveOffersOlderThan moves offers whose updated_at is older than the
// given retention window into archived_offers before deleting them from
// the live table (§4.2, §9).
func (s *Store) ArchiveOffersOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339Nano)
	var archived int64

	err := database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT offer_id, seller, selling_id, buying_id, amount, price, last_modified_ledger
			FROM offers WHERE updated_at < ?`, cutoff)
		if err != nil {
			return fmt.Errorf("select stale offers: %w", err)
		}
		type stale struct {
			id, sellingID, buyingID, lastModified int64
			seller, amount, price                 string
		}
		var items []stale
		for rows.Next() {
			var it stale
			if err := rows.Scan(&it.id, &it.seller, &it.sellingID, &it.buyingID, &it.amount, &it.price, &it.lastModified); err != nil {
				rows.Close()
				return fmt.Errorf("scan stale offer: %w", err)
			}
			items = append(items, it)
		}
		rows.Close()

		now := time.Now().UTC().Format(time.RFC3339Nano)
		for _, it := range items {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO archived_offers (offer_id, seller, selling_id, buying_id, amount, price, last_modified_ledger, archived_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (offer_id) DO NOTHING`,
				it.id, it.seller, it.sellingID, it.buyingID, it.amount, it.price, it.lastModified, now)
			if err != nil {
				return fmt.Errorf("archive offer %d: %w", it.id, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM offers WHERE offer_id = ?`, it.id); err != nil {
				return fmt.Errorf("delete archived offer %d: %w", it.id, err)
			}
			archived++
		}
		return nil
	})
	if err != nil {
		return 0, domain.Wrap(domain.KindStoreError, "store_error", "archive offers", err)
	}
	return archived, nil
}
