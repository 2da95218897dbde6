package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/stellar-aggregon/aggregon/internal/cache"
	"github.com/stellar-aggregon/aggregon/internal/scheduler/base"
	"github.com/stellar-aggregon/aggregon/internal/store"
)

// archivedOfferRecord mirrors an archived_offers row for the S3 batch
// payload.
type archivedOfferRecord struct {
	OfferID            int64  `msgpack:"offer_id"`
	Seller             string `msgpack:"seller"`
	SellingID          int64  `msgpack:"selling_id"`
	BuyingID           int64  `msgpack:"buying_id"`
	Amount             string `msgpack:"amount"`
	Price              string `msgpack:"price"`
	LastModifiedLedger int64  `msgpack:"last_modified_ledger"`
	ArchivedAt         string `msgpack:"archived_at"`
}

// snapshotRecord mirrors an orderbook_snapshots row for the S3 batch
// payload.
type snapshotRecord struct {
	PairID         int64  `msgpack:"pair_id"`
	SnapshotTime   string `msgpack:"snapshot_time"`
	Bids           string `msgpack:"bids"`
	Asks           string `msgpack:"asks"`
	LedgerSequence int64  `msgpack:"ledger_sequence"`
}

// ArchivePruneJob moves stale offers into archived_offers, uploads both
// archived offers and soon-to-be-pruned snapshots to S3 when configured,
// and only then deletes the uploaded rows — mirroring the corpus's own
// backup-before-prune maintenance discipline (§9, §12).
type ArchivePruneJob struct {
	base.JobBase
	log                   zerolog.Logger
	store                 *store.Store
	archiveRetentionDays  int
	snapshotRetentionDays int
	archiver              *S3Archiver // nil disables S3 upload; rows are still archived/pruned locally
}

// NewArchivePruneJob builds an ArchivePruneJob. archiver may be nil when
// S3_BACKUP_BUCKET is not configured.
func NewArchivePruneJob(st *store.Store, archiveRetentionDays, snapshotRetentionDays int, archiver *S3Archiver) *ArchivePruneJob {
	return &ArchivePruneJob{
		log:                   zerolog.Nop(),
		store:                 st,
		archiveRetentionDays:  archiveRetentionDays,
		snapshotRetentionDays: snapshotRetentionDays,
		archiver:              archiver,
	}
}

// SetLogger sets the logger for the job.
func (j *ArchivePruneJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name for the scheduler.
func (j *ArchivePruneJob) Name() string {
	return "archive_prune"
}

// Run executes one archive/prune cycle.
func (j *ArchivePruneJob) Run() error {
	ctx := context.Background()
	runStarted := time.Now().UTC()

	archived, err := j.store.ArchiveOffersOlderThan(ctx, j.archiveRetentionDays)
	if err != nil {
		return fmt.Errorf("archive stale offers: %w", err)
	}
	j.log.Info().Int64("archived", archived).Msg("archived stale offers")

	if j.archiver != nil && archived > 0 {
		if err := j.uploadAndClearArchivedOffers(ctx, runStarted); err != nil {
			j.log.Error().Err(err).Msg("s3 upload of archived offers failed, rows stay in archived_offers for retry")
		}
	}

	if j.archiver != nil {
		if err := j.uploadExpiringSnapshots(ctx); err != nil {
			j.log.Error().Err(err).Msg("s3 upload of expiring snapshots failed, snapshots stay in place for retry")
			return nil
		}
	}

	pruned, err := j.store.PruneSnapshotsOlderThan(ctx, j.snapshotRetentionDays)
	if err != nil {
		return fmt.Errorf("prune stale snapshots: %w", err)
	}
	j.log.Info().Int64("pruned", pruned).Msg("pruned stale snapshots")

	return nil
}

// uploadAndClearArchivedOffers uploads every archived_offers row stamped
// at or after runStarted, then deletes only the rows that uploaded
// successfully.
func (j *ArchivePruneJob) uploadAndClearArchivedOffers(ctx context.Context, runStarted time.Time) error {
	cutoff := runStarted.Format(time.RFC3339Nano)
	rows, err := j.store.DB().QueryContext(ctx, `
		SELECT offer_id, seller, selling_id, buying_id, amount, price, last_modified_ledger, archived_at
		FROM archived_offers WHERE archived_at >= ?`, cutoff)
	if err != nil {
		return fmt.Errorf("select archived offers: %w", err)
	}
	defer rows.Close()

	var records []archivedOfferRecord
	var ids []int64
	for rows.Next() {
		var r archivedOfferRecord
		if err := rows.Scan(&r.OfferID, &r.Seller, &r.SellingID, &r.BuyingID, &r.Amount, &r.Price, &r.LastModifiedLedger, &r.ArchivedAt); err != nil {
			return fmt.Errorf("scan archived offer: %w", err)
		}
		records = append(records, r)
		ids = append(ids, r.OfferID)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	payload, err := cache.Encode(records)
	if err != nil {
		return fmt.Errorf("encode archived offer batch: %w", err)
	}
	key := fmt.Sprintf("archived-offers/%s.msgpack", runStarted.Format("2006-01-02T15-04-05"))
	if err := j.archiver.UploadBatch(ctx, key, payload); err != nil {
		return err
	}

	for _, id := range ids {
		if _, err := j.store.DB().ExecContext(ctx, `DELETE FROM archived_offers WHERE offer_id = ?`, id); err != nil {
			j.log.Error().Err(err).Int64("offer_id", id).Msg("delete uploaded archived offer")
		}
	}
	return nil
}

// uploadExpiringSnapshots uploads every snapshot the upcoming prune call
// would delete, so the prune below never discards unbacked history.
func (j *ArchivePruneJob) uploadExpiringSnapshots(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -j.snapshotRetentionDays).Format(time.RFC3339Nano)
	rows, err := j.store.DB().QueryContext(ctx, `
		SELECT pair_id, snapshot_time, bids, asks, ledger_sequence
		FROM orderbook_snapshots WHERE snapshot_time < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("select expiring snapshots: %w", err)
	}
	defer rows.Close()

	var records []snapshotRecord
	for rows.Next() {
		var r snapshotRecord
		if err := rows.Scan(&r.PairID, &r.SnapshotTime, &r.Bids, &r.Asks, &r.LedgerSequence); err != nil {
			return fmt.Errorf("scan expiring snapshot: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	payload, err := cache.Encode(records)
	if err != nil {
		return fmt.Errorf("encode snapshot batch: %w", err)
	}
	key := fmt.Sprintf("snapshots/%s.msgpack", time.Now().UTC().Format("2006-01-02T15-04-05"))
	return j.archiver.UploadBatch(ctx, key, payload)
}
