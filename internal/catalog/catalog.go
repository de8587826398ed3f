package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/openobserve/corelake/internal/errs"
	"github.com/openobserve/corelake/internal/model"
)

// PredicateHints narrows a list() call the way the teacher's JobFilter
// narrows QueryJobs: the query's label-equality clauses, forwarded so the
// list cache partitions its entries per predicate. The catalog's file rows
// carry no label columns, so these hints don't themselves prune rows here
// -- the per-file bloom sidecar, consulted by the query executor against
// this same LabelEquals map, is where label-equality pruning happens.
type PredicateHints struct {
	LabelEquals map[string]string
}

// fingerprint returns a stable string encoding of h's label-equality
// clauses, used only to distinguish list cache entries for the same
// (tenant, stream, time range) under different predicates.
func (h PredicateHints) fingerprint() string {
	if len(h.LabelEquals) == 0 {
		return ""
	}
	keys := make([]string, 0, len(h.LabelEquals))
	for k := range h.LabelEquals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(h.LabelEquals[k])
		b.WriteByte(',')
	}
	return b.String()
}

// Publish atomically inserts one FileKey into the catalog, or -- on a
// repeat call with the same (tenant, stream, objectKey) -- returns the
// already-assigned id without modifying anything (idempotent publish, per
// spec.md §4.3).
func (s *Store) Publish(ctx context.Context, tenant, stream string, partitionStartTS int64, objectKey, indexKey string, file model.FileKey) (int64, error) {
	if err := s.writeSem.acquire(ctx); err != nil {
		return 0, errs.Wrap(errs.Timeout, err, "catalog: publish cancelled waiting for write slot")
	}
	defer s.writeSem.release()

	var existingID int64
	err := s.db.GetContext(ctx, &existingID,
		`SELECT id FROM files WHERE tenant = ? AND stream = ? AND object_key = ?`,
		tenant, stream, objectKey)
	if err == nil {
		return existingID, nil
	}
	if err != sql.ErrNoRows {
		return 0, errs.Wrap(errs.Internal, err, "catalog: publish lookup")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO files
			(tenant, stream, partition_start_ts, object_key, index_key,
			 min_ts, max_ts, records, original_size, compressed_size, index_size, segment_ids)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tenant, stream, partitionStartTS, objectKey, indexKey,
		file.Meta.MinTS, file.Meta.MaxTS, file.Meta.Records,
		file.Meta.OriginalSize, file.Meta.CompressedSize, file.Meta.IndexSize, file.SegmentIDs)
	if err != nil {
		return 0, errs.Wrap(errs.Internal, err, "catalog: publish insert")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, errs.Wrap(errs.Internal, err, "catalog: publish read id")
	}

	s.listCache.Invalidate(listCacheKey(tenant, stream))
	s.notifyInvalidate(tenant, stream)
	return id, nil
}

// Tombstone marks a file deleted; physical removal is left to the
// retention sweep once grace_period has elapsed.
func (s *Store) Tombstone(ctx context.Context, id int64, reason string) error {
	if err := s.writeSem.acquire(ctx); err != nil {
		return errs.Wrap(errs.Timeout, err, "catalog: tombstone cancelled waiting for write slot")
	}
	defer s.writeSem.release()

	var tenant, stream string
	if err := s.db.QueryRowContext(ctx, `SELECT tenant, stream FROM files WHERE id = ?`, id).Scan(&tenant, &stream); err != nil {
		if err == sql.ErrNoRows {
			return errs.New(errs.BadRequest, "catalog: tombstone unknown file id %d", id)
		}
		return errs.Wrap(errs.Internal, err, "catalog: tombstone lookup")
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE files SET deleted = 1, deleted_at = ?, delete_reason = ? WHERE id = ?`,
		time.Now().Unix(), reason, id)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "catalog: tombstone update")
	}

	s.listCache.Invalidate(listCacheKey(tenant, stream))
	s.notifyInvalidate(tenant, stream)
	return nil
}

// List returns every non-deleted FileKey for (tenant, stream) whose
// [min_ts, max_ts] intersects [startTS, endTS], ascending min_ts with a
// tie-break on ascending id, per spec.md §4.3's ordering guarantee.
func (s *Store) List(ctx context.Context, tenant, stream string, startTS, endTS int64, hints PredicateHints) ([]model.FileKey, error) {
	cacheKey := fmt.Sprintf("%s|%d|%d|%s", listCacheKey(tenant, stream), startTS, endTS, hints.fingerprint())

	return s.listCache.Get(cacheKey, func() ([]model.FileKey, time.Duration, error) {
		q := sq.Select(
			"id", "object_key", "index_key", "min_ts", "max_ts", "records",
			"original_size", "compressed_size", "index_size", "segment_ids",
		).From("files").Where(sq.Eq{"tenant": tenant, "stream": stream, "deleted": 0}).
			Where(sq.LtOrEq{"min_ts": endTS}).
			Where(sq.GtOrEq{"max_ts": startTS}).
			OrderBy("min_ts ASC", "id ASC")

		rows, err := q.RunWith(s.stmtCache).QueryContext(ctx)
		if err != nil {
			return nil, 0, errs.Wrap(errs.Internal, err, "catalog: list query")
		}
		defer rows.Close()

		var out []model.FileKey
		for rows.Next() {
			var fk model.FileKey
			var indexKey sql.NullString
			var segmentIDs []byte
			if err := rows.Scan(&fk.ID, &fk.Key, &indexKey, &fk.Meta.MinTS, &fk.Meta.MaxTS,
				&fk.Meta.Records, &fk.Meta.OriginalSize, &fk.Meta.CompressedSize, &fk.Meta.IndexSize, &segmentIDs); err != nil {
				return nil, 0, errs.Wrap(errs.Internal, err, "catalog: list scan")
			}
			fk.Account = tenant
			fk.IndexKey = indexKey.String
			fk.SegmentIDs = segmentIDs
			out = append(out, fk)
		}
		if err := rows.Err(); err != nil {
			return nil, 0, errs.Wrap(errs.Internal, err, "catalog: list rows")
		}

		return out, 30 * time.Second, nil
	})
}

// Stats aggregates files/records/sizes for (tenant, stream, time range),
// the same fields as model.ScanStats' additive subset.
type Stats struct {
	Files          int64
	Records        int64
	OriginalSize   int64
	CompressedSize int64
}

func (s *Store) StatsFor(ctx context.Context, tenant, stream string, startTS, endTS int64) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(records),0), COALESCE(SUM(original_size),0), COALESCE(SUM(compressed_size),0)
		 FROM files
		 WHERE tenant = ? AND stream = ? AND deleted = 0 AND min_ts <= ? AND max_ts >= ?`,
		tenant, stream, endTS, startTS).Scan(&st.Files, &st.Records, &st.OriginalSize, &st.CompressedSize)
	if err != nil {
		return Stats{}, errs.Wrap(errs.Internal, err, "catalog: stats query")
	}
	return st, nil
}

// SweepExpiredTombstones physically deletes, via remove, every tombstoned
// file whose grace period has elapsed, and removes its catalog row.
// remove is expected to delete the underlying object-store bytes.
func (s *Store) SweepExpiredTombstones(ctx context.Context, gracePeriod time.Duration, remove func(ctx context.Context, objectKey, indexKey string) error) (int, error) {
	cutoff := time.Now().Add(-gracePeriod).Unix()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, object_key, COALESCE(index_key, ''), tenant, stream FROM files WHERE deleted = 1 AND deleted_at <= ?`, cutoff)
	if err != nil {
		return 0, errs.Wrap(errs.Internal, err, "catalog: sweep query")
	}

	type candidate struct {
		id                  int64
		objectKey, indexKey string
		tenant, stream      string
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.objectKey, &c.indexKey, &c.tenant, &c.stream); err != nil {
			rows.Close()
			return 0, errs.Wrap(errs.Internal, err, "catalog: sweep scan")
		}
		candidates = append(candidates, c)
	}
	rows.Close()

	removed := 0
	for _, c := range candidates {
		if err := remove(ctx, c.objectKey, c.indexKey); err != nil {
			return removed, errs.Wrap(errs.Unavailable, err, "catalog: sweep remove object for file %d", c.id)
		}
		if err := s.writeSem.acquire(ctx); err != nil {
			return removed, errs.Wrap(errs.Timeout, err, "catalog: sweep cancelled waiting for write slot")
		}
		_, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, c.id)
		s.writeSem.release()
		if err != nil {
			return removed, errs.Wrap(errs.Internal, err, "catalog: sweep delete row %d", c.id)
		}
		s.listCache.Invalidate(listCacheKey(c.tenant, c.stream))
		s.notifyInvalidate(c.tenant, c.stream)
		removed++
	}
	return removed, nil
}

func listCacheKey(tenant, stream string) string {
	return tenant + "/" + stream
}
