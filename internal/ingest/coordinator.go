// Package ingest implements C4: the coordinator that routes decoded
// records to per-partition write-ahead segments, enforces admission
// control, drives segment rolls on size/age thresholds, and publishes
// rolled segments into the catalog -- grounded on the teacher's
// pkg/metricstore.go ingest entrypoints and its per-level locking
// discipline, generalized from an in-memory ring buffer to a
// journal-backed partition builder.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openobserve/corelake/internal/catalog"
	"github.com/openobserve/corelake/internal/codec"
	"github.com/openobserve/corelake/internal/errs"
	"github.com/openobserve/corelake/internal/logx"
	"github.com/openobserve/corelake/internal/model"
	"github.com/openobserve/corelake/internal/obsmetrics"
	"github.com/openobserve/corelake/internal/objstore"
	"github.com/openobserve/corelake/internal/wal"
)

// partitionSlot owns the single live builder for one (tenant, stream,
// partition) key. Its mutex is the "one builder per partition" discipline:
// Append and the swap-on-roll both hold it for the duration of the call.
type partitionSlot struct {
	mu      sync.Mutex
	builder *wal.PartitionBuilder
}

// Coordinator is C4: it owns every partition's WAL builder, admits and
// routes incoming batches, and drives rolls into the catalog.
type Coordinator struct {
	mu    sync.Mutex
	slots map[string]*partitionSlot

	walDir        string
	quarantineDir string

	rollSizeBytes       int64
	rollAge             time.Duration
	partitionDurationUs int64
	pastHorizon         time.Duration
	futureHorizon       time.Duration

	admission *Admission
	objStore  objstore.Target
	catalog   *catalog.Store

	rollWG sync.WaitGroup
}

// Config bundles the tunables Coordinator needs, mirroring the relevant
// subset of internal/config.Config so callers don't have to import config
// into this package directly.
type Config struct {
	WALDir              string
	QuarantineDir       string
	RollSizeBytes       int64
	RollAge             time.Duration
	PartitionDurationUs int64
	PastHorizon         time.Duration
	FutureHorizon       time.Duration
	MaxInFlightBytes    int64
	MaxRecordsPerSecond int64
}

// New builds a Coordinator bound to store (the catalog) and objStore (the
// object-store backend rolled segments upload to).
func New(cfg Config, objStore objstore.Target, store *catalog.Store) *Coordinator {
	return &Coordinator{
		slots:               map[string]*partitionSlot{},
		walDir:              cfg.WALDir,
		quarantineDir:       cfg.QuarantineDir,
		rollSizeBytes:       cfg.RollSizeBytes,
		rollAge:             cfg.RollAge,
		partitionDurationUs: cfg.PartitionDurationUs,
		pastHorizon:         cfg.PastHorizon,
		futureHorizon:       cfg.FutureHorizon,
		admission:           NewAdmission(cfg.MaxInFlightBytes, cfg.MaxRecordsPerSecond),
		objStore:            objStore,
		catalog:             store,
	}
}

// Push admits and journals a batch of records for tenant. Per spec.md
// §4.4's batch acknowledgement rule, the whole batch is rejected on the
// first error (admission, validation, or journal I/O); records already
// appended to their partitions before the failing one remain durably
// journaled and are not rolled back, since recovery handles them safely.
func (c *Coordinator) Push(ctx context.Context, tenant string, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}

	numBytes := int64(0)
	for _, r := range records {
		numBytes += int64(len(r.Line))
	}

	if err := c.admission.Admit(tenant, len(records), numBytes); err != nil {
		obsmetrics.IngestRejectedTotal.WithLabelValues("admission").Add(float64(len(records)))
		return err
	}
	defer c.admission.Release(tenant, numBytes)

	now := time.Now()
	for _, rec := range records {
		if err := c.validateHorizon(rec, now); err != nil {
			obsmetrics.IngestRejectedTotal.WithLabelValues("horizon").Inc()
			return err
		}
		if err := c.appendOne(ctx, tenant, rec); err != nil {
			return err
		}
		obsmetrics.IngestRecordsTotal.WithLabelValues(tenant, rec.Stream).Inc()
	}
	return nil
}

func (c *Coordinator) validateHorizon(rec model.Record, now time.Time) error {
	recTime := time.UnixMicro(rec.TimestampUs)
	if recTime.Before(now.Add(-c.pastHorizon)) || recTime.After(now.Add(c.futureHorizon)) {
		return errs.New(errs.OutOfRange, "ingest: record timestamp %d outside [%s, %s] horizon",
			rec.TimestampUs, now.Add(-c.pastHorizon), now.Add(c.futureHorizon))
	}
	return nil
}

// appendOne routes rec to its partition's builder, appending it and
// triggering an asynchronous roll if the builder just crossed a
// size/age threshold.
func (c *Coordinator) appendOne(ctx context.Context, tenant string, rec model.Record) error {
	partitionID := model.PartitionID(rec.TimestampUs, c.partitionDurationUs)
	key := partitionKey(tenant, rec.Stream, partitionID)

	slot := c.slot(key)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.builder == nil {
		b, err := wal.NewPartitionBuilder(c.walDir, tenant, rec.Stream, partitionID, c.rollSizeBytes, c.rollAge)
		if err != nil {
			return err
		}
		slot.builder = b
	}

	_, full, err := slot.builder.Append(rec)
	if err != nil {
		return err
	}

	if full {
		c.triggerRoll(tenant, rec.Stream, partitionID, slot)
	}
	return nil
}

// triggerRoll swaps in a fresh builder for the partition (so subsequent
// appends are never blocked by an in-progress roll) and rolls the sealed
// one in the background. Must be called with slot.mu held.
func (c *Coordinator) triggerRoll(tenant, stream string, partitionID int64, slot *partitionSlot) {
	sealed := slot.builder
	newBuilder, err := wal.NewPartitionBuilder(c.walDir, tenant, stream, partitionID, c.rollSizeBytes, c.rollAge)
	if err != nil {
		logx.Errorf("ingest: could not open replacement builder for %s/%s/%d: %v", tenant, stream, partitionID, err)
		return
	}
	slot.builder = newBuilder
	obsmetrics.RollsTotal.WithLabelValues(tenant, stream).Inc()

	c.rollWG.Add(1)
	go func() {
		defer c.rollWG.Done()
		c.rollAndPublish(context.Background(), tenant, stream, partitionID, sealed)
	}()
}

// CheckRollAge scans every open builder and rolls any that have aged past
// roll_age, the background half of the spec's roll-scheduling rule (size
// triggers roll synchronously from Append; age is swept periodically by
// the caller, normally once a second via the scheduler in roller.go).
func (c *Coordinator) CheckRollAge() {
	c.mu.Lock()
	slots := make(map[string]*partitionSlot, len(c.slots))
	for k, v := range c.slots {
		slots[k] = v
	}
	c.mu.Unlock()

	for key, slot := range slots {
		slot.mu.Lock()
		b := slot.builder
		if b != nil && b.Full() {
			tenant, stream, partitionID := splitPartitionKey(key)
			c.triggerRoll(tenant, stream, partitionID, slot)
		}
		slot.mu.Unlock()
	}
}

// Drain waits for every in-flight roll to finish, used during graceful
// shutdown so acknowledged-but-unpublished segments still get uploaded.
func (c *Coordinator) Drain() {
	c.rollWG.Wait()
}

func (c *Coordinator) slot(key string) *partitionSlot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[key]
	if !ok {
		s = &partitionSlot{}
		c.slots[key] = s
	}
	return s
}

func partitionKey(tenant, stream string, partitionID int64) string {
	return fmt.Sprintf("%s/%s/%d", tenant, stream, partitionID)
}

func splitPartitionKey(key string) (tenant, stream string, partitionID int64) {
	return parsePartitionKey(key)
}

func parsePartitionKey(key string) (string, string, int64) {
	// tenant and stream never contain '/'; partitionID is the final segment.
	lastSlash := -1
	secondLastSlash := -1
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			if lastSlash == -1 {
				lastSlash = i
			} else {
				secondLastSlash = i
				break
			}
		}
	}
	if lastSlash == -1 || secondLastSlash == -1 {
		return "", "", 0
	}
	tenant := key[:secondLastSlash]
	stream := key[secondLastSlash+1 : lastSlash]
	var id int64
	for _, ch := range key[lastSlash+1:] {
		if ch < '0' || ch > '9' {
			return tenant, stream, 0
		}
		id = id*10 + int64(ch-'0')
	}
	return tenant, stream, id
}

// rollAndPublish encodes, uploads, and catalogs one sealed builder. Errors
// are logged, not returned -- the builder's own Roll already quarantined
// the journal on exhausted retries, which is the terminal failure state
// for a segment per the WAL state machine.
func (c *Coordinator) rollAndPublish(ctx context.Context, tenant, stream string, partitionID int64, builder *wal.PartitionBuilder) {
	var indexBytes []byte

	encoder := func(records []model.Record) ([]byte, model.FileMeta, error) {
		res, err := codec.Encode(records)
		if err != nil {
			return nil, model.FileMeta{}, err
		}
		idx, err := codec.BuildIndex(records)
		if err != nil {
			return nil, model.FileMeta{}, err
		}
		indexBytes = idx
		res.Meta.IndexSize = int64(len(idx))
		return res.Data, res.Meta, nil
	}

	uploader := func(ctx context.Context, tenant, stream string, partitionID int64, data []byte) (string, error) {
		key := objectKey(tenant, stream, partitionID, "parquet")
		if err := c.objStore.Put(ctx, key, data); err != nil {
			return "", err
		}
		return key, nil
	}

	fileKey, err := builder.Roll(ctx, encoder, uploader, c.quarantineDir)
	if err != nil {
		logx.Errorf("ingest: roll %s/%s/%d failed: %v", tenant, stream, partitionID, err)
		return
	}
	if fileKey == nil {
		return // empty builder, nothing to publish
	}

	indexKey := ""
	if len(indexBytes) > 0 {
		indexKey = objectKey(tenant, stream, partitionID, "idx")
		if err := c.objStore.Put(ctx, indexKey, indexBytes); err != nil {
			logx.Warnf("ingest: upload index for %s/%s/%d failed: %v", tenant, stream, partitionID, err)
			indexKey = ""
		}
	}

	if _, err := c.catalog.Publish(ctx, tenant, stream, partitionID*c.partitionDurationUs, fileKey.Key, indexKey, *fileKey); err != nil {
		logx.Errorf("ingest: publish %s/%s/%d failed: %v", tenant, stream, partitionID, err)
	}
}

func objectKey(tenant, stream string, partitionID int64, ext string) string {
	return fmt.Sprintf("%s/%s/%d/%s.%s", tenant, stream, partitionID, uuid.NewString(), ext)
}
