package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openobserve/corelake/internal/catalog"
	"github.com/openobserve/corelake/internal/errs"
	"github.com/openobserve/corelake/internal/model"
	"github.com/openobserve/corelake/internal/objstore"
)

func newTestCoordinator(t *testing.T, rollSizeBytes int64, rollAge time.Duration) (*Coordinator, *catalog.Store) {
	t.Helper()
	dir := t.TempDir()

	store, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	objStore, err := objstore.NewFSTarget(filepath.Join(dir, "objects"))
	require.NoError(t, err)

	c := New(Config{
		WALDir:              filepath.Join(dir, "wal"),
		QuarantineDir:       filepath.Join(dir, "quarantine"),
		RollSizeBytes:       rollSizeBytes,
		RollAge:             rollAge,
		PartitionDurationUs: int64(time.Hour / time.Microsecond),
		PastHorizon:         24 * time.Hour,
		FutureHorizon:       time.Hour,
	}, objStore, store)

	return c, store
}

func rec(ts int64, stream, line string) model.Record {
	return model.Record{TimestampUs: ts, Stream: stream, Line: line}
}

func TestPushJournalsRecordsWithoutRolling(t *testing.T) {
	c, _ := newTestCoordinator(t, 64*1024*1024, time.Hour)

	now := time.Now().UnixMicro()
	err := c.Push(context.Background(), "tenant-a", []model.Record{
		rec(now, "app-logs", "hello"),
		rec(now+1, "app-logs", "world"),
	})
	require.NoError(t, err)
}

func TestPushRejectsRecordOutsidePastHorizon(t *testing.T) {
	c, _ := newTestCoordinator(t, 64*1024*1024, time.Hour)

	tooOld := time.Now().Add(-48 * time.Hour).UnixMicro()
	err := c.Push(context.Background(), "tenant-a", []model.Record{rec(tooOld, "app-logs", "stale")})
	require.Error(t, err)
	assert.Equal(t, errs.OutOfRange, errs.KindOf(err))
}

func TestPushRejectsRecordBeyondFutureHorizon(t *testing.T) {
	c, _ := newTestCoordinator(t, 64*1024*1024, time.Hour)

	tooFar := time.Now().Add(48 * time.Hour).UnixMicro()
	err := c.Push(context.Background(), "tenant-a", []model.Record{rec(tooFar, "app-logs", "future")})
	require.Error(t, err)
	assert.Equal(t, errs.OutOfRange, errs.KindOf(err))
}

func TestPushAbortsWholeBatchOnFirstError(t *testing.T) {
	c, _ := newTestCoordinator(t, 64*1024*1024, time.Hour)

	now := time.Now().UnixMicro()
	tooOld := time.Now().Add(-48 * time.Hour).UnixMicro()

	err := c.Push(context.Background(), "tenant-a", []model.Record{
		rec(now, "app-logs", "ok-1"),
		rec(tooOld, "app-logs", "bad"),
		rec(now, "app-logs", "never-reached"),
	})
	require.Error(t, err)
	assert.Equal(t, errs.OutOfRange, errs.KindOf(err))
}

func TestFullBuilderTriggersRollAndPublish(t *testing.T) {
	c, store := newTestCoordinator(t, 1, time.Hour) // roll after first record

	now := time.Now().UnixMicro()
	err := c.Push(context.Background(), "tenant-a", []model.Record{rec(now, "app-logs", "trigger a roll")})
	require.NoError(t, err)

	// the roll runs in a background goroutine; wait for it to finish.
	c.Drain()

	files, err := store.List(context.Background(), "tenant-a", "app-logs", 0, now+1, catalog.PredicateHints{})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, int64(1), files[0].Meta.Records)
}

func TestCheckRollAgeRollsAgedBuilder(t *testing.T) {
	c, store := newTestCoordinator(t, 64*1024*1024, time.Millisecond)

	now := time.Now().UnixMicro()
	require.NoError(t, c.Push(context.Background(), "tenant-a", []model.Record{rec(now, "app-logs", "aging")}))

	time.Sleep(5 * time.Millisecond)
	c.CheckRollAge()
	c.Drain()

	files, err := store.List(context.Background(), "tenant-a", "app-logs", 0, now+1, catalog.PredicateHints{})
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestAdmissionThrottlesOverInFlightBudget(t *testing.T) {
	a := NewAdmission(10, 0)
	require.NoError(t, a.Admit("tenant-a", 1, 10))
	err := a.Admit("tenant-a", 1, 1)
	require.Error(t, err)
	assert.Equal(t, errs.Throttled, errs.KindOf(err))
}

func TestAdmissionRetryAfterBackoffDoublesUpToCap(t *testing.T) {
	assert.Equal(t, time.Second, backoffRetryAfter(1))
	assert.Equal(t, 2*time.Second, backoffRetryAfter(2))
	assert.Equal(t, 4*time.Second, backoffRetryAfter(3))
	assert.Equal(t, 30*time.Second, backoffRetryAfter(10))
}

func TestAdmissionReleaseRestoresBudget(t *testing.T) {
	a := NewAdmission(10, 0)
	require.NoError(t, a.Admit("tenant-a", 1, 10))
	a.Release("tenant-a", 10)
	require.NoError(t, a.Admit("tenant-a", 1, 10))
}

func TestPartitionKeyRoundTrip(t *testing.T) {
	key := partitionKey("tenant-a", "app-logs", 42)
	tenant, stream, id := parsePartitionKey(key)
	assert.Equal(t, "tenant-a", tenant)
	assert.Equal(t, "app-logs", stream)
	assert.Equal(t, int64(42), id)
}
