package wal

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openobserve/corelake/internal/errs"
	"github.com/openobserve/corelake/internal/logx"
	"github.com/openobserve/corelake/internal/model"
)

// State is a PartitionBuilder's position in the one-way Open -> Sealing ->
// Uploading -> Published -> Deleted state machine. A failed Uploading
// returns to Sealing for retry; it never regresses all the way to Open.
type State int

const (
	Open State = iota
	Sealing
	Uploading
	Published
	Deleted
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Sealing:
		return "sealing"
	case Uploading:
		return "uploading"
	case Published:
		return "published"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// maxUploadAttempts bounds the Sealing<->Uploading retry loop before a
// segment is quarantined, per the spec's state machine note.
const maxUploadAttempts = 8

// AckToken confirms a record's bytes are fsynced to the journal.
type AckToken struct {
	PartitionKey string
	SegID        string
	Offset       int64
}

// Encoder turns a sealed batch of records into a columnar file plus the
// FileMeta the catalog requires. Implemented by internal/codec.Encode;
// kept as an interface here so wal has no import-time dependency on codec.
type Encoder func(records []model.Record) (data []byte, meta model.FileMeta, err error)

// Uploader publishes an encoded file to object storage and returns the
// object-store key it was written to. Implemented by internal/objstore.
type Uploader func(ctx context.Context, tenant, stream string, partitionID int64, data []byte) (key string, err error)

// PartitionBuilder is the in-memory append buffer plus on-disk journal for
// one (tenant, stream, partition) unit. Concurrent appends to the same
// builder serialize through its mutex -- the spec's "only one builder per
// partition" invariant.
type PartitionBuilder struct {
	mu sync.Mutex

	Tenant      string
	Stream      string
	PartitionID int64
	SegID       string

	journalPath string
	journal     *os.File

	records      []model.Record
	uncompressed int64
	openedAt     time.Time

	state        State
	uploadAttempt int

	rollSizeBytes int64
	rollAge       time.Duration
}

// NewPartitionBuilder creates a builder and opens its journal file for
// append, creating the containing directory tree if needed.
func NewPartitionBuilder(walDir, tenant, stream string, partitionID int64, rollSizeBytes int64, rollAge time.Duration) (*PartitionBuilder, error) {
	segID := uuid.NewString()
	dir := filepath.Join(walDir, tenant, stream, fmt.Sprintf("%d", partitionID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "wal: mkdir %s", dir)
	}

	path := filepath.Join(dir, segID+".wal")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "wal: open journal %s", path)
	}

	return &PartitionBuilder{
		Tenant:        tenant,
		Stream:        stream,
		PartitionID:   partitionID,
		SegID:         segID,
		journalPath:   path,
		journal:       f,
		openedAt:      time.Now(),
		state:         Open,
		rollSizeBytes: rollSizeBytes,
		rollAge:       rollAge,
	}, nil
}

// State returns the builder's current state machine position.
func (b *PartitionBuilder) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Full reports whether the builder has crossed its roll thresholds.
func (b *PartitionBuilder) Full() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.uncompressed >= b.rollSizeBytes || time.Since(b.openedAt) >= b.rollAge
}

// Append journals and buffers one record, fsyncing before returning
// success so an acknowledged append is durable across a crash. Returns
// full=true once the roll threshold is crossed; the caller must then call
// Roll before further appends are accepted.
func (b *PartitionBuilder) Append(rec model.Record) (token AckToken, full bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Open {
		return AckToken{}, false, errs.New(errs.Internal, "wal: append to builder in state %s", b.state)
	}

	payload := encodeRecord(rec)
	offset, err := b.journal.Seek(0, os.SEEK_CUR)
	if err != nil {
		return AckToken{}, false, errs.Wrap(errs.Internal, err, "wal: seek journal")
	}
	if err := writeFrame(b.journal, payload); err != nil {
		return AckToken{}, false, errs.Wrap(errs.Internal, err, "wal: append frame")
	}
	if err := b.journal.Sync(); err != nil {
		return AckToken{}, false, errs.Wrap(errs.Internal, err, "wal: fsync journal")
	}

	b.records = append(b.records, rec)
	b.uncompressed += int64(len(rec.Line)) + int64(len(payload))

	return AckToken{PartitionKey: b.partitionKey(), SegID: b.SegID, Offset: offset},
		b.uncompressed >= b.rollSizeBytes || time.Since(b.openedAt) >= b.rollAge,
		nil
}

func (b *PartitionBuilder) partitionKey() string {
	return fmt.Sprintf("%s/%s/%d", b.Tenant, b.Stream, b.PartitionID)
}

// Roll seals the builder, encodes and uploads its records, and returns the
// resulting FileKey. Upload failures retry with bounded exponential
// backoff (capped doubling starting at 200ms) up to maxUploadAttempts;
// after that the segment's journal is moved under quarantineDir and an
// error is returned.
func (b *PartitionBuilder) Roll(ctx context.Context, encode Encoder, upload Uploader, quarantineDir string) (*model.FileKey, error) {
	b.mu.Lock()
	if b.state != Open {
		b.mu.Unlock()
		return nil, errs.New(errs.Internal, "wal: roll called on builder in state %s", b.state)
	}
	b.state = Sealing
	records := make([]model.Record, len(b.records))
	copy(records, b.records)
	b.mu.Unlock()

	if err := b.journal.Sync(); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "wal: fsync journal before seal")
	}

	if len(records) == 0 {
		b.setState(Published)
		return nil, nil
	}

	data, meta, err := encode(records)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "wal: encode segment")
	}

	var key string
	for attempt := 1; ; attempt++ {
		b.setState(Uploading)
		key, err = upload(ctx, b.Tenant, b.Stream, b.PartitionID, data)
		if err == nil {
			break
		}

		logx.Warnf("wal: segment %s upload attempt %d/%d failed: %v", b.SegID, attempt, maxUploadAttempts, err)
		if attempt >= maxUploadAttempts {
			b.setState(Sealing)
			if qerr := b.quarantine(quarantineDir); qerr != nil {
				logx.Errorf("wal: quarantine segment %s: %v", b.SegID, qerr)
			}
			return nil, errs.Wrap(errs.Unavailable, err, "wal: segment %s exhausted %d upload attempts, quarantined", b.SegID, maxUploadAttempts)
		}

		b.setState(Sealing)
		select {
		case <-ctx.Done():
			return nil, errs.Wrap(errs.Timeout, ctx.Err(), "wal: roll cancelled during backoff")
		case <-time.After(backoff(attempt)):
		}
	}

	if err := b.closeAndRemoveJournal(); err != nil {
		logx.Warnf("wal: segment %s published but journal cleanup failed: %v", b.SegID, err)
	}
	b.setState(Published)

	return &model.FileKey{
		Account: b.Tenant,
		Key:     key,
		Meta:    meta,
	}, nil
}

func (b *PartitionBuilder) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

func (b *PartitionBuilder) quarantine(quarantineDir string) error {
	if err := os.MkdirAll(quarantineDir, 0o755); err != nil {
		return err
	}
	dest := filepath.Join(quarantineDir, filepath.Base(b.journalPath))
	_ = b.journal.Close()
	return os.Rename(b.journalPath, dest)
}

func (b *PartitionBuilder) closeAndRemoveJournal() error {
	if err := b.journal.Close(); err != nil {
		return err
	}
	return os.Remove(b.journalPath)
}

// backoff returns a bounded exponential delay for upload retry attempt n
// (1-indexed), jittered to avoid synchronized retries across partitions.
func backoff(attempt int) time.Duration {
	base := 200 * time.Millisecond
	d := base << uint(attempt-1)
	const cap = 10 * time.Second
	if d > cap {
		d = cap
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 2))
	return d/2 + jitter
}
