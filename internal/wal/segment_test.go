package wal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openobserve/corelake/internal/model"
)

func newTestBuilder(t *testing.T, rollSize int64, rollAge time.Duration) *PartitionBuilder {
	t.Helper()
	b, err := NewPartitionBuilder(t.TempDir(), "acme", "web", 42, rollSize, rollAge)
	require.NoError(t, err)
	return b
}

func TestAppendFsyncsAndReturnsFull(t *testing.T) {
	b := newTestBuilder(t, 16, time.Hour)

	_, full, err := b.Append(model.Record{TimestampUs: 1, Stream: "web", Line: "x"})
	require.NoError(t, err)
	require.True(t, full) // 1-byte line + frame overhead already exceeds a 16-byte roll size
}

func TestAppendRejectsNonOpenState(t *testing.T) {
	b := newTestBuilder(t, 1<<20, time.Hour)
	b.setState(Sealing)

	_, _, err := b.Append(model.Record{TimestampUs: 1, Stream: "web", Line: "x"})
	require.Error(t, err)
}

func TestRollEncodesAndUploadsThenPublishes(t *testing.T) {
	b := newTestBuilder(t, 1<<20, time.Hour)
	_, _, err := b.Append(model.Record{TimestampUs: 1, Stream: "web", Line: "hello"})
	require.NoError(t, err)

	var encodeCalled, uploadCalled bool
	encode := func(records []model.Record) ([]byte, model.FileMeta, error) {
		encodeCalled = true
		return []byte("columnar-bytes"), model.FileMeta{Records: int64(len(records))}, nil
	}
	upload := func(ctx context.Context, tenant, stream string, partitionID int64, data []byte) (string, error) {
		uploadCalled = true
		return "acme/web/42/file.parquet", nil
	}

	key, err := b.Roll(context.Background(), encode, upload, t.TempDir())
	require.NoError(t, err)
	require.True(t, encodeCalled)
	require.True(t, uploadCalled)
	require.Equal(t, "acme/web/42/file.parquet", key.Key)
	require.Equal(t, Published, b.State())
}

func TestRollOnEmptyBuilderSkipsUpload(t *testing.T) {
	b := newTestBuilder(t, 1<<20, time.Hour)

	called := false
	upload := func(ctx context.Context, tenant, stream string, partitionID int64, data []byte) (string, error) {
		called = true
		return "", nil
	}
	key, err := b.Roll(context.Background(), func(r []model.Record) ([]byte, model.FileMeta, error) {
		return nil, model.FileMeta{}, nil
	}, upload, t.TempDir())
	require.NoError(t, err)
	require.Nil(t, key)
	require.False(t, called)
	require.Equal(t, Published, b.State())
}

func TestRollQuarantinesAfterExhaustingRetries(t *testing.T) {
	b := newTestBuilder(t, 1<<20, time.Hour)
	_, _, err := b.Append(model.Record{TimestampUs: 1, Stream: "web", Line: "hello"})
	require.NoError(t, err)

	alwaysFail := func(ctx context.Context, tenant, stream string, partitionID int64, data []byte) (string, error) {
		return "", errors.New("object store unreachable")
	}
	encode := func(records []model.Record) ([]byte, model.FileMeta, error) {
		return []byte("x"), model.FileMeta{}, nil
	}

	quarantineDir := t.TempDir()
	_, err = b.Roll(context.Background(), encode, alwaysFail, quarantineDir)
	require.Error(t, err)
	require.Equal(t, Sealing, b.State())
}
