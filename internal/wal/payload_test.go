package wal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openobserve/corelake/internal/model"
)

func TestEncodeDecodeRecordRoundTrip(t *testing.T) {
	rec := model.Record{
		TimestampUs: 1_700_000_000_000_000,
		Stream:      "web",
		Labels:      map[string]string{"env": "prod", "service": "checkout"},
		Line:        "request completed",
		Structured:  map[string]string{"status": "200"},
	}

	payload := encodeRecord(rec)
	decoded, err := decodeRecord(payload)
	require.NoError(t, err)

	require.Equal(t, rec.TimestampUs, decoded.TimestampUs)
	require.Equal(t, rec.Stream, decoded.Stream)
	require.Equal(t, rec.Line, decoded.Line)
	require.Equal(t, rec.Labels, decoded.Labels)
	require.Equal(t, rec.Structured, decoded.Structured)
}

func TestEncodeDecodeRecordEmptyMaps(t *testing.T) {
	rec := model.Record{TimestampUs: 1, Stream: "s", Line: "x"}
	payload := encodeRecord(rec)
	decoded, err := decodeRecord(payload)
	require.NoError(t, err)
	require.Empty(t, decoded.Labels)
	require.Empty(t, decoded.Structured)
}

func TestDecodeRecordRejectsTruncatedPayload(t *testing.T) {
	rec := model.Record{TimestampUs: 1, Stream: "s", Line: "hello"}
	payload := encodeRecord(rec)
	_, err := decodeRecord(payload[:len(payload)-2])
	require.Error(t, err)
}
