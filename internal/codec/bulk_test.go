package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBulkDecoderBasic(t *testing.T) {
	payload := []byte(
		`{"index":{"_index":"app-logs"}}` + "\n" +
			`{"@timestamp":1700000000,"message":"hello","level":"info"}` + "\n" +
			`{"create":{"_index":"app-logs"}}` + "\n" +
			`{"@timestamp":1700000001,"message":"world"}` + "\n",
	)

	records, err := BulkDecoder{}.Decode(payload)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "app-logs", records[0].Stream)
	require.Equal(t, "hello", records[0].Line)
	require.Equal(t, "info", records[0].Structured["level"])
}

func TestBulkDecoderRejectsUnsupportedAction(t *testing.T) {
	payload := []byte(`{"delete":{"_index":"app-logs"}}` + "\n" + `{}` + "\n")
	_, err := BulkDecoder{}.Decode(payload)
	require.Error(t, err)
}

func TestBulkDecoderRejectsMissingSourceDocument(t *testing.T) {
	payload := []byte(`{"index":{"_index":"app-logs"}}` + "\n")
	_, err := BulkDecoder{}.Decode(payload)
	require.Error(t, err)
}

func TestBulkDecoderRejectsMissingTimestamp(t *testing.T) {
	payload := []byte(`{"index":{"_index":"app-logs"}}` + "\n" + `{"message":"hi"}` + "\n")
	_, err := BulkDecoder{}.Decode(payload)
	require.Error(t, err)
}
