package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLokiDecoderBasic(t *testing.T) {
	payload := []byte(`{
		"streams": [{
			"labels": "{service=\"checkout\",env=\"prod\"}",
			"entries": [
				{"timestamp": "2026-01-01T00:00:00Z", "line": "hello"},
				{"timestamp": "2026-01-01T00:00:01Z", "line": "world"}
			]
		}]
	}`)

	records, err := LokiDecoder{}.Decode(payload)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "hello", records[0].Line)
	require.Equal(t, "checkout", records[0].Labels["service"])
	require.Less(t, records[0].TimestampUs, records[1].TimestampUs)
}

func TestLokiDecoderRejectsMalformedLabels(t *testing.T) {
	payload := []byte(`{"streams":[{"labels":"not-labels","entries":[{"timestamp":"2026-01-01T00:00:00Z","line":"x"}]}]}`)
	_, err := LokiDecoder{}.Decode(payload)
	require.Error(t, err)
}

func TestLokiDecoderRejectsZeroTimestamp(t *testing.T) {
	payload := []byte(`{"streams":[{"labels":"{}","entries":[{"timestamp":"","line":"x"}]}]}`)
	_, err := LokiDecoder{}.Decode(payload)
	require.Error(t, err)
}

func TestLokiDecoderDerivesStreamNameFromLabels(t *testing.T) {
	payload := []byte(`{"streams":[{"labels":"{service=\"checkout\"}","entries":[{"timestamp":"2026-01-01T00:00:00Z","line":"x"}]}]}`)
	records, err := LokiDecoder{}.Decode(payload)
	require.NoError(t, err)
	require.NotEmpty(t, records[0].Stream)
}
