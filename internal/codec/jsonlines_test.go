package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONDecoderBasic(t *testing.T) {
	payload := []byte("{\"timestamp\":1700000000,\"stream\":\"web\",\"message\":\"hi\"}\n" +
		"{\"timestamp\":1700000001,\"stream\":\"web\",\"message\":\"bye\"}\n")

	records, err := JSONDecoder{TimestampField: "timestamp"}.Decode(payload)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "hi", records[0].Line)
	require.Equal(t, "web", records[0].Stream)
}

func TestJSONDecoderSkipsBlankLines(t *testing.T) {
	payload := []byte("\n{\"timestamp\":1700000000,\"message\":\"hi\"}\n\n")
	records, err := JSONDecoder{TimestampField: "timestamp"}.Decode(payload)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestJSONDecoderRejectsMissingTimestampField(t *testing.T) {
	payload := []byte(`{"message":"hi"}`)
	_, err := JSONDecoder{TimestampField: "timestamp"}.Decode(payload)
	require.Error(t, err)
}

func TestJSONDecoderRejectsInvalidJSON(t *testing.T) {
	payload := []byte(`not json`)
	_, err := JSONDecoder{TimestampField: "timestamp"}.Decode(payload)
	require.Error(t, err)
}

func TestScaleEpochInfersUnit(t *testing.T) {
	require.Equal(t, int64(1_700_000_000_000_000), scaleEpoch(1_700_000_000))
	require.Equal(t, int64(1_700_000_000_000_000), scaleEpoch(1_700_000_000_000))
	require.Equal(t, int64(1_700_000_000_000_000), scaleEpoch(1_700_000_000_000_000))
}

func TestJSONDecoderCarriesStructuredFields(t *testing.T) {
	payload := []byte(`{"timestamp":1700000000,"message":"hi","status":200,"ok":true}`)
	records, err := JSONDecoder{TimestampField: "timestamp"}.Decode(payload)
	require.NoError(t, err)
	require.Contains(t, records[0].Structured, "status")
	require.Contains(t, records[0].Structured, "ok")
}
