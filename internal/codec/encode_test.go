package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openobserve/corelake/internal/model"
)

func sampleRecords() []model.Record {
	return []model.Record{
		{TimestampUs: 300, Stream: "web", Labels: map[string]string{"env": "prod", "app": "a"}, Line: "third"},
		{TimestampUs: 100, Stream: "web", Labels: map[string]string{"env": "prod", "app": "a"}, Line: "first"},
		{TimestampUs: 100, Stream: "web", Labels: map[string]string{"env": "prod", "app": "a"}, Line: "first-again"},
		{TimestampUs: 200, Stream: "web", Labels: map[string]string{"env": "prod", "app": "b"}, Line: "second"},
	}
}

func TestEncodeProducesSortedMeta(t *testing.T) {
	result, err := Encode(sampleRecords())
	require.NoError(t, err)
	require.Equal(t, int64(100), result.Meta.MinTS)
	require.Equal(t, int64(300), result.Meta.MaxTS)
	require.Equal(t, int64(4), result.Meta.Records)
	require.Positive(t, result.Meta.CompressedSize)
	require.NotEmpty(t, result.Data)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	result, err := Encode(sampleRecords())
	require.NoError(t, err)

	records, err := Decode(result.Data, 0, 1000)
	require.NoError(t, err)
	require.Len(t, records, 4)
	// decoded order follows the stable (_timestamp, _insertion_order) sort
	require.Equal(t, "first", records[0].Line)
	require.Equal(t, "first-again", records[1].Line)
	require.Equal(t, "second", records[2].Line)
	require.Equal(t, "third", records[3].Line)
}

func TestDecodeRespectsTimeRange(t *testing.T) {
	result, err := Encode(sampleRecords())
	require.NoError(t, err)

	records, err := Decode(result.Data, 150, 250)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "second", records[0].Line)
}

func TestBuildIndexAndMembership(t *testing.T) {
	data, err := BuildIndex(sampleRecords())
	require.NoError(t, err)

	present, err := IndexMayMatchLabels(data, map[string]string{"app": "a"})
	require.NoError(t, err)
	require.True(t, present)

	absent, err := IndexMayMatchLabels(data, map[string]string{"app": "definitely-not-present"})
	require.NoError(t, err)
	require.False(t, absent)

	unindexedKey, err := IndexMayMatchLabels(data, map[string]string{"region": "anything"})
	require.NoError(t, err)
	require.True(t, unindexedKey, "a label key the index never saw can't be proven absent")
}
