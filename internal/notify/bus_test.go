package notify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A live nats-server is required to exercise Connect/PublishInvalidate/
// SubscribeInvalidate end-to-end; that integration is left to a deployment
// smoke test. Here we pin down the one thing that can break silently: the
// wire payload shape the publish and subscribe sides agree on.
func TestInvalidateMsgRoundTrips(t *testing.T) {
	want := invalidateMsg{Tenant: "tenant-a", Stream: "app-logs"}

	data, err := json.Marshal(want)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tenant":"tenant-a","stream":"app-logs"}`, string(data))

	var got invalidateMsg
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, want, got)
}

func TestInvalidateMsgRejectsMalformedPayload(t *testing.T) {
	var got invalidateMsg
	err := json.Unmarshal([]byte(`not json`), &got)
	assert.Error(t, err)
}
