package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openobserve/corelake/internal/catalog"
	"github.com/openobserve/corelake/internal/ingest"
	"github.com/openobserve/corelake/internal/objstore"
	"github.com/openobserve/corelake/internal/query"
)

func newTestServer(t *testing.T) (*httptest.Server, *ingest.Coordinator, *catalog.Store, objstore.Target) {
	t.Helper()
	dir := t.TempDir()

	store, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	objStore, err := objstore.NewFSTarget(filepath.Join(dir, "objects"))
	require.NoError(t, err)

	ic := ingest.New(ingest.Config{
		WALDir:              filepath.Join(dir, "wal"),
		QuarantineDir:       filepath.Join(dir, "quarantine"),
		RollSizeBytes:       1,
		RollAge:             time.Hour,
		PartitionDurationUs: int64(time.Hour / time.Microsecond),
		PastHorizon:         24 * time.Hour,
		FutureHorizon:       time.Hour,
	}, objStore, store)

	exec := query.NewExecutor(objStore)
	qc := query.New(store, query.NewPool(exec), 1, 1)

	r := mux.NewRouter()
	(&IngestAPI{Coordinator: ic}).MountRoutes(r)
	(&QueryAPI{Coordinator: qc}).MountRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, ic, store, objStore
}

func TestIngestPushJSONAcceptsAndReturns204(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	now := time.Now().UnixMicro()
	body := strings.NewReader(`{"timestamp":` + itoa(now) + `,"stream":"app-logs","message":"hello"}` + "\n")

	resp, err := http.Post(srv.URL+"/api/v1/push", "application/x-ndjson", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestIngestPushRejectsMalformedBody(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/push", "application/x-ndjson", strings.NewReader("not json\n"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errBody ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errBody))
	assert.NotEmpty(t, errBody.Code)
}

func TestQueryRequiresTenantAndStream(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/query", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQueryReturnsPushedRecordAfterRoll(t *testing.T) {
	srv, ic, _, _ := newTestServer(t)

	now := time.Now().UnixMicro()
	body := strings.NewReader(`{"timestamp":` + itoa(now) + `,"stream":"app-logs","message":"hello"}` + "\n")
	resp, err := http.Post(srv.URL+"/api/v1/push", "application/x-ndjson", body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	ic.Drain()

	reqBody, _ := json.Marshal(map[string]interface{}{
		"tenant": "default",
		"stream": "app-logs",
		"time_range": map[string]int64{
			"start": now - 1_000_000,
			"end":   now + 1_000_000,
		},
	})
	resp2, err := http.Post(srv.URL+"/api/v1/query", "application/json", bytes.NewReader(reqBody))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	var qr struct {
		Records []map[string]interface{} `json:"Records"`
	}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&qr))
	require.Len(t, qr.Records, 1)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
