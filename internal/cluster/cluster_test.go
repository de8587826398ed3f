package cluster

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/openobserve/corelake/internal/model"
)

func TestPredicateMatchesLabelEquality(t *testing.T) {
	p := Predicate{LabelEquals: map[string]string{"app": "a"}}
	assert.True(t, p.Matches(model.Record{Labels: map[string]string{"app": "a"}}))
	assert.False(t, p.Matches(model.Record{Labels: map[string]string{"app": "b"}}))
	assert.False(t, p.Matches(model.Record{Labels: map[string]string{}}))
}

func TestPredicateMatchesLineContains(t *testing.T) {
	p := Predicate{LineContains: []string{"error"}}
	assert.True(t, p.Matches(model.Record{Line: "an error occurred"}))
	assert.False(t, p.Matches(model.Record{Line: "all fine"}))
}

func TestPredicateMatchesBothClauses(t *testing.T) {
	p := Predicate{LabelEquals: map[string]string{"app": "a"}, LineContains: []string{"boom"}}
	rec := model.Record{Labels: map[string]string{"app": "a"}, Line: "boom goes the dynamite"}
	assert.True(t, p.Matches(rec))
}

func TestJSONCodecRoundTrip(t *testing.T) {
	c := jsonCodec{}
	job := Job{TraceID: "t1", QueryID: "q1", Stage: "scan", Partition: Partition{Tenant: "tenant-a", Stream: "app-logs"}}

	data, err := c.Marshal(job)
	require.NoError(t, err)

	var out Job
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, job, out)
	assert.Equal(t, "json", c.Name())
}

type fakeScanServer struct {
	dispatchCalls int
	cancelCalls   int
}

func (f *fakeScanServer) Dispatch(ctx context.Context, job *Job) (*PartialResult, error) {
	f.dispatchCalls++
	return &PartialResult{
		TraceID: job.TraceID,
		Records: []model.Record{{Stream: job.Partition.Stream, Line: "ok"}},
		Stats:   model.ScanStats{Files: 1, Records: 1},
	}, nil
}

func (f *fakeScanServer) Cancel(ctx context.Context, req *CancelRequest) (*Empty, error) {
	f.cancelCalls++
	return &Empty{}, nil
}

func TestScanServiceDispatchOverGRPC(t *testing.T) {
	lis := bufconn.Listen(1024 * 1024)
	t.Cleanup(func() { _ = lis.Close() })

	srv := grpc.NewServer(ServerOptions()...)
	fake := &fakeScanServer{}
	RegisterScanServer(srv, fake)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	dialOpts := append(DialOptions(),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	conn, err := grpc.NewClient("passthrough:///bufnet", dialOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client := NewScanServiceClient(conn)
	result, err := client.Dispatch(context.Background(), &Job{
		TraceID:   "trace-1",
		Partition: Partition{Stream: "app-logs"},
	})
	require.NoError(t, err)
	assert.Equal(t, "trace-1", result.TraceID)
	require.Len(t, result.Records, 1)
	assert.Equal(t, int64(1), result.Stats.Files)
	assert.Equal(t, 1, fake.dispatchCalls)

	_, err = client.Cancel(context.Background(), &CancelRequest{TraceID: "trace-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.cancelCalls)
}
