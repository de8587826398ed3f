package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/urfave/cli/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/openobserve/corelake/internal/catalog"
	"github.com/openobserve/corelake/internal/cluster"
	"github.com/openobserve/corelake/internal/config"
	"github.com/openobserve/corelake/internal/httpapi"
	"github.com/openobserve/corelake/internal/ingest"
	"github.com/openobserve/corelake/internal/logx"
	"github.com/openobserve/corelake/internal/notify"
	"github.com/openobserve/corelake/internal/obsmetrics"
	"github.com/openobserve/corelake/internal/objstore"
	"github.com/openobserve/corelake/internal/query"
)

// serverCommand assembles and runs every long-lived piece of the system:
// the ingest/query HTTP listeners, the gRPC ScanServer listener, the
// roll-age and tombstone-sweep background jobs, and the graceful shutdown
// sequence -- the teacher's main.go shape (mux.Router + gorilla/handlers
// middleware chain + sync.WaitGroup + signal channel), generalized from
// one HTTP server to this system's three listeners.
var serverCommand = &cli.Command{
	Name:  "server",
	Usage: "run the ingest, query and cluster-RPC listeners",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "peer",
			Usage: "cluster-rpc-addr of a remote query worker (repeatable); defaults to local-only execution",
		},
	},
	Action: runServer,
}

func runServer(c *cli.Context) error {
	store, err := catalog.Open(config.Keys.CatalogDSN)
	if err != nil {
		return cli.Exit("server: open catalog: "+err.Error(), 1)
	}
	defer store.Close()

	objStore, err := buildObjectStore(c.Context)
	if err != nil {
		return cli.Exit("server: open object store: "+err.Error(), 1)
	}

	if config.Keys.NotifyAddr != "" {
		bus, err := notify.Connect(config.Keys.NotifyAddr)
		if err != nil {
			return cli.Exit("server: connect notify bus: "+err.Error(), 1)
		}
		defer bus.Close()

		store.SetNotifyHook(bus.PublishInvalidate)
		if err := bus.SubscribeInvalidate(store.InvalidateListCache); err != nil {
			return cli.Exit("server: subscribe notify bus: "+err.Error(), 1)
		}
	}

	ic := ingest.New(ingest.Config{
		WALDir:              filepath.Join(config.Keys.DataDir, "wal"),
		QuarantineDir:       filepath.Join(config.Keys.DataDir, "quarantine"),
		RollSizeBytes:       config.RollSizeBytes(),
		RollAge:             config.RollAgeDuration(),
		PartitionDurationUs: config.PartitionDurationUs(),
		PastHorizon:         config.PastHorizonDuration(),
		FutureHorizon:       config.FutureHorizonDuration(),
		MaxInFlightBytes:    config.Keys.Admission.MaxInFlightBytes,
		MaxRecordsPerSecond: config.Keys.Admission.MaxRecordsPerSecond,
	}, objStore, store)

	rollSweep, err := ingest.StartRollAgeSweep(ic)
	if err != nil {
		return cli.Exit("server: start roll-age sweep: "+err.Error(), 1)
	}
	defer rollSweep.Shutdown()

	cleanupInterval, err := time.ParseDuration(config.Keys.Cleanup.Interval)
	if err != nil {
		cleanupInterval = time.Hour
	}
	cleanupSweep, err := catalog.StartCleanupSweep(store, cleanupInterval, config.GracePeriodDuration(),
		func(ctx context.Context, objectKey, indexKey string) error {
			if err := objStore.Delete(ctx, objectKey); err != nil {
				return err
			}
			if indexKey != "" {
				return objStore.Delete(ctx, indexKey)
			}
			return nil
		})
	if err != nil {
		return cli.Exit("server: start cleanup sweep: "+err.Error(), 1)
	}
	defer cleanupSweep.Shutdown()

	pool, closePeers, err := buildWorkerPool(c.StringSlice("peer"), objStore)
	if err != nil {
		return cli.Exit("server: dial peers: "+err.Error(), 1)
	}
	defer closePeers()

	qc := query.New(store, pool, len(pool.All()), config.Keys.ParallelismPerWorker)

	ingestRouter := mux.NewRouter()
	(&httpapi.IngestAPI{Coordinator: ic}).MountRoutes(ingestRouter)

	queryRouter := mux.NewRouter()
	(&httpapi.QueryAPI{Coordinator: qc}).MountRoutes(queryRouter)
	queryRouter.Handle("/metrics", obsmetrics.Handler())

	ingestSrv := &http.Server{
		Addr:         config.Keys.IngestAddr,
		Handler:      withMiddleware(ingestRouter),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	querySrv := &http.Server{
		Addr:    config.Keys.QueryAddr,
		Handler: withMiddleware(queryRouter),
		// Queries can legitimately run long; ReadTimeout still bounds
		// how long a client may take to send the request itself.
		ReadTimeout: 30 * time.Second,
	}

	grpcSrv := grpc.NewServer(cluster.ServerOptions()...)
	cluster.RegisterScanServer(grpcSrv, query.NewExecutor(objStore))

	grpcListener, err := net.Listen("tcp", config.Keys.ClusterRPCAddr)
	if err != nil {
		return cli.Exit("server: listen on "+config.Keys.ClusterRPCAddr+": "+err.Error(), 1)
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		logx.Infof("server: ingest http listening on %s", config.Keys.IngestAddr)
		if err := ingestSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatalf("server: ingest http listener: %s", err)
		}
	}()
	go func() {
		defer wg.Done()
		logx.Infof("server: query http listening on %s", config.Keys.QueryAddr)
		if err := querySrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatalf("server: query http listener: %s", err)
		}
	}()
	go func() {
		defer wg.Done()
		logx.Infof("server: grpc listening on %s", config.Keys.ClusterRPCAddr)
		if err := grpcSrv.Serve(grpcListener); err != nil {
			logx.Fatalf("server: grpc listener: %s", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logx.Infof("server: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = ingestSrv.Shutdown(shutdownCtx)
	_ = querySrv.Shutdown(shutdownCtx)
	grpcSrv.GracefulStop()
	ic.Drain()

	wg.Wait()
	logx.Infof("server: shutdown complete")
	return nil
}

// withMiddleware applies the teacher's gorilla/handlers chain (compression,
// panic recovery, CORS, access logging) to h.
func withMiddleware(h http.Handler) http.Handler {
	wrapped := handlers.CompressHandler(h)
	wrapped = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(wrapped)
	wrapped = handlers.CORS(
		handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "X-Scope-OrgID"}),
		handlers.AllowedMethods([]string{"GET", "POST", "HEAD", "OPTIONS"}),
		handlers.AllowedOrigins([]string{"*"}))(wrapped)
	return handlers.CustomLoggingHandler(io.Discard, wrapped, func(_ io.Writer, params handlers.LogFormatterParams) {
		logx.Infof("%s %s (%d, %.02fkb, %dms)",
			params.Request.Method, params.URL.RequestURI(),
			params.StatusCode, float32(params.Size)/1024,
			time.Since(params.TimeStamp).Milliseconds())
	})
}

func buildObjectStore(ctx context.Context) (objstore.Target, error) {
	switch config.Keys.ObjectStore.Kind {
	case "s3":
		return objstore.NewS3Target(ctx, objstore.S3Config{
			Endpoint:     config.Keys.ObjectStore.Endpoint,
			Bucket:       config.Keys.ObjectStore.Bucket,
			AccessKey:    config.Keys.ObjectStore.AccessKey,
			SecretKey:    config.Keys.ObjectStore.SecretKey,
			Region:       config.Keys.ObjectStore.Region,
			UsePathStyle: config.Keys.ObjectStore.UsePathStyle,
		})
	default:
		return objstore.NewFSTarget(config.Keys.ObjectStore.Path)
	}
}

// buildWorkerPool dials every configured peer's cluster-rpc-addr plus a
// local in-process Executor, so a single-node deployment works with no
// --peer flags at all (the pool degrades to local-only execution).
func buildWorkerPool(peers []string, objStore objstore.Target) (*query.Pool, func(), error) {
	workers := []query.Worker{query.NewExecutor(objStore)}
	var conns []*grpc.ClientConn

	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, cluster.DialOptions()...)
	for _, addr := range peers {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		conn, err := grpc.NewClient(addr, dialOpts...)
		if err != nil {
			for _, c := range conns {
				c.Close()
			}
			return nil, nil, err
		}
		conns = append(conns, conn)
		workers = append(workers, query.NewGRPCWorker(addr, cluster.NewScanServiceClient(conn)))
	}

	pool := query.NewPool(workers...)
	closeFn := func() {
		for _, c := range conns {
			c.Close()
		}
	}
	return pool, closeFn, nil
}
