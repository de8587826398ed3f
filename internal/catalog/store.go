// Package catalog implements C3: the authoritative, queryable index of
// every immutable file the system has ever published, backed by an
// embedded sqlite store the same way the teacher's internal/repository
// backs its job index.
package catalog

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	sqlite3driver "github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"

	sq "github.com/Masterminds/squirrel"

	"github.com/openobserve/corelake/internal/errs"
)

// Store is the file-list catalog: a single sqlite connection (sqlite does
// not benefit from more than one writer; matching the teacher's
// `SetMaxOpenConns(1)` discipline in internal/repository/dbConnection.go)
// plus a squirrel statement builder bound to it.
type Store struct {
	db           *sqlx.DB
	stmtCache    sq.BaseRunner
	writeSem     *writeLimiter
	listCache    *ListCache
	onInvalidate func(tenant, stream string)
}

// registerDriverOnce guards the instrumented driver registration, since
// database/sql panics if the same driver name is registered twice.
var registerDriverOnce sync.Once

// Open connects to a sqlite3 database at dsn, registers query-latency
// instrumentation via sqlhooks (grounded on internal/repository/hooks.go),
// and applies pending golang-migrate migrations before returning.
func Open(dsn string) (*Store, error) {
	driverName := "sqlite3-catalog-instrumented"
	registerDriverOnce.Do(func() {
		sql.Register(driverName, sqlhooks.Wrap(&sqlite3driver.SQLiteDriver{}, &queryHooks{}))
	})

	db, err := sqlx.Open(driverName, fmt.Sprintf("%s?_foreign_keys=on", dsn))
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "catalog: open %s", dsn)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db.DB); err != nil {
		return nil, err
	}

	return &Store{
		db:        db,
		stmtCache: db,
		writeSem:  newWriteLimiter(1),
		listCache: NewListCache(64 * 1024 * 1024),
	}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetNotifyHook registers fn to be called, in addition to the local
// ListCache invalidation Publish/Tombstone/sweep already do, whenever a
// (tenant, stream)'s file list changes -- the hook a multi-node deployment
// uses to broadcast cache invalidation to every other node's ListCache.
func (s *Store) SetNotifyHook(fn func(tenant, stream string)) {
	s.onInvalidate = fn
}

// InvalidateListCache drops the cached List result for (tenant, stream),
// the entry point a remote invalidation notification calls into.
func (s *Store) InvalidateListCache(tenant, stream string) {
	s.listCache.Invalidate(listCacheKey(tenant, stream))
}

func (s *Store) notifyInvalidate(tenant, stream string) {
	if s.onInvalidate != nil {
		s.onInvalidate(tenant, stream)
	}
}
