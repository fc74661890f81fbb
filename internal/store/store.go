// Package store is the transactional persistence layer: pools, resources,
// tags, tickets, and pool-local id slots. Every mutation happens inside a
// scoped transaction opened by WithTx; reads are served directly against the
// pooled connection since the decisions they feed (allocation counts,
// matching candidates) are re-evaluated every tick regardless.
//
// Grounded on the teacher's internal/core/purge.go for direct modernc.org/sqlite
// use (busy_timeout/WAL pragmas) and on anyotin-valley-pkg/mysql for the
// query-builder shape, generalized into internal/store/query.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql" // alternate backend, selected via Config.Driver
	_ "modernc.org/sqlite"             // default backend, pure Go

	"github.com/giantswarm/resallocd/internal/store/query"
)

// defaultSQLiteDSN is the database file used when Config.DSN is left empty
// for the sqlite driver. SQLite treats an empty filename as a private,
// connection-scoped temporary database that vanishes on close, so a blank
// DSN must never reach the driver: a daemon started with no DSN would
// silently lose its resource/ticket state across every restart.
func defaultSQLiteDSN(baseDataDir string) string {
	return filepath.Join(baseDataDir, "resallocd.db")
}

// Config selects the SQL backend and data directory.
type Config struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string
	// DSN is the driver-specific data source name. For sqlite this is
	// typically a file path within BaseDataDir; for mysql a DSN as produced
	// by go-sql-driver/mysql's Config.FormatDSN.
	DSN string
	// BaseDataDir is locked with a gofrs/flock advisory lock for the
	// lifetime of the Store, enforcing the single-process-owns-the-database
	// non-goal (spec.md §1).
	BaseDataDir string
}

// Store wraps a *sqlx.DB with the query surface spec.md §4.1 requires.
type Store struct {
	db     *sqlx.DB
	driver string
	lock   *flock.Flock
}

// Open connects to the configured backend, applies the schema (sqlite only —
// a MySQL backend is expected to be provisioned with compatible DDL ahead of
// time, since MySQL's AUTO_INCREMENT syntax differs from sqlite's), and
// acquires the data-directory lock.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}
	dsn := cfg.DSN
	if dsn == "" && driver == "sqlite" {
		dsn = defaultSQLiteDSN(cfg.BaseDataDir)
	}

	if err := os.MkdirAll(cfg.BaseDataDir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir %s: %w", cfg.BaseDataDir, err)
	}

	lockPath := filepath.Join(cfg.BaseDataDir, "resallocd.lock")
	l := flock.New(lockPath)
	locked, err := l.TryLockContext(ctx, 200*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("store: lock %s: %w", lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("store: %s is held by another resallocd process", lockPath)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		_ = l.Unlock()
		return nil, fmt.Errorf("store: connect %s: %w", driver, err)
	}

	if driver == "sqlite" {
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA foreign_keys=ON",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				_ = l.Unlock()
				return nil, fmt.Errorf("store: apply %q: %w", pragma, err)
			}
		}
		if _, err := db.ExecContext(ctx, schema); err != nil {
			_ = db.Close()
			_ = l.Unlock()
			return nil, fmt.Errorf("store: apply schema: %w", err)
		}
	}

	return &Store{db: db, driver: driver, lock: l}, nil
}

// Close releases the database connection and the data-directory lock.
func (s *Store) Close() error {
	dbErr := s.db.Close()
	lockErr := s.lock.Unlock()
	if dbErr != nil {
		return fmt.Errorf("store: close db: %w", dbErr)
	}
	if lockErr != nil {
		return fmt.Errorf("store: release lock: %w", lockErr)
	}
	return nil
}

// WithTx runs fn inside a transaction, committing on nil error and rolling
// back otherwise. This is the "scoped transaction" spec.md §4.1 requires:
// every read-modify-write pass on Store state goes through here.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrap("begin", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return wrap("rollback after "+err.Error(), rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrap("commit", err)
	}
	return nil
}

var liveStates = []any{
	string(StateStarting), string(StateUp), string(StateReleasing), string(StateDeleteRequest),
}

func poolFilter(pool string, base query.WhereCond) query.WhereCond {
	if pool == "" {
		return base
	}
	return query.And(base, query.Eq("pool", pool))
}

// On returns resources in {STARTING, UP, RELEASING, DELETE_REQUEST},
// optionally filtered by pool. pool == "" means all pools.
func (s *Store) On(ctx context.Context, pool string) ([]Resource, error) {
	rows, err := query.From[Resource]("resource").
		Where(poolFilter(pool, query.In("state", liveStates))).
		OrderBy("id ASC").
		All(ctx, s.db)
	return rows, wrap("on", err)
}

// Up returns resources in UP, optionally filtered by pool.
func (s *Store) Up(ctx context.Context, pool string) ([]Resource, error) {
	rows, err := query.From[Resource]("resource").
		Where(poolFilter(pool, query.Eq("state", string(StateUp)))).
		OrderBy("id ASC").
		All(ctx, s.db)
	return rows, wrap("up", err)
}

// Ready returns UP resources with no bound ticket.
func (s *Store) Ready(ctx context.Context, pool string) ([]Resource, error) {
	cond := query.And(query.Eq("state", string(StateUp)), query.IsNull("ticket"))
	rows, err := query.From[Resource]("resource").
		Where(poolFilter(pool, cond)).
		OrderBy("id ASC").
		All(ctx, s.db)
	return rows, wrap("ready", err)
}

// Taken returns UP resources with a bound ticket.
func (s *Store) Taken(ctx context.Context, pool string) ([]Resource, error) {
	cond := query.Raw("state = ? AND ticket IS NOT NULL", string(StateUp))
	rows, err := query.From[Resource]("resource").
		Where(poolFilter(pool, cond)).
		OrderBy("id ASC").
		All(ctx, s.db)
	return rows, wrap("taken", err)
}

// CheckFailureCandidates returns the resources eligible for check-failure
// driven removal. Per spec.md §9's resolved open question, this excludes
// taken resources even though the Watcher itself advances check_failed_count
// on every UP resource regardless of binding — removal only fires once a
// resource is free again, so this is exactly the Ready() set.
func (s *Store) CheckFailureCandidates(ctx context.Context, pool string) ([]Resource, error) {
	rows, err := s.Ready(ctx, pool)
	return rows, wrap("check_failure_candidates", err)
}

// CleanCandidates returns UP, unbound resources eligible for reuse-policy
// evaluation. A resource that is UP and unbound has, by construction,
// either been released at least once or never been taken — both cases the
// reuse policy in spec.md §4.4 step 2 must consider.
func (s *Store) CleanCandidates(ctx context.Context, pool string) ([]Resource, error) {
	rows, err := s.Ready(ctx, pool)
	return rows, wrap("clean_candidates", err)
}

// Clean returns resources in DELETE_REQUEST for the given pool.
func (s *Store) Clean(ctx context.Context, pool string) ([]Resource, error) {
	rows, err := query.From[Resource]("resource").
		Where(poolFilter(pool, query.Eq("state", string(StateDeleteRequest)))).
		OrderBy("id ASC").
		All(ctx, s.db)
	return rows, wrap("clean", err)
}

// Waiting returns OPEN tickets with no bound resource, FIFO ordered.
func (s *Store) Waiting(ctx context.Context) ([]Ticket, error) {
	cond := query.And(query.Eq("state", string(TicketOpen)), query.IsNull("resource_id"))
	rows, err := query.From[Ticket]("ticket").Where(cond).OrderBy("id ASC").All(ctx, s.db)
	return rows, wrap("waiting", err)
}

// Stats computes {on, free, start} for the Pool Controller's allocation loop.
func (s *Store) Stats(ctx context.Context, pool string) (PoolStats, error) {
	on, err := s.On(ctx, pool)
	if err != nil {
		return PoolStats{}, err
	}
	var stats PoolStats
	stats.On = len(on)
	for _, r := range on {
		switch r.State {
		case StateUp:
			if r.Ticket == nil {
				stats.Free++
			}
		case StateStarting:
			stats.Start++
		}
	}
	return stats, nil
}

// GetResource fetches a single resource by id.
func (s *Store) GetResource(ctx context.Context, id int64) (Resource, error) {
	row, err := query.From[Resource]("resource").Where(query.Eq("id", id)).One(ctx, s.db)
	if err != nil {
		if err == sql.ErrNoRows {
			return Resource{}, wrap("get_resource", ErrNotFound)
		}
		return Resource{}, wrap("get_resource", err)
	}
	return row, nil
}

// ResourceTagsFor returns every tag row for a resource, used by ticket
// matching to score candidates.
func (s *Store) ResourceTagsFor(ctx context.Context, resourceID int64) ([]ResourceTag, error) {
	rows, err := query.From[ResourceTag]("resource_tag").Where(query.Eq("resource_id", resourceID)).All(ctx, s.db)
	return rows, wrap("resource_tags_for", err)
}

// GetPoolState loads a pool's persistent state row, creating a zero-value
// row in its own transaction on first use (a pool with no prior activity has last_start = 0 and no
// cleaning_unknown_resources timestamp).
func (s *Store) GetPoolState(ctx context.Context, poolID string) (PoolState, error) {
	row, err := query.From[PoolState]("pool_state").Where(query.Eq("id", poolID)).One(ctx, s.db)
	if err == nil {
		return row, nil
	}
	if err != sql.ErrNoRows {
		return PoolState{}, wrap("get_pool_state", err)
	}
	if insErr := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := query.InsertInto("pool_state").
			Set("id", poolID).
			Set("last_start", int64(0)).
			ExecTx(ctx, tx)
		return err
	}); insErr != nil {
		return PoolState{}, wrap("get_pool_state: seed", insErr)
	}
	return PoolState{ID: poolID}, nil
}

// GetTicket fetches a single ticket by id.
func (s *Store) GetTicket(ctx context.Context, id int64) (Ticket, error) {
	row, err := query.From[Ticket]("ticket").Where(query.Eq("id", id)).One(ctx, s.db)
	if err != nil {
		if err == sql.ErrNoRows {
			return Ticket{}, wrap("get_ticket", ErrNotFound)
		}
		return Ticket{}, wrap("get_ticket", err)
	}
	return row, nil
}

// GetIDWithinPoolForResource returns the pool-local slot number assigned to
// a resource, if any (a resource always has one until it reaches ENDED, at
// which point the slot is freed and this returns ok == false).
func (s *Store) GetIDWithinPoolForResource(ctx context.Context, resourceID int64) (id int, ok bool, err error) {
	row, err := query.From[IDWithinPool]("id_within_pool").Where(query.Eq("resource_id", resourceID)).One(ctx, s.db)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, wrap("get_id_within_pool_for_resource", err)
	}
	return row.ID, true, nil
}
