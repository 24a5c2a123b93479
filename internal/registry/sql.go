package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/i474232898/weather-bot/internal/geo"
	"github.com/i474232898/weather-bot/internal/scheduler"
)

const connectTimeout = 5 * time.Second

// SQLConfig configures a SQLRegistry.
type SQLConfig struct {
	Dialect           Dialect
	DSN               string
	ReconnectInterval time.Duration
}

// SQLRegistry is a Registry backed by a SQL database that may go away.
//
// The live handle sits in an atomic cell. A connectivity failure during any
// call empties the cell and the call returns ErrStorageUnavailable; calls made
// while the cell is empty fail the same way without touching the network. A
// background job refills the cell on a fixed interval.
type SQLRegistry struct {
	dialect Dialect
	connect Connector

	conn      atomic.Pointer[sql.DB]
	connectMu sync.Mutex

	errMu   sync.RWMutex
	lastErr string

	reconnect *scheduler.Scheduler
}

// NewSQLRegistry opens the database described by cfg and starts the reconnect
// job. A database that is down at startup is not an error: the registry
// starts unavailable and keeps trying.
func NewSQLRegistry(cfg SQLConfig) (*SQLRegistry, error) {
	return NewSQLRegistryWithConnector(cfg.Dialect, OpenConnector(cfg.Dialect, cfg.DSN), cfg.ReconnectInterval)
}

// NewSQLRegistryWithConnector is NewSQLRegistry with a custom Connector.
func NewSQLRegistryWithConnector(d Dialect, connect Connector, reconnectInterval time.Duration) (*SQLRegistry, error) {
	r := &SQLRegistry{
		dialect: d,
		connect: connect,
		lastErr: "no connection established yet",
	}

	r.tryConnect()

	r.reconnect = scheduler.New("registry-reconnect", reconnectInterval, r.reconnectIfNeeded)
	if err := r.reconnect.Start(); err != nil {
		r.closeHandle()
		return nil, fmt.Errorf("start reconnect job: %w", err)
	}

	return r, nil
}

// Available reports whether the registry currently holds a live connection.
func (r *SQLRegistry) Available() bool {
	return r.conn.Load() != nil
}

// Close stops the reconnect job, waiting for an attempt in progress, and
// closes the connection.
func (r *SQLRegistry) Close() error {
	if r.reconnect != nil {
		r.reconnect.Stop()
	}
	return r.closeHandle()
}

func (r *SQLRegistry) closeHandle() error {
	if db := r.conn.Swap(nil); db != nil {
		return db.Close()
	}
	return nil
}

func (r *SQLRegistry) reconnectIfNeeded() {
	if r.conn.Load() == nil {
		r.tryConnect()
	}
}

// tryConnect installs a new handle if the cell is empty. Attempts are
// serialized so two callers never both connect.
func (r *SQLRegistry) tryConnect() {
	r.connectMu.Lock()
	defer r.connectMu.Unlock()

	if r.conn.Load() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	db, err := r.connect(ctx)
	if err != nil {
		r.recordFailure(err)
		return
	}

	statements := append(append([]string{}, r.dialect.Setup...), schema)
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			r.recordFailure(fmt.Errorf("initialize schema: %w", err))
			return
		}
	}

	r.conn.Store(db)
	slog.Info("location storage connected", "backend", r.dialect.Name)
}

// recordFailure keeps the message reported to callers while unavailable.
// Repeated identical failures are logged once.
func (r *SQLRegistry) recordFailure(err error) {
	msg := err.Error()

	r.errMu.Lock()
	changed := r.lastErr != msg
	r.lastErr = msg
	r.errMu.Unlock()

	if changed {
		slog.Warn("location storage connection failed", "backend", r.dialect.Name, "error", msg)
	}
}

func (r *SQLRegistry) unavailable() error {
	r.errMu.RLock()
	defer r.errMu.RUnlock()
	return fmt.Errorf("%w: %s", ErrStorageUnavailable, r.lastErr)
}

func (r *SQLRegistry) handle() (*sql.DB, error) {
	db := r.conn.Load()
	if db == nil {
		return nil, r.unavailable()
	}
	return db, nil
}

// fail classifies an error returned by db. Connectivity failures drop the
// handle so the reconnect job replaces it.
func (r *SQLRegistry) fail(db *sql.DB, op string, err error) error {
	if !isConnectivityError(err) {
		return fmt.Errorf("%s location: %w", op, err)
	}

	r.recordFailure(err)
	if r.conn.CompareAndSwap(db, nil) {
		slog.Warn("location storage connection dropped", "backend", r.dialect.Name, "op", op)
		_ = db.Close()
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

func (r *SQLRegistry) Keys(ctx context.Context, userID int64) ([]string, error) {
	db, err := r.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, r.dialect.rebind(keysQuery), userID)
	if err != nil {
		return nil, r.fail(db, "list", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, r.fail(db, "list", err)
		}
		keys = append(keys, name)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail(db, "list", err)
	}
	return keys, nil
}

func (r *SQLRegistry) Add(ctx context.Context, userID int64, name string, loc geo.Location) error {
	db, err := r.handle()
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, r.dialect.rebind(upsertQuery), userID, name, loc.Lat, loc.Lon); err != nil {
		return r.fail(db, "add", err)
	}
	return nil
}

func (r *SQLRegistry) Get(ctx context.Context, userID int64, name string) (geo.Location, error) {
	db, err := r.handle()
	if err != nil {
		return geo.Location{}, err
	}

	var loc geo.Location
	err = db.QueryRowContext(ctx, r.dialect.rebind(getQuery), userID, name).Scan(&loc.Lat, &loc.Lon)
	if errors.Is(err, sql.ErrNoRows) {
		return geo.Location{}, ErrNotFound
	}
	if err != nil {
		return geo.Location{}, r.fail(db, "get", err)
	}
	return loc, nil
}

func (r *SQLRegistry) Delete(ctx context.Context, userID int64, name string) error {
	db, err := r.handle()
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, r.dialect.rebind(deleteQuery), userID, name); err != nil {
		return r.fail(db, "delete", err)
	}
	return nil
}
