package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect describes the SQL driver a SQLRegistry talks to.
type Dialect struct {
	Name         string
	DriverName   string
	MaxOpenConns int

	// NumberedParams switches "?" placeholders to "$1, $2, ..." form.
	NumberedParams bool

	// Setup statements run on every new connection before the schema.
	Setup []string
}

var (
	// Postgres is the production backend.
	Postgres = Dialect{
		Name:           "postgres",
		DriverName:     "pgx",
		MaxOpenConns:   10,
		NumberedParams: true,
	}

	// SQLite allows a single open connection so concurrent writers queue
	// instead of hitting SQLITE_BUSY.
	SQLite = Dialect{
		Name:         "sqlite",
		DriverName:   "sqlite",
		MaxOpenConns: 1,
		Setup:        []string{"PRAGMA busy_timeout = 5000;"},
	}
)

const schema = `
CREATE TABLE IF NOT EXISTS locations (
	user_id BIGINT NOT NULL,
	location_name TEXT NOT NULL,
	latitude DOUBLE PRECISION NOT NULL,
	longitude DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (user_id, location_name)
)`

const (
	keysQuery   = `SELECT location_name FROM locations WHERE user_id = ?`
	getQuery    = `SELECT latitude, longitude FROM locations WHERE user_id = ? AND location_name = ?`
	deleteQuery = `DELETE FROM locations WHERE user_id = ? AND location_name = ?`
	upsertQuery = `
	INSERT INTO locations (user_id, location_name, latitude, longitude)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (user_id, location_name) DO UPDATE SET
		latitude = excluded.latitude,
		longitude = excluded.longitude`
)

// rebind rewrites "?" placeholders for drivers that want numbered ones.
func (d Dialect) rebind(query string) string {
	if !d.NumberedParams {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Connector opens a verified database handle.
type Connector func(ctx context.Context) (*sql.DB, error)

// OpenConnector returns a Connector that opens dsn with the dialect's driver
// and pings it before handing it out.
func OpenConnector(d Dialect, dsn string) Connector {
	return func(ctx context.Context) (*sql.DB, error) {
		db, err := sql.Open(d.DriverName, dsn)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if d.MaxOpenConns > 0 {
			db.SetMaxOpenConns(d.MaxOpenConns)
		}

		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		return db, nil
	}
}
