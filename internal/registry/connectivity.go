package registry

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// isConnectivityError reports whether err means the database could not be
// reached, as opposed to a query that reached it and failed.
func isConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return isConnectionSQLState(pgErr.Code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// database/sql and pgx do not export their closed-handle errors.
	msg := err.Error()
	for _, closed := range closedHandleMessages {
		if strings.Contains(msg, closed) {
			return true
		}
	}
	return false
}

var closedHandleMessages = []string{"database is closed", "conn closed"}

// isConnectionSQLState matches class 08 (connection exception) and the
// operator-intervention codes a server sends while shutting down or starting.
func isConnectionSQLState(code string) bool {
	if strings.HasPrefix(code, "08") {
		return true
	}
	switch code {
	case "57P01", "57P02", "57P03":
		return true
	}
	return false
}
