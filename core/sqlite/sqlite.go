// Package sqlite copies a row store into a SQLite database, supporting both
// pure Go (modernc.org/sqlite) and CGO (mattn/go-sqlite3) drivers.
//
// Build modes:
//   - Default (CGO_ENABLED=0): Uses pure Go modernc.org/sqlite
//   - CGO mode (CGO_ENABLED=1 -tags cgo_sqlite): Uses mattn/go-sqlite3 via contrib/sqlite-external
//
// The exported table mirrors the fixed row schema:
//
//	CREATE TABLE rows (id INTEGER PRIMARY KEY, username TEXT NOT NULL, email TEXT NOT NULL)
//
// Use Open() instead of sql.Open() to ensure the correct driver is used.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/FocuswithJustin/rowstore/core/rowstore/row"
	"github.com/FocuswithJustin/rowstore/internal/logging"
)

// TableName is the name of the exported table.
const TableName = "rows"

const createTable = `CREATE TABLE IF NOT EXISTS rows (
	id       INTEGER PRIMARY KEY,
	username TEXT NOT NULL,
	email    TEXT NOT NULL
)`

// DriverName returns the SQL driver name to use.
func DriverName() string {
	return driverName
}

// DriverType returns a string identifying the underlying implementation.
// Returns "cgo" for mattn/go-sqlite3, "purego" for modernc.org/sqlite.
func DriverType() string {
	return driverType
}

// IsCGO returns true if the CGO implementation is being used.
func IsCGO() bool {
	return driverType == "cgo"
}

// Open opens a SQLite database using the appropriate driver.
func Open(dataSourceName string) (*sql.DB, error) {
	return sql.Open(driverName, dataSourceName)
}

// OpenReadOnly opens a SQLite database in read-only mode.
func OpenReadOnly(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?mode=ro"
	return Open(dsn)
}

// Info contains information about the SQLite driver configuration.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns information about the current SQLite configuration.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		IsCGO:      IsCGO(),
		Package:    driverPackage,
	}
}

// RowSource yields rows in order. *rowstore.Rows satisfies it.
type RowSource interface {
	Next() bool
	Row() row.Row
	Err() error
}

// CreateTable creates the rows table if it does not exist.
func CreateTable(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Export inserts every row of src into db inside one transaction and returns
// the number copied. An id already present in db fails the export.
func Export(ctx context.Context, db *sql.DB, src RowSource) (int, error) {
	if err := CreateTable(ctx, db); err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO rows (id, username, email) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	n := 0
	for src.Next() {
		r := src.Row()
		if _, err := stmt.ExecContext(ctx, int64(r.ID), r.Username, r.Email); err != nil {
			return n, fmt.Errorf("failed to insert row %d: %w", r.ID, err)
		}
		n++
	}
	if err := src.Err(); err != nil {
		return n, err
	}

	if err := tx.Commit(); err != nil {
		return n, fmt.Errorf("failed to commit: %w", err)
	}
	logging.Info("sqlite_export", "rows", n, "driver", driverType)
	return n, nil
}

// ReadAll returns every row of the rows table ordered by id.
func ReadAll(ctx context.Context, db *sql.DB) ([]row.Row, error) {
	rs, err := db.QueryContext(ctx, `SELECT id, username, email FROM rows ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer rs.Close()

	var out []row.Row
	for rs.Next() {
		var id int64
		var r row.Row
		if err := rs.Scan(&id, &r.Username, &r.Email); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.ID = uint32(id)
		out = append(out, r)
	}
	return out, rs.Err()
}
