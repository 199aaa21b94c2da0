package rowstore_test

// Differential test: the same insert sequence is applied to a rowstore
// table and to a SQLite table with a primary key, then both are scanned.
// Run against the CGO driver with: CGO_ENABLED=1 go test -tags cgo_sqlite

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"testing"

	errs "github.com/FocuswithJustin/rowstore/core/errors"
	"github.com/FocuswithJustin/rowstore/core/rowstore"
	"github.com/FocuswithJustin/rowstore/core/rowstore/row"
	"github.com/FocuswithJustin/rowstore/core/sqlite"
)

func TestOracle_MatchesSQLite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	table, err := rowstore.OpenWithOptions(filepath.Join(dir, "rows.db"), rowstore.Options{
		MaxPages:        2000,
		InternalMaxKeys: 4,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer table.Close()

	db, err := sqlite.Open(filepath.Join(dir, "oracle.db"))
	if err != nil {
		t.Fatalf("failed to open %s database: %v", sqlite.DriverType(), err)
	}
	defer db.Close()
	if err := sqlite.CreateTable(ctx, db); err != nil {
		t.Fatal(err)
	}

	r := rand.New(rand.NewPCG(7, 11))
	duplicates := 0
	for i := 0; i < 1500; i++ {
		id := r.Int64N(1000) + 1
		rw, err := row.New(id, fmt.Sprintf("u%d", id), fmt.Sprintf("u%d@example.com", id))
		if err != nil {
			t.Fatal(err)
		}

		storeErr := table.Insert(rw)
		_, sqlErr := db.ExecContext(ctx, `INSERT INTO rows (id, username, email) VALUES (?, ?, ?)`,
			int64(rw.ID), rw.Username, rw.Email)

		switch {
		case storeErr == nil && sqlErr == nil:
		case errors.Is(storeErr, errs.ErrDuplicateKey) && sqlErr != nil:
			duplicates++
		default:
			t.Fatalf("insert %d diverged: rowstore=%v sqlite=%v", id, storeErr, sqlErr)
		}
	}
	if duplicates == 0 {
		t.Error("random ids produced no duplicates")
	}

	want, err := sqlite.ReadAll(ctx, db)
	if err != nil {
		t.Fatal(err)
	}

	rows, err := table.Select()
	if err != nil {
		t.Fatal(err)
	}
	var got []row.Row
	for rows.Next() {
		got = append(got, rows.Row())
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}

	if len(got) != len(want) {
		t.Fatalf("rowstore has %d rows, sqlite has %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row %d: rowstore %v, sqlite %v", i, got[i], want[i])
		}
	}
	if err := table.Check(); err != nil {
		t.Errorf("Check() error = %v", err)
	}
}

func TestOracle_Export(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	table, err := rowstore.Open(filepath.Join(dir, "rows.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer table.Close()
	for id := int64(40); id >= 1; id-- {
		rw, _ := row.New(id, "user", "user@example.com")
		if err := table.Insert(rw); err != nil {
			t.Fatal(err)
		}
	}

	db, err := sqlite.Open(filepath.Join(dir, "export.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	rows, err := table.Select()
	if err != nil {
		t.Fatal(err)
	}
	n, err := sqlite.Export(ctx, db, rows)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if n != 40 {
		t.Errorf("Export() = %d, want 40", n)
	}

	var count, minID, maxID int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*), MIN(id), MAX(id) FROM rows`).Scan(&count, &minID, &maxID); err != nil {
		t.Fatal(err)
	}
	if count != 40 || minID != 1 || maxID != 40 {
		t.Errorf("sqlite rows: count=%d min=%d max=%d", count, minID, maxID)
	}
}
