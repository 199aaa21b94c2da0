// Package sqliteexternal provides the optional CGO SQLite driver.
//
// To use the CGO driver (github.com/mattn/go-sqlite3):
//
//	import _ "github.com/FocuswithJustin/rowstore/contrib/sqlite-external"
//
// Build with:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite
//
// Without the tag, rowstore exports through the pure Go driver in
// github.com/FocuswithJustin/rowstore/core/sqlite and needs no C toolchain.
package sqliteexternal
