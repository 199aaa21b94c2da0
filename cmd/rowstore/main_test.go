package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FocuswithJustin/rowstore/core/rowstore"
	"github.com/FocuswithJustin/rowstore/core/snapshot"
	"github.com/FocuswithJustin/rowstore/core/sqlite"
)

// Test helper functions

func newEnv(in string) (*Env, *bytes.Buffer) {
	var out bytes.Buffer
	return &Env{Ctx: context.Background(), In: strings.NewReader(in), Out: &out}, &out
}

func createTestTable(t *testing.T, dir string, script string) string {
	t.Helper()
	path := filepath.Join(dir, "test.db")
	env, _ := newEnv(script)
	cmd := &OpenCmd{Path: path}
	if err := cmd.Run(env); err != nil {
		t.Fatalf("OpenCmd.Run() error = %v", err)
	}
	return path
}

// Tests for OpenCmd

func TestOpenCmd_Run(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	env, out := newEnv("insert 1 alice alice@example.com\nselect\n.exit\n")
	cmd := &OpenCmd{Path: path}
	if err := cmd.Run(env); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := "db > executed\ndb > (1, alice, alice@example.com)\nexecuted\ndb > "
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("table file not created: %v", err)
	}
	if info.Size() != rowstore.PageSize {
		t.Errorf("file size = %d, want %d", info.Size(), rowstore.PageSize)
	}
}

func TestOpenCmd_InvalidFlags(t *testing.T) {
	env, _ := newEnv(".exit\n")
	cmd := &OpenCmd{
		Path:       filepath.Join(t.TempDir(), "test.db"),
		TableFlags: TableFlags{InternalMaxKeys: 1},
	}
	if err := cmd.Run(env); err == nil {
		t.Error("Run() should reject an internal split threshold of 1")
	}
}

// Tests for CheckCmd

func TestCheckCmd_Run(t *testing.T) {
	path := createTestTable(t, t.TempDir(), "insert 1 a b\ninsert 2 c d\n")

	env, out := newEnv("")
	cmd := &CheckCmd{Path: path, TableFlags: TableFlags{MaxPages: rowstore.DefaultMaxPages}}
	if err := cmd.Run(env); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "ok: 2 rows, 1 pages") {
		t.Errorf("output = %q", out.String())
	}
}

func TestCheckCmd_JSON(t *testing.T) {
	path := createTestTable(t, t.TempDir(), "insert 1 a b\n")

	env, out := newEnv("")
	cmd := &CheckCmd{Path: path, JSON: true}
	if err := cmd.Run(env); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var stats rowstore.Stats
	if err := json.Unmarshal(out.Bytes(), &stats); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if stats.Rows != 1 || stats.Depth != 1 || stats.Pages != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCheckCmd_Corrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.db")
	if err := os.WriteFile(path, make([]byte, 100), 0644); err != nil {
		t.Fatal(err)
	}

	env, _ := newEnv("")
	cmd := &CheckCmd{Path: path}
	if err := cmd.Run(env); err == nil {
		t.Error("Run() should fail on a partial page file")
	}
}

// Tests for snapshot commands

func TestSnapshotCmds_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := createTestTable(t, dir, "insert 1 a b\ninsert 2 c d\n")
	archive := filepath.Join(dir, "test.db.xz")

	env, out := newEnv("")
	save := &SnapshotSaveCmd{Path: path, Out: archive}
	if err := save.Run(env); err != nil {
		t.Fatalf("save Run() error = %v", err)
	}
	var m snapshot.Manifest
	if err := json.Unmarshal(out.Bytes(), &m); err != nil {
		t.Fatalf("manifest is not JSON: %v", err)
	}
	if m.Pages != 1 || m.BLAKE3 == "" {
		t.Errorf("manifest = %+v", m)
	}

	restored := filepath.Join(dir, "restored.db")
	env, out = newEnv("")
	restore := &SnapshotRestoreCmd{In: archive, Path: restored, BLAKE3: m.BLAKE3}
	if err := restore.Run(env); err != nil {
		t.Fatalf("restore Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "restored 1 pages") {
		t.Errorf("output = %q", out.String())
	}

	a, _ := os.ReadFile(path)
	b, _ := os.ReadFile(restored)
	if !bytes.Equal(a, b) {
		t.Error("restored file differs from source")
	}
}

func TestSnapshotRestoreCmd_RefusesExisting(t *testing.T) {
	dir := t.TempDir()
	path := createTestTable(t, dir, "insert 1 a b\n")
	archive := filepath.Join(dir, "test.db.xz")
	if _, err := snapshot.SaveFile(path, archive); err != nil {
		t.Fatal(err)
	}

	env, _ := newEnv("")
	restore := &SnapshotRestoreCmd{In: archive, Path: path}
	if err := restore.Run(env); err == nil {
		t.Fatal("restore over an existing file should fail without --force")
	}

	restore.Force = true
	if err := restore.Run(env); err != nil {
		t.Fatalf("restore --force error = %v", err)
	}
}

// Tests for ExportCmd

func TestExportCmd_Run(t *testing.T) {
	dir := t.TempDir()
	path := createTestTable(t, dir, "insert 2 bob bob@example.com\ninsert 1 alice alice@example.com\n")
	out := filepath.Join(dir, "export.sqlite")

	env, buf := newEnv("")
	cmd := &ExportCmd{Path: path, Out: out}
	if err := cmd.Run(env); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "exported 2 rows") {
		t.Errorf("output = %q", buf.String())
	}

	db, err := sqlite.OpenReadOnly(out)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	rows, err := sqlite.ReadAll(context.Background(), db)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(rows) != 2 || rows[0].ID != 1 || rows[1].Username != "bob" {
		t.Errorf("exported rows = %v", rows)
	}
}

// Tests for VersionCmd

func TestVersionCmd_Run(t *testing.T) {
	env, out := newEnv("")
	if err := (&VersionCmd{}).Run(env); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "rowstore version "+version) {
		t.Errorf("output = %q", out.String())
	}
	if !strings.Contains(out.String(), sqlite.DriverType()) {
		t.Errorf("output does not name the sqlite driver: %q", out.String())
	}
}

// Tests for argument parsing

func TestRun_DefaultCommandIsOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	var out bytes.Buffer
	err := run(context.Background(), []string{path}, strings.NewReader("insert 7 x y\nselect\n"), &out)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(out.String(), "(7, x, y)") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRun_Subcommands(t *testing.T) {
	path := createTestTable(t, t.TempDir(), "insert 1 a b\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"version", []string{"version"}, "rowstore version"},
		{"check", []string{"check", path}, "ok: 1 rows"},
		{"check with log flags", []string{"--log-level=debug", "--log-format=json", "check", path}, "ok: 1 rows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := run(context.Background(), tt.args, strings.NewReader(""), &out); err != nil {
				t.Fatalf("run(%v) error = %v", tt.args, err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output = %q, want it to contain %q", out.String(), tt.want)
			}
		})
	}
}

func TestRun_BadArgs(t *testing.T) {
	tests := [][]string{
		{"check"},
		{"check", filepath.Join(t.TempDir(), "missing.db")},
		{"--log-level=loud", "version"},
	}
	for _, args := range tests {
		var out bytes.Buffer
		if err := run(context.Background(), args, strings.NewReader(""), &out); err == nil {
			t.Errorf("run(%v) should fail", args)
		}
	}
}
