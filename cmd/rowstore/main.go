// Command rowstore opens a table file and runs the command loop on it.
// It also checks, snapshots and exports table files.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/rowstore/core/rowstore"
	"github.com/FocuswithJustin/rowstore/core/snapshot"
	"github.com/FocuswithJustin/rowstore/core/sqlite"
	"github.com/FocuswithJustin/rowstore/internal/logging"
	"github.com/FocuswithJustin/rowstore/internal/repl"
)

const version = "0.1.0"

// CLI defines the command-line interface for rowstore.
type CLI struct {
	// Global flags
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)" default:"warn" env:"ROWSTORE_LOG_LEVEL" enum:"debug,info,warn,error"`
	LogFormat string `name:"log-format" help:"Log format (text, json)" default:"text" env:"ROWSTORE_LOG_FORMAT" enum:"text,json"`

	Open     OpenCmd       `cmd:"" default:"withargs" help:"Open a table file and start the command loop"`
	Check    CheckCmd      `cmd:"" help:"Verify the tree structure of a table file"`
	Snapshot SnapshotGroup `cmd:"" help:"Compressed table snapshots"`
	Export   ExportCmd     `cmd:"" help:"Copy all rows into a SQLite database"`
	Version  VersionCmd    `cmd:"" help:"Print version information"`
}

// SnapshotGroup contains snapshot operations.
type SnapshotGroup struct {
	Save    SnapshotSaveCmd    `cmd:"" help:"Write an xz snapshot of a table file"`
	Restore SnapshotRestoreCmd `cmd:"" help:"Restore a table file from an xz snapshot"`
}

// Env carries the process streams and context into commands.
type Env struct {
	Ctx context.Context
	In  io.Reader
	Out io.Writer
}

// TableFlags are the engine settings shared by commands that open a table.
type TableFlags struct {
	MaxPages        uint32 `name:"max-pages" help:"Page limit of the table file" default:"100" env:"ROWSTORE_MAX_PAGES"`
	InternalMaxKeys uint32 `name:"internal-max-keys" help:"Keys per internal node before it splits (0 = page capacity)" default:"0" env:"ROWSTORE_INTERNAL_MAX_KEYS"`
}

func (f TableFlags) options(readOnly bool) rowstore.Options {
	return rowstore.Options{
		MaxPages:        f.MaxPages,
		InternalMaxKeys: f.InternalMaxKeys,
		ReadOnly:        readOnly,
	}
}

// OpenCmd runs the command loop.
type OpenCmd struct {
	Path string `arg:"" help:"Table file (created if missing)" type:"path"`
	TableFlags
}

func (c *OpenCmd) Run(env *Env) (err error) {
	table, err := rowstore.OpenWithOptions(c.Path, c.options(false))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := table.Close(); err == nil {
			err = closeErr
		}
	}()

	return repl.Run(env.Ctx, table, env.In, env.Out)
}

// CheckCmd verifies a table file.
type CheckCmd struct {
	Path string `arg:"" help:"Table file" type:"existingfile"`
	JSON bool   `help:"Print statistics as JSON"`
	TableFlags
}

func (c *CheckCmd) Run(env *Env) error {
	table, err := rowstore.OpenWithOptions(c.Path, c.options(true))
	if err != nil {
		return err
	}
	defer table.Close()

	stats, err := table.Stats()
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(env.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	fmt.Fprintf(env.Out, "ok: %d rows, %d pages (limit %d), depth %d, %d leaves, %d internal, root page %d\n",
		stats.Rows, stats.Pages, stats.MaxPages, stats.Depth, stats.Leaves, stats.Internal, stats.Root)
	return nil
}

// SnapshotSaveCmd writes a snapshot.
type SnapshotSaveCmd struct {
	Path string `arg:"" help:"Table file" type:"existingfile"`
	Out  string `arg:"" help:"Snapshot output path" type:"path"`
}

func (c *SnapshotSaveCmd) Run(env *Env) error {
	m, err := snapshot.SaveFile(c.Path, c.Out)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(env.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// SnapshotRestoreCmd restores a snapshot.
type SnapshotRestoreCmd struct {
	In     string `arg:"" help:"Snapshot file" type:"existingfile"`
	Path   string `arg:"" help:"Table file to restore into" type:"path"`
	BLAKE3 string `name:"blake3" help:"Expected BLAKE3 digest (hex) of the table file"`
	Force  bool   `help:"Replace an existing table file"`
	TableFlags
}

func (c *SnapshotRestoreCmd) Run(env *Env) error {
	if _, err := os.Stat(c.Path); err == nil && !c.Force {
		return fmt.Errorf("%s exists; use --force to replace it", c.Path)
	}

	m, err := snapshot.RestoreFile(c.In, c.Path, c.BLAKE3)
	if err != nil {
		return err
	}

	table, err := rowstore.OpenWithOptions(c.Path, c.options(true))
	if err != nil {
		return fmt.Errorf("restored file does not open: %w", err)
	}
	defer table.Close()
	if err := table.Check(); err != nil {
		return fmt.Errorf("restored file failed check: %w", err)
	}

	fmt.Fprintf(env.Out, "restored %d pages to %s (blake3 %s)\n", m.Pages, c.Path, m.BLAKE3)
	return nil
}

// ExportCmd copies rows into SQLite.
type ExportCmd struct {
	Path string `arg:"" help:"Table file" type:"existingfile"`
	Out  string `arg:"" help:"SQLite database path" type:"path"`
	TableFlags
}

func (c *ExportCmd) Run(env *Env) error {
	table, err := rowstore.OpenWithOptions(c.Path, c.options(true))
	if err != nil {
		return err
	}
	defer table.Close()

	db, err := sqlite.Open(c.Out)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", c.Out, err)
	}
	defer db.Close()

	rows, err := table.Select()
	if err != nil {
		return err
	}
	n, err := sqlite.Export(env.Ctx, db, rows)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "exported %d rows to %s (%s driver)\n", n, c.Out, sqlite.DriverType())
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(env *Env) error {
	info := sqlite.GetInfo()
	fmt.Fprintf(env.Out, "rowstore version %s\n", version)
	fmt.Fprintf(env.Out, "page size %d, default page limit %d\n", rowstore.PageSize, rowstore.DefaultMaxPages)
	fmt.Fprintf(env.Out, "sqlite export driver: %s (%s)\n", info.DriverType, info.Package)
	return nil
}

func newParser(cli *CLI, out io.Writer) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("rowstore"),
		kong.Description("Durable single-table row store"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Writers(out, os.Stderr),
	)
}

// run parses args and executes the selected command.
func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	var cli CLI
	parser, err := newParser(&cli, out)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	logging.InitLogger(logging.ParseLevel(cli.LogLevel), logging.ParseFormat(cli.LogFormat))

	return kctx.Run(&Env{Ctx: ctx, In: in, Out: out})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "rowstore: error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
