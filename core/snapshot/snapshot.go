// Package snapshot saves and restores xz-compressed copies of a table file.
//
// A snapshot is the raw page file run through xz. The Manifest returned by
// Save records the page count and the BLAKE3 digest of the uncompressed
// bytes; Restore checks both before the restored file replaces the target.
package snapshot

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	errs "github.com/FocuswithJustin/rowstore/core/errors"
	"github.com/FocuswithJustin/rowstore/core/rowstore"
	"github.com/FocuswithJustin/rowstore/internal/logging"
)

// Injectable functions for testing
var (
	xzNewWriter = xz.NewWriter
	xzNewReader = xz.NewReader
	osRename    = os.Rename
)

// ErrDigestMismatch is returned by Restore when the restored bytes do not
// match the expected digest.
var ErrDigestMismatch = fmt.Errorf("%w: snapshot digest mismatch", errs.ErrCorrupt)

// Manifest describes the uncompressed content of a snapshot.
type Manifest struct {
	Pages  uint32 `json:"pages"`
	Size   int64  `json:"size"`
	BLAKE3 string `json:"blake3"`
}

// Save streams the table file at dbPath through xz into w. The table must
// not be open for writing while it is saved.
func Save(dbPath string, w io.Writer) (*Manifest, error) {
	f, err := os.Open(dbPath)
	if err != nil {
		return nil, errs.NewIO("open", dbPath, err)
	}
	defer f.Close()

	xw, err := xzNewWriter(w)
	if err != nil {
		return nil, fmt.Errorf("failed to create xz writer: %w", err)
	}

	h := blake3.New()
	size, err := io.Copy(xw, io.TeeReader(f, h))
	if err != nil {
		return nil, fmt.Errorf("failed to compress %s: %w", dbPath, err)
	}
	if err := xw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish xz stream: %w", err)
	}

	m, err := newManifest(size, h)
	if err != nil {
		return nil, err
	}
	logging.Info("snapshot_saved", "path", dbPath, "pages", m.Pages, "blake3", m.BLAKE3)
	return m, nil
}

// SaveFile writes the snapshot of dbPath to outPath.
func SaveFile(dbPath, outPath string) (*Manifest, error) {
	out, err := os.Create(outPath)
	if err != nil {
		return nil, errs.NewIO("create", outPath, err)
	}

	m, err := Save(dbPath, out)
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = errs.NewIO("close", outPath, closeErr)
	}
	if err != nil {
		os.Remove(outPath)
		return nil, err
	}
	return m, nil
}

// Restore decompresses r into dbPath. The content is written to a temporary
// file beside dbPath and renamed into place only after it passes the checks:
// a whole number of pages and, when want is not empty, a BLAKE3 digest equal
// to want (hex).
func Restore(r io.Reader, dbPath, want string) (*Manifest, error) {
	xr, err := xzNewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create xz reader: %w", err)
	}

	dir, base := filepath.Split(dbPath)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".restore-*")
	if err != nil {
		return nil, errs.NewIO("create", dbPath, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	h := blake3.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), xr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}

	m, err := newManifest(size, h)
	if err != nil {
		return nil, err
	}
	if want != "" && !strings.EqualFold(want, m.BLAKE3) {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrDigestMismatch, m.BLAKE3, want)
	}

	if err := tmp.Sync(); err != nil {
		return nil, errs.NewIO("sync", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, errs.NewIO("close", tmpPath, err)
	}
	if err := osRename(tmpPath, dbPath); err != nil {
		return nil, errs.NewIO("rename", dbPath, err)
	}
	committed = true

	logging.Info("snapshot_restored", "path", dbPath, "pages", m.Pages, "blake3", m.BLAKE3)
	return m, nil
}

// RestoreFile restores the snapshot at inPath into dbPath.
func RestoreFile(inPath, dbPath, want string) (*Manifest, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return nil, errs.NewIO("open", inPath, err)
	}
	defer in.Close()
	return Restore(in, dbPath, want)
}

// Digest returns the BLAKE3 digest of the file at path in hex.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errs.NewIO("open", path, err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errs.NewIO("read", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func newManifest(size int64, h *blake3.Hasher) (*Manifest, error) {
	if size%rowstore.PageSize != 0 {
		return nil, errs.NewCorruption(-1, "snapshot size %d is not a multiple of page size %d", size, rowstore.PageSize)
	}
	return &Manifest{
		Pages:  uint32(size / rowstore.PageSize),
		Size:   size,
		BLAKE3: hex.EncodeToString(h.Sum(nil)),
	}, nil
}
