// Package persist implements the on-disk index format (spec.md §4.9,
// §6.2): a `hash(canonical_root + extension-set).ext`-named file whose
// body is `"LZ4S"` magic bytes followed by an LZ4 frame of a
// msgpack-serialized index (Go's closest pack-grounded analogue of the
// original's bincode), with a legacy raw-msgpack fallback for files
// written before the LZ4S framing existed.
package persist

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// magic tags the LZ4-framed format; files without this prefix are
// treated as raw, legacy msgpack.
var magic = [4]byte{'L', 'Z', '4', 'S'}

// Kind selects the on-disk file extension for one of the four index
// families (spec.md §6.2).
type Kind string

const (
	KindFileList      Kind = "file-list"
	KindWordSearch    Kind = "word-search"
	KindCodeStructure Kind = "code-structure"
	KindGitHistory    Kind = "git-history"
)

// FileName computes the deterministic on-disk name for an index: the
// hash of the canonical root plus the normalized extension set.
func FileName(canonicalRoot string, extensions []string, kind Kind) string {
	norm := append([]string(nil), extensions...)
	sort.Strings(norm)
	key := canonicalRoot + "\x00" + strings.Join(norm, ",")
	h := xxhash.Sum64String(key)
	return strconv.FormatUint(h, 16) + "." + string(kind)
}

// Save writes value (msgpack-encoded, then LZ4-framed, then "LZ4S"
// magic-prefixed) to dir/name atomically via temp-file + rename.
func Save(dir, name string, value any) error {
	payload, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("persist: marshal: %w", err)
	}

	var compressed bytes.Buffer
	zw := lz4.NewWriter(&compressed)
	if _, err := zw.Write(payload); err != nil {
		return fmt.Errorf("persist: lz4 write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("persist: lz4 close: %w", err)
	}

	var out bytes.Buffer
	out.Write(magic[:])
	out.Write(compressed.Bytes())

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("persist: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("persist: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(out.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("persist: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("persist: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("persist: rename: %w", err)
	}
	return nil
}

// Load reads dir/name and decodes it into dst. Files beginning with the
// "LZ4S" magic are decompressed first; files without it are treated as
// raw legacy msgpack.
func Load(dir, name string, dst any) error {
	raw, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	payload := raw
	if len(raw) >= 4 && bytes.Equal(raw[:4], magic[:]) {
		zr := lz4.NewReader(bytes.NewReader(raw[4:]))
		decoded, err := io.ReadAll(zr)
		if err != nil {
			return fmt.Errorf("persist: lz4 decompress: %w", err)
		}
		payload = decoded
	}
	if err := msgpack.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("persist: unmarshal: %w", err)
	}
	return nil
}

// Exists reports whether dir/name is present.
func Exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

// DataDir returns the platform data directory indexes live under
// (spec.md §6.3). os.UserCacheDir resolves to the platform-appropriate
// base (`%LOCALAPPDATA%` on Windows, `~/Library/Caches` on macOS,
// `~/.cache` on Linux/XDG) — close enough to the spec's named
// directories that no third-party "platform dirs" dependency appears
// anywhere in the retrieved corpus to justify pulling one in.
func DataDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("persist: resolve data dir: %w", err)
	}
	return filepath.Join(base, "codelens"), nil
}
