package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/jward/sceneref/internal/model"
)

// File stores the snapshot as a single JSON document. Paths ending in .zst
// are zstd-compressed. A missing file loads as an empty snapshot.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the file location.
func (f *File) Path() string { return f.path }

func (f *File) compressed() bool {
	return strings.EqualFold(filepath.Ext(f.path), ".zst")
}

func (f *File) Load() (Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return NewSnapshot(), nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read cache file: %w", err)
	}

	if f.compressed() {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return Snapshot{}, fmt.Errorf("zstd reader: %w", err)
		}
		defer dec.Close()
		if data, err = dec.DecodeAll(data, nil); err != nil {
			return Snapshot{}, fmt.Errorf("decompress cache file: %w", err)
		}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode cache file: %w", err)
	}
	if snap.Usages == nil {
		snap.Usages = make(map[string][]model.UsageRecord)
	}
	if snap.ModTimes == nil {
		snap.ModTimes = make(map[string]int64)
	}
	return snap, nil
}

// Save writes snap to a temporary file in the same directory and renames it
// over the target, so readers never observe a partial cache.
func (f *File) Save(snap Snapshot) error {
	var buf bytes.Buffer
	var w io.Writer = &buf
	var enc *zstd.Encoder
	if f.compressed() {
		var err error
		enc, err = zstd.NewWriter(&buf)
		if err != nil {
			return fmt.Errorf("zstd writer: %w", err)
		}
		w = enc
	}

	je := json.NewEncoder(w)
	je.SetIndent("", "  ")
	if err := je.Encode(snap); err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			return fmt.Errorf("compress cache: %w", err)
		}
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

func (f *File) Close() error { return nil }
