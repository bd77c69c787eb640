package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

const snapshotName = "snapshot.bin"

// File is a directory-backed Store: one snapshot.bin holding the most
// recent Runtime.Save output, plus a numbered trailing file
// (000000001.msg, 000000002.msg, ...) per transaction recorded since
// then. Replace overwrites the snapshot via a write-to-temp-then-rename
// so a crash mid-write never corrupts the previous snapshot, and removes
// every trailing file that preceded it — the same durable-swap and
// append-then-compact shape as a write-ahead log with periodic
// checkpoints, generalized from newline-delimited JSON records to
// directory-numbered binary ones.
type File struct {
	mu      sync.Mutex
	dir     string
	nextSeq uint64
}

// NewFile opens (creating if necessary) a File store rooted at dir.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "store: creating directory")
	}
	f := &File{dir: dir}
	if err := f.scanNextSeq(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) scanNextSeq() error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return errors.Wrap(err, "store: scanning directory")
	}
	var max uint64
	for _, e := range entries {
		seq, ok := parseTrailingName(e.Name())
		if ok && seq > max {
			max = seq
		}
	}
	f.nextSeq = max
	return nil
}

func trailingName(seq uint64) string {
	return fmt.Sprintf("%09d.msg", seq)
}

func parseTrailingName(name string) (uint64, bool) {
	if !strings.HasSuffix(name, ".msg") {
		return 0, false
	}
	seq, err := strconv.ParseUint(strings.TrimSuffix(name, ".msg"), 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

func (f *File) Latest(ctx context.Context) ([]byte, []Trailing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	snapshot, err := os.ReadFile(filepath.Join(f.dir, snapshotName))
	if err != nil && !os.IsNotExist(err) {
		return nil, nil, errors.Wrap(err, "store: reading snapshot")
	}

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, nil, errors.Wrap(err, "store: scanning directory")
	}
	var seqs []uint64
	for _, e := range entries {
		if seq, ok := parseTrailingName(e.Name()); ok {
			seqs = append(seqs, seq)
		}
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	trailing := make([]Trailing, 0, len(seqs))
	for _, seq := range seqs {
		data, err := os.ReadFile(filepath.Join(f.dir, trailingName(seq)))
		if err != nil {
			return nil, nil, errors.Wrapf(err, "store: reading trailing record %d", seq)
		}
		trailing = append(trailing, Trailing{Seq: seq, Data: data})
	}
	return snapshot, trailing, nil
}

func (f *File) Append(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextSeq++
	path := filepath.Join(f.dir, trailingName(f.nextSeq))
	if err := writeFileSync(path, data); err != nil {
		return errors.Wrap(err, "store: appending trailing record")
	}
	return nil
}

func (f *File) Replace(ctx context.Context, snapshot []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := filepath.Join(f.dir, snapshotName)
	tmp := path + ".tmp"
	if err := writeFileSync(tmp, snapshot); err != nil {
		return errors.Wrap(err, "store: writing snapshot")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "store: installing snapshot")
	}

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return errors.Wrap(err, "store: scanning directory")
	}
	for _, e := range entries {
		if _, ok := parseTrailingName(e.Name()); ok {
			if err := os.Remove(filepath.Join(f.dir, e.Name())); err != nil {
				return errors.Wrap(err, "store: removing superseded trailing record")
			}
		}
	}
	return nil
}

func (f *File) Close() error { return nil }

func writeFileSync(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
