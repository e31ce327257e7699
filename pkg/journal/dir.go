// Package journal owns the on-disk journal that sits next to a data file:
// the directory holding one record file per live transaction, the ID
// counter, and the binary record codec.
//
// Directory layout:
//
//	<dir>/seq    last allocated transaction ID, fixed-width decimal
//	<dir>/lock   held exclusively (flock) for the life of an open handle
//	<dir>/<id>   one record file per live transaction, decimal name
package journal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/marmos91/jfile/internal/fsio"
)

const (
	counterName = "seq"
	lockName    = "lock"

	// counterWidth keeps the counter file a fixed size so rewrites never
	// shrink it.
	counterWidth = 10

	dirPerm  = 0o750
	filePerm = 0o640
)

var (
	// ErrBusy is returned when another handle already holds the journal
	// directory lock.
	ErrBusy = errors.New("journal directory is in use by another handle")

	// ErrNoCounter is returned when record files survive but the counter
	// file is gone. Guessing the next ID could reuse a live one, so the
	// open is refused instead.
	ErrNoCounter = errors.New("journal has records but no counter file")
)

// Dir is an open journal directory. It allocates record IDs, materialises
// record paths, and enumerates survivors for recovery. The directory lock
// is held from Open to Close.
type Dir struct {
	path    string
	lockf   *os.File
	counter *os.File

	mu     sync.Mutex
	lastID uint32
}

// Open creates the journal directory and its counter file if missing and
// takes the exclusive directory lock. A directory already locked by
// another handle yields ErrBusy.
func Open(path string) (*Dir, error) {
	if err := os.MkdirAll(path, dirPerm); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	lockf, err := os.OpenFile(filepath.Join(path, lockName), os.O_CREATE|os.O_RDWR, filePerm)
	if err != nil {
		return nil, fmt.Errorf("open journal lock file: %w", err)
	}
	if err := fsio.TryLockFile(lockf); err != nil {
		lockf.Close()
		if errors.Is(err, fsio.ErrLocked) {
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("lock journal directory: %w", err)
	}

	d := &Dir{path: path, lockf: lockf}
	if err := d.openCounter(); err != nil {
		fsio.UnlockFile(lockf)
		lockf.Close()
		return nil, err
	}
	return d, nil
}

func (d *Dir) openCounter() error {
	cpath := filepath.Join(d.path, counterName)

	if _, err := os.Stat(cpath); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("stat counter file: %w", err)
		}
		// A fresh journal starts at zero. If records exist without a
		// counter the directory has been tampered with; refuse.
		ids, lerr := d.ListIDs()
		if lerr != nil {
			return lerr
		}
		if len(ids) > 0 {
			return ErrNoCounter
		}
		if werr := os.WriteFile(cpath, counterBytes(0), filePerm); werr != nil {
			return fmt.Errorf("create counter file: %w", werr)
		}
		if serr := fsio.DirSync(d.path); serr != nil {
			return fmt.Errorf("sync journal directory: %w", serr)
		}
	}

	counter, err := os.OpenFile(cpath, os.O_RDWR, filePerm)
	if err != nil {
		return fmt.Errorf("open counter file: %w", err)
	}

	last, err := readCounter(counter)
	if err != nil {
		counter.Close()
		return err
	}

	d.counter = counter
	d.lastID = last
	return nil
}

// Path returns the journal directory path.
func (d *Dir) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path
}

// NextID allocates the next transaction ID: monotone, never reused within
// an open session, serialised across processes by an exclusive lock on the
// counter file.
func (d *Dir) NextID() (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := fsio.LockFile(d.counter); err != nil {
		return 0, fmt.Errorf("lock counter file: %w", err)
	}
	defer fsio.UnlockFile(d.counter)

	last, err := readCounter(d.counter)
	if err != nil {
		return 0, err
	}
	// A peer process may have advanced the counter past our cached value.
	if d.lastID > last {
		last = d.lastID
	}

	id := last + 1
	if _, err := fsio.WriteFullAt(d.counter, counterBytes(id), 0); err != nil {
		return 0, fmt.Errorf("write counter file: %w", err)
	}
	d.lastID = id
	return id, nil
}

// PathFor returns the record file path for id.
func (d *Dir) PathFor(id uint32) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return filepath.Join(d.path, strconv.FormatUint(uint64(id), 10))
}

// ListIDs enumerates surviving record files, numeric ascending so replay
// preserves commit order. Non-numeric names (counter, lock) are skipped.
func (d *Dir) ListIDs() ([]uint32, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("read journal directory: %w", err)
	}

	var ids []uint32
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n, err := strconv.ParseUint(e.Name(), 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint32(n))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Remove unlinks a record file and fsyncs the directory so the unlink is
// durable.
func (d *Dir) Remove(id uint32) error {
	if err := os.Remove(d.PathFor(id)); err != nil {
		return err
	}
	return fsio.DirSync(d.Path())
}

// SyncDir fsyncs the journal directory itself. Called after a record file
// is created so the name is durable before the commit point.
func (d *Dir) SyncDir() error {
	return fsio.DirSync(d.Path())
}

// MoveTo relocates the journal to newpath: the counter and every live
// record are renamed across, the old directory is removed, and the
// directory lock moves to the new location. The caller must be quiesced.
func (d *Dir) MoveTo(newpath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(newpath, dirPerm); err != nil {
		return fmt.Errorf("create journal directory: %w", err)
	}

	newLock, err := os.OpenFile(filepath.Join(newpath, lockName), os.O_CREATE|os.O_RDWR, filePerm)
	if err != nil {
		return fmt.Errorf("open journal lock file: %w", err)
	}
	if err := fsio.TryLockFile(newLock); err != nil {
		newLock.Close()
		if errors.Is(err, fsio.ErrLocked) {
			return ErrBusy
		}
		return fmt.Errorf("lock journal directory: %w", err)
	}

	ids, err := d.ListIDs()
	if err != nil {
		newLock.Close()
		return err
	}

	rename := func(name string) error {
		return os.Rename(filepath.Join(d.path, name), filepath.Join(newpath, name))
	}
	if err := rename(counterName); err != nil {
		newLock.Close()
		return fmt.Errorf("move counter file: %w", err)
	}
	for _, id := range ids {
		if err := rename(strconv.FormatUint(uint64(id), 10)); err != nil {
			newLock.Close()
			return fmt.Errorf("move record %d: %w", id, err)
		}
	}
	if err := fsio.DirSync(newpath); err != nil {
		newLock.Close()
		return fmt.Errorf("sync journal directory: %w", err)
	}

	// Reopen the counter at its new home before tearing the old one down.
	oldPath := d.path
	oldLock := d.lockf
	d.counter.Close()

	d.path = newpath
	d.lockf = newLock
	if err := d.openCounter(); err != nil {
		return err
	}

	os.Remove(filepath.Join(oldPath, lockName))
	fsio.UnlockFile(oldLock)
	oldLock.Close()
	if err := os.Remove(oldPath); err != nil {
		return fmt.Errorf("remove old journal directory: %w", err)
	}
	return nil
}

// Close releases the directory lock and closes the counter. The lock file
// is removed so a cleanly closed journal holds only the counter.
func (d *Dir) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var first error
	if d.counter != nil {
		if err := d.counter.Close(); err != nil && first == nil {
			first = err
		}
		d.counter = nil
	}
	if d.lockf != nil {
		os.Remove(filepath.Join(d.path, lockName))
		if err := fsio.UnlockFile(d.lockf); err != nil && first == nil {
			first = err
		}
		if err := d.lockf.Close(); err != nil && first == nil {
			first = err
		}
		d.lockf = nil
	}
	return first
}

func counterBytes(id uint32) []byte {
	return []byte(fmt.Sprintf("%0*d\n", counterWidth, id))
}

func readCounter(f *os.File) (uint32, error) {
	buf := make([]byte, counterWidth)
	n, err := fsio.ReadFullAt(f, buf, 0)
	if err != nil {
		return 0, fmt.Errorf("read counter file: %w", err)
	}
	if n == 0 {
		// Zero-length counter: treat as a fresh journal.
		return 0, nil
	}
	v, err := strconv.ParseUint(string(buf[:n]), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse counter file: %w", err)
	}
	return uint32(v), nil
}
