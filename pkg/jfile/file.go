package jfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/marmos91/jfile/internal/fsio"
	"github.com/marmos91/jfile/internal/logger"
	"github.com/marmos91/jfile/pkg/journal"
	"github.com/marmos91/jfile/pkg/metrics"
	"github.com/marmos91/jfile/pkg/rangelock"
)

// File binds an open data file to its journal directory, range lock
// manager and lingering queue. All public operations go through it.
//
// Operations on distinct Files are always safe concurrently. On one File,
// transactions may commit from different goroutines; the stream-style
// Read/Write/Seek calls share a position and serialise on an internal
// mutex.
type File struct {
	name  string
	flags Flags

	f      *os.File
	dir    *journal.Dir // nil on read-only handles
	locks  *rangelock.Manager
	syncer fsio.Syncer
	met    metrics.Journal

	mu     sync.Mutex // stream position and closed state
	pos    int64
	closed bool

	lmu          sync.Mutex // lingering queue
	pending      []*pendingRecord
	pendingBytes int64

	amu  sync.Mutex // autosync task
	auto *autosync
}

type options struct {
	journalDir string
	met        metrics.Journal
	metSet     bool
}

// Option adjusts Open and Fsck behaviour.
type Option func(*options)

// WithJournalDir overrides the default journal directory location
// (a hidden sibling directory derived from the data file's name).
func WithJournalDir(path string) Option {
	return func(o *options) { o.journalDir = path }
}

// WithMetrics sets the metrics sink for the handle. Without it the
// handle uses the process registry if metrics are enabled.
func WithMetrics(m metrics.Journal) Option {
	return func(o *options) { o.met = m; o.metSet = true }
}

// DefaultJournalDir returns where the journal for name lives unless
// overridden: a hidden directory next to the file.
func DefaultJournalDir(name string) string {
	abs, err := filepath.Abs(name)
	if err != nil {
		abs = name
	}
	return filepath.Join(filepath.Dir(abs), "."+filepath.Base(abs)+".jfile")
}

// Open opens or creates the data file at name with the given open flags
// and permissions, sets up the journal directory, and runs the recovery
// pass unless the handle is read-only.
//
// Journaled writes need both directions on the descriptor, so for
// writable handles the open flags are adjusted to O_RDWR.
func Open(name string, flag int, perm os.FileMode, jflags Flags, opts ...Option) (*File, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	readonly := jflags&ReadOnly != 0
	if !readonly {
		flag = (flag &^ os.O_WRONLY) | os.O_RDWR
	}

	df, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}

	f := &File{
		name:   name,
		flags:  jflags,
		f:      df,
		locks:  rangelock.New(df),
		syncer: fsio.NewSyncer(),
	}
	if o.metSet {
		f.met = o.met
	} else {
		f.met = metrics.NewJournalMetrics()
	}

	if readonly {
		return f, nil
	}

	jdir := o.journalDir
	if jdir == "" {
		jdir = DefaultJournalDir(name)
	}
	dir, err := journal.Open(jdir)
	if err != nil {
		df.Close()
		return nil, err
	}
	f.dir = dir

	res, err := recoverRecords(df, dir, f.met)
	if err != nil {
		dir.Close()
		df.Close()
		return nil, fmt.Errorf("recover journal: %w", err)
	}
	if res.Total > 0 {
		logger.Info("journal recovery at open",
			logger.KeyFile, name,
			logger.KeyRecords, res.Total,
			"reapplied", res.Reapplied,
			"discarded", res.Total-res.Reapplied-res.ApplyError)
	}

	return f, nil
}

// Name returns the data file path the handle was opened with.
func (f *File) Name() string { return f.name }

// Size returns the current length of the data file.
func (f *File) Size() (int64, error) {
	return fsio.Size(f.f)
}

// Sync drains the lingering queue: every journal record whose data-file
// apply was deferred is applied, made durable and cleaned. A no-op
// without lingering records.
func (f *File) Sync() error {
	return f.drainPending()
}

// Close flushes lingering records, stops autosync, releases the journal
// directory and closes the data file. A handle closed with no in-flight
// work leaves the journal directory holding only its counter.
func (f *File) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.closed = true
	f.mu.Unlock()

	var first error

	f.amu.Lock()
	auto := f.auto
	f.amu.Unlock()
	if auto != nil {
		if err := f.AutosyncStop(); err != nil && first == nil {
			first = err
		}
	}

	if err := f.drainPending(); err != nil && first == nil {
		first = err
	}
	if f.dir != nil {
		if err := f.dir.Close(); err != nil && first == nil {
			first = err
		}
	}
	if err := f.f.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// MoveJournal relocates the journal directory to newpath. The handle must
// be quiesced: no lingering records and no running autosync.
func (f *File) MoveJournal(newpath string) error {
	if f.flags&ReadOnly != 0 {
		return ErrReadOnly
	}

	f.amu.Lock()
	running := f.auto != nil
	f.amu.Unlock()
	f.lmu.Lock()
	pending := len(f.pending)
	f.lmu.Unlock()
	if running || pending > 0 {
		return ErrNotQuiesced
	}

	if err := f.dir.MoveTo(newpath); err != nil {
		return err
	}
	logger.Info("journal moved", logger.KeyFile, f.name, logger.KeyJournal, newpath)
	return nil
}

// ErrJournalBusy is returned by Open and Fsck when another handle holds
// the journal directory lock.
var ErrJournalBusy = journal.ErrBusy
