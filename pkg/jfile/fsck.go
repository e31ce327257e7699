package jfile

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/marmos91/jfile/internal/fsio"
	"github.com/marmos91/jfile/internal/logger"
	"github.com/marmos91/jfile/pkg/journal"
	"github.com/marmos91/jfile/pkg/metrics"
)

// FsckResult is the outcome of one recovery pass, by record class.
type FsckResult struct {
	// Total record files processed
	Total int

	// Invalid records (semantic violations)
	Invalid int

	// InProgress records (valid, committed bit clear)
	InProgress int

	// Broken records (truncated or unreadable)
	Broken int

	// Corrupt records (magic or checksum mismatch)
	Corrupt int

	// ApplyError counts committed records whose re-apply failed
	ApplyError int

	// Reapplied counts committed records re-applied to the data file
	Reapplied int
}

// Fsck checks and repairs the journal of the data file at name. With an
// empty jdir the default journal location is used.
//
// Every surviving record is classified; committed ones are re-applied to
// the data file and removed, everything else is counted and removed.
// The pass is idempotent: a committed record replays the same bytes to
// the same offsets every time.
//
// Errors: ErrNoFile when the data file is missing, ErrNoJournal when the
// journal directory is missing or holds no records, ErrJournalBusy when
// an open handle owns the journal.
func Fsck(name, jdir string, opts ...Option) (*FsckResult, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	met := o.met
	if !o.metSet {
		met = metrics.NewJournalMetrics()
	}

	if jdir == "" {
		jdir = DefaultJournalDir(name)
	}

	if _, err := os.Stat(name); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoFile, name)
	}
	if fi, err := os.Stat(jdir); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNoJournal, jdir)
	}

	dir, err := journal.Open(jdir)
	if err != nil {
		return nil, err
	}
	defer dir.Close()

	ids, err := dir.ListIDs()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoJournal, jdir)
	}

	df, err := os.OpenFile(name, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer df.Close()

	return recoverRecords(df, dir, met)
}

// recoverRecords runs the recovery pass over an already-locked journal
// directory. Shared by Fsck and the implicit pass inside Open. Replayed
// records may change the file length, so the barrier is always a full
// fdatasync rather than a range sync.
func recoverRecords(df *os.File, dir *journal.Dir, met metrics.Journal) (*FsckResult, error) {
	start := time.Now()

	ids, err := dir.ListIDs()
	if err != nil {
		return nil, err
	}

	res := &FsckResult{}
	for _, id := range ids {
		res.Total++
		rec, err := journal.Read(dir.PathFor(id))

		switch {
		case errors.Is(err, journal.ErrBroken):
			res.Broken++
		case errors.Is(err, journal.ErrCorrupt):
			res.Corrupt++
		case errors.Is(err, journal.ErrInvalid):
			res.Invalid++
		case err != nil:
			res.Broken++
		case rec.ID != id:
			// Record content disagrees with its file name.
			res.Invalid++
		case !rec.Committed():
			res.InProgress++
		default:
			if err := reapply(df, rec); err != nil {
				logger.Warn("recovery could not re-apply record",
					logger.KeyTxID, id, logger.KeyError, err)
				res.ApplyError++
				// The record stays behind so a later pass can retry.
				continue
			}
			if err := dir.Remove(id); err != nil {
				logger.Warn("recovery could not remove record",
					logger.KeyTxID, id, logger.KeyError, err)
				res.ApplyError++
				continue
			}
			res.Reapplied++
			continue
		}

		// Discarded classes: count, then unlink.
		if err := dir.Remove(id); err != nil {
			logger.Warn("recovery could not remove record",
				logger.KeyTxID, id, logger.KeyError, err)
		}
	}

	metrics.AddRecovered(met, "reapplied", res.Reapplied)
	metrics.AddRecovered(met, "in_progress", res.InProgress)
	metrics.AddRecovered(met, "broken", res.Broken)
	metrics.AddRecovered(met, "corrupt", res.Corrupt)
	metrics.AddRecovered(met, "invalid", res.Invalid)
	metrics.AddRecovered(met, "apply_error", res.ApplyError)

	if res.Total > 0 {
		logger.Info("recovery pass finished",
			logger.KeyJournal, dir.Path(),
			logger.KeyRecords, res.Total,
			"reapplied", res.Reapplied,
			"in_progress", res.InProgress,
			"broken", res.Broken,
			"corrupt", res.Corrupt,
			"invalid", res.Invalid,
			"apply_errors", res.ApplyError,
			logger.KeyDurationMs, float64(time.Since(start).Microseconds())/1000.0)
	}
	return res, nil
}

// reapply writes a committed record's new bytes back to the data file
// and makes them durable.
func reapply(df *os.File, rec *journal.Record) error {
	for _, op := range rec.Ops {
		if _, err := fsio.WriteFullAt(df, op.Data, op.Offset); err != nil {
			return fmt.Errorf("write data at %d: %w", op.Offset, err)
		}
	}
	if err := fsio.Fdatasync(df); err != nil {
		return fmt.Errorf("sync data file: %w", err)
	}
	return nil
}
