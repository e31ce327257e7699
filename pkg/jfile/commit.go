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
	"github.com/marmos91/jfile/pkg/rangelock"
)

// Commit writes every operation added to the transaction to disk as one
// atomic unit, in insertion order.
//
// On success the returned count is the total new bytes now durable. On
// failure the error wraps one of two classes the caller must keep apart:
// ErrAtomicPreserved means nothing changed on disk, ErrAtomicBroken means
// the commit point was passed and a recovery pass will finish the apply.
//
// With the Linger handle flag, Commit returns once the journal record is
// durable; the data file catches up on the next Sync. The journal alone
// carries the durability guarantee at that point.
func (t *Transaction) Commit() (int64, error) {
	start := time.Now()
	n, err := t.f.commit(t)

	outcome := metrics.OutcomeCommitted
	switch {
	case err == nil:
	case isBroken(err):
		outcome = metrics.OutcomeBroken
	default:
		outcome = metrics.OutcomePreserved
	}
	metrics.ObserveCommit(t.f.met, outcome, n, time.Since(start))
	return n, err
}

func isBroken(err error) bool {
	return errors.Is(err, ErrAtomicBroken)
}

// commit drives the state machine:
//
//	STAGED -> LOCKED -> JOURNALED -> DURABLE_JOURNAL -> APPLIED
//	       -> DATA_DURABLE -> DONE
//
// Failures before the committed bit is durable unwind to nothing;
// failures after leave the journal for recovery. Lingering transactions
// halt at DURABLE_JOURNAL, keeping their range locks until resumed.
func (f *File) commit(t *Transaction) (int64, error) {
	if f.flags&ReadOnly != 0 {
		return 0, ErrReadOnly
	}
	if t.committed {
		return 0, ErrTransactionDone
	}
	if len(t.ops) == 0 {
		return 0, ErrEmptyTransaction
	}

	// LOCKED: take the union of the touched extents, ascending. A write
	// past the current end also takes the grow sentinel.
	var tok *rangelock.Token
	unlockOnErr := func() {
		if tok != nil {
			tok.Unlock()
		}
	}
	if f.flags&NoLock == 0 {
		size, err := fsio.Size(f.f)
		if err != nil {
			return 0, preserved("stat data file", err)
		}
		ext := t.extents()
		if t.maxEnd() > size || t.truncateTo >= 0 {
			ext = append(ext, rangelock.Extent{Off: rangelock.GrowOffset, Len: 1})
		}
		tok, err = f.locks.Lock(ext)
		if err != nil {
			return 0, preserved("lock ranges", err)
		}
	}

	// The authoritative size is the one observed under the locks.
	size, err := fsio.Size(f.f)
	if err != nil {
		unlockOnErr()
		return 0, preserved("stat data file", err)
	}
	t.origSize = size
	t.grew = t.maxEnd() > size

	// JOURNALED: stage the record.
	id, err := f.dir.NextID()
	if err != nil {
		unlockOnErr()
		return 0, preserved("allocate transaction id", err)
	}
	path := f.dir.PathFor(id)
	jf, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o640)
	if err != nil {
		unlockOnErr()
		return 0, preserved("create journal record", err)
	}
	discardStaged := func() {
		jf.Close()
		os.Remove(path)
		f.dir.SyncDir()
		unlockOnErr()
	}

	if !t.noRollback {
		if err := f.capturePreImages(t, size); err != nil {
			discardStaged()
			return 0, preserved("capture pre-images", err)
		}
	}

	rec := t.record(id)
	if err := journal.Write(jf, rec); err != nil {
		discardStaged()
		return 0, preserved("write journal record", err)
	}
	if err := f.dir.SyncDir(); err != nil {
		discardStaged()
		return 0, preserved("sync journal directory", err)
	}

	// DURABLE_JOURNAL: flipping the committed bit is the commit point.
	// From here on the journal record must survive any failure.
	if err := journal.MarkCommitted(jf, rec); err != nil {
		jf.Close()
		unlockOnErr()
		return 0, broken(id, "mark record committed", err)
	}

	bytes := t.dataBytes()
	t.committed = true
	t.id = id

	if f.flags&Linger != 0 && !t.rollbacking {
		jf.Close()
		f.enqueuePending(&pendingRecord{
			id:    id,
			ops:   t.ops,
			tok:   tok,
			bytes: bytes,
			grew:  t.grew,
		})
		logger.Debug("transaction lingering",
			logger.KeyFile, f.name, logger.KeyTxID, id, logger.KeyBytes, bytes)
		return bytes, nil
	}

	// APPLIED -> DATA_DURABLE.
	if err := f.applyData(t.ops, t.truncateTo, t.grew); err != nil {
		jf.Close()
		unlockOnErr()
		return 0, broken(id, "apply to data file", err)
	}

	if t.rollbacking {
		if err := journal.UpdateFlags(jf, rec, rec.Flags|journal.FlagRollbacked); err != nil {
			jf.Close()
			unlockOnErr()
			return 0, broken(id, "mark record rollbacked", err)
		}
	}
	jf.Close()

	// DONE: the data is durable, the record can go.
	if err := f.dir.Remove(id); err != nil {
		unlockOnErr()
		return 0, broken(id, "remove journal record", err)
	}
	if tok != nil {
		tok.Unlock()
	}

	logger.Debug("transaction committed",
		logger.KeyFile, f.name, logger.KeyTxID, id,
		logger.KeyOps, len(t.ops), logger.KeyBytes, bytes)
	return bytes, nil
}

// capturePreImages reads the bytes each operation replaces. Extents past
// EOF capture what exists and remember the shortfall through origSize.
func (f *File) capturePreImages(t *Transaction, size int64) error {
	for i := range t.ops {
		op := &t.ops[i]
		if op.off >= size {
			op.pre = nil
			continue
		}
		n := int64(len(op.data))
		if op.off+n > size {
			n = size - op.off
		}
		pre := make([]byte, n)
		if _, err := fsio.ReadFullAt(f.f, pre, op.off); err != nil {
			return fmt.Errorf("read pre-image at %d: %w", op.off, err)
		}
		op.pre = pre
	}
	t.preCaptured = true
	return nil
}

// record builds the on-disk form of the transaction.
func (t *Transaction) record(id uint32) *journal.Record {
	var flags uint32
	if !t.preCaptured {
		flags |= journal.FlagNoRollback
	}
	if t.rollbacking {
		flags |= journal.FlagRollbacking
	}

	ops := make([]journal.Op, len(t.ops))
	for i, op := range t.ops {
		ops[i] = journal.Op{Data: op.data, Offset: op.off, Pre: op.pre}
	}
	return &journal.Record{ID: id, Flags: flags, Ops: ops}
}

// applyData writes the operations to the data file in insertion order
// (later operations win on overlap) and forces them to stable storage.
// Length changes flush metadata too; pure overwrites only need the
// touched range.
func (f *File) applyData(ops []operation, truncateTo int64, grew bool) error {
	lo, hi := int64(-1), int64(0)
	for _, op := range ops {
		if _, err := fsio.WriteFullAt(f.f, op.data, op.off); err != nil {
			return fmt.Errorf("write data at %d: %w", op.off, err)
		}
		if lo < 0 || op.off < lo {
			lo = op.off
		}
		if end := op.off + int64(len(op.data)); end > hi {
			hi = end
		}
	}

	if truncateTo >= 0 {
		if err := f.f.Truncate(truncateTo); err != nil {
			return fmt.Errorf("truncate data file: %w", err)
		}
	}

	if grew || truncateTo >= 0 {
		if err := fsio.Fdatasync(f.f); err != nil {
			return fmt.Errorf("sync data file: %w", err)
		}
		return nil
	}
	if lo < 0 {
		return nil
	}
	if err := f.syncer.SyncRange(f.f, lo, hi-lo); err != nil {
		return fmt.Errorf("sync data range: %w", err)
	}
	return nil
}

// preserved wraps a failure on the unwind path: nothing reached the data
// file and the partial record is gone.
func preserved(stage string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrAtomicPreserved, stage, err)
}

// broken wraps a failure past the commit point: the journal record stays
// behind for recovery.
func broken(id uint32, stage string, err error) error {
	return fmt.Errorf("%w: record %d: %s: %w", ErrAtomicBroken, id, stage, err)
}
