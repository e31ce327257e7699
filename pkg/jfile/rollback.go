package jfile

import (
	"github.com/marmos91/jfile/internal/fsio"
	"github.com/marmos91/jfile/internal/logger"
	"github.com/marmos91/jfile/pkg/rangelock"
)

// Rollback atomically undoes a committed transaction: a new transaction
// is built from the captured pre-images (reversed, so inner overlaps
// unwind in the right order), committed eagerly, and, when the original
// grew the file, finished with a truncate back to the original length.
//
// Rollback is rejected for transactions that never committed, committed
// without rollback information, or were already rolled back. The return
// discipline matches Commit.
func (t *Transaction) Rollback() (int64, error) {
	f := t.f
	if f.flags&ReadOnly != 0 {
		return 0, ErrReadOnly
	}
	if !t.committed {
		return 0, ErrNotCommitted
	}
	if t.rolledBack || !t.preCaptured {
		return 0, ErrRollbackUnavailable
	}

	rt := &Transaction{
		f:           f,
		rollbacking: true,
		noRollback:  true,
		truncateTo:  -1,
	}
	for i := len(t.ops) - 1; i >= 0; i-- {
		op := t.ops[i]
		if len(op.pre) == 0 {
			// Entirely past the old EOF; the truncate below removes it.
			continue
		}
		rt.ops = append(rt.ops, operation{data: op.pre, off: op.off})
	}
	if t.grew {
		rt.truncateTo = t.origSize
	}

	if len(rt.ops) == 0 {
		// Nothing existed before the transaction: the whole undo is a
		// truncate back to the original size, no journal record needed.
		if err := f.truncateLocked(t.origSize); err != nil {
			return 0, preserved("truncate data file", err)
		}
		t.rolledBack = true
		return 0, nil
	}

	n, err := f.commit(rt)
	if err != nil {
		return n, err
	}
	t.rolledBack = true

	logger.Debug("transaction rolled back",
		logger.KeyFile, f.name, logger.KeyTxID, t.id, logger.KeyBytes, n)
	return n, nil
}

// truncateLocked shrinks or grows the file to size under the grow
// sentinel and makes the new length durable.
func (f *File) truncateLocked(size int64) error {
	var tok *rangelock.Token
	if f.flags&NoLock == 0 {
		var err error
		tok, err = f.locks.Lock([]rangelock.Extent{{Off: rangelock.GrowOffset, Len: 1}})
		if err != nil {
			return err
		}
		defer tok.Unlock()
	}
	if err := f.f.Truncate(size); err != nil {
		return err
	}
	return fsio.Fdatasync(f.f)
}
