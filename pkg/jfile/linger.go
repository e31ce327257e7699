package jfile

import (
	"fmt"

	"github.com/marmos91/jfile/internal/logger"
	"github.com/marmos91/jfile/pkg/metrics"
	"github.com/marmos91/jfile/pkg/rangelock"
)

// pendingRecord is a commit halted at DURABLE_JOURNAL: the journal
// record is durable, the data-file apply is deferred, and the range
// locks are still held so overlapping writers stay ordered. It carries
// exactly what resuming needs.
type pendingRecord struct {
	id    uint32
	ops   []operation
	tok   *rangelock.Token
	bytes int64
	grew  bool
}

func (f *File) enqueuePending(p *pendingRecord) {
	f.lmu.Lock()
	f.pending = append(f.pending, p)
	f.pendingBytes += p.bytes
	records, bytes := len(f.pending), f.pendingBytes
	f.lmu.Unlock()

	metrics.SetLingering(f.met, records, bytes)
	f.kickAutosync(bytes)
}

// drainPending resumes every halted record in commit order, finishing
// each from DURABLE_JOURNAL to DONE. On a failure the unfinished tail is
// requeued; the failed record's journal entry stays behind for recovery.
func (f *File) drainPending() error {
	f.lmu.Lock()
	pending := f.pending
	f.pending = nil
	f.pendingBytes = 0
	f.lmu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	var drained int64
	for i, p := range pending {
		if err := f.resume(p); err != nil {
			// Keep the failed record too: its journal entry and locks are
			// intact, so a later Sync can retry it.
			f.requeue(pending[i:])
			return fmt.Errorf("%w: resume record %d: %w", ErrAtomicBroken, p.id, err)
		}
		drained += p.bytes
	}

	f.lmu.Lock()
	records, bytes := len(f.pending), f.pendingBytes
	f.lmu.Unlock()
	metrics.SetLingering(f.met, records, bytes)

	logger.Debug("lingering records drained",
		logger.KeyFile, f.name,
		logger.KeyRecords, len(pending), logger.KeyBytes, drained)
	return nil
}

// resume finishes one halted commit: apply, data barrier, record
// removal, lock release.
func (f *File) resume(p *pendingRecord) error {
	if err := f.applyData(p.ops, -1, p.grew); err != nil {
		// The locks stay with the requeued record.
		return err
	}
	if err := f.dir.Remove(p.id); err != nil {
		return err
	}
	return p.tok.Unlock()
}

func (f *File) requeue(rest []*pendingRecord) {
	f.lmu.Lock()
	f.pending = append(rest, f.pending...)
	for _, p := range rest {
		f.pendingBytes += p.bytes
	}
	records, bytes := len(f.pending), f.pendingBytes
	f.lmu.Unlock()
	metrics.SetLingering(f.met, records, bytes)
}
