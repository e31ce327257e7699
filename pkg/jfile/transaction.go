package jfile

import (
	"fmt"

	"github.com/marmos91/jfile/pkg/rangelock"
)

// operation is one positional write staged in a transaction. pre holds
// the bytes the write replaces, captured at commit time; near EOF it is
// shorter than data, and for writes entirely past EOF it is empty.
type operation struct {
	data []byte
	off  int64
	pre  []byte
}

// Transaction is a batched set of positional writes committed as one
// durable, atomic unit.
//
// A transaction is single-owner: it must not be used from two goroutines
// at once. Different transactions of the same File commit concurrently;
// the range locks order the ones that overlap.
type Transaction struct {
	f   *File
	ops []operation

	committed  bool
	rolledBack bool
	id         uint32

	// set during commit
	origSize    int64
	grew        bool
	preCaptured bool

	// internal: set on transactions built by Rollback
	rollbacking bool
	noRollback  bool
	truncateTo  int64
}

// NewTransaction allocates an empty transaction against f.
func (f *File) NewTransaction() *Transaction {
	return &Transaction{
		f:          f,
		noRollback: f.flags&NoRollback != 0,
		truncateTo: -1,
	}
}

// Add appends one write of buf at off. The buffer is copied, so the
// caller may reuse it immediately. Operations may overlap; at apply time
// later ones win on the overlap.
func (t *Transaction) Add(buf []byte, off int64) error {
	if t.committed {
		return ErrTransactionDone
	}
	if len(buf) == 0 {
		return ErrZeroLength
	}
	if off < 0 {
		return fmt.Errorf("negative offset %d", off)
	}

	data := make([]byte, len(buf))
	copy(data, buf)
	t.ops = append(t.ops, operation{data: data, off: off})
	return nil
}

// ID returns the journal record ID assigned at commit, zero before.
func (t *Transaction) ID() uint32 { return t.id }

// extents returns the byte ranges the transaction touches, for locking.
func (t *Transaction) extents() []rangelock.Extent {
	ext := make([]rangelock.Extent, 0, len(t.ops))
	for _, op := range t.ops {
		ext = append(ext, rangelock.Extent{Off: op.off, Len: int64(len(op.data))})
	}
	return ext
}

// maxEnd returns the highest offset the transaction writes up to.
func (t *Transaction) maxEnd() int64 {
	var end int64
	for _, op := range t.ops {
		if e := op.off + int64(len(op.data)); e > end {
			end = e
		}
	}
	return end
}

// dataBytes is the total payload, the value a successful commit returns.
func (t *Transaction) dataBytes() int64 {
	var n int64
	for _, op := range t.ops {
		n += int64(len(op.data))
	}
	return n
}
