package fsio

import "os"

// Syncer forces a byte range of a file to stable storage.
//
// The concrete strategy is a platform capability chosen once per process:
// on Linux sync_file_range narrows the flush to the dirty extent, while the
// portable fallback pushes the whole file. Either way, when SyncRange
// returns the named bytes are durable modulo filesystem correctness.
//
// A range sync only covers data, not metadata. Callers that changed the
// file length must use Fdatasync instead so the new size is durable too.
type Syncer interface {
	SyncRange(f *os.File, off, length int64) error
}

// fullSyncer flushes the whole file. Used where no range primitive exists,
// and always correct.
type fullSyncer struct{}

func (fullSyncer) SyncRange(f *os.File, off, length int64) error {
	return Fdatasync(f)
}
