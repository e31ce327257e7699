//go:build linux

package fsio

import (
	"os"

	"golang.org/x/sys/unix"
)

// Fdatasync flushes data and the metadata needed to retrieve it.
func Fdatasync(f *os.File) error {
	return ignoringEINTR(func() error {
		return unix.Fdatasync(int(f.Fd()))
	})
}

// rangeSyncer uses sync_file_range to limit the flush to the written
// extent. The WAIT_BEFORE|WRITE|WAIT_AFTER combination blocks until the
// pages in the range have hit the device.
type rangeSyncer struct{}

func (rangeSyncer) SyncRange(f *os.File, off, length int64) error {
	const flags = unix.SYNC_FILE_RANGE_WAIT_BEFORE |
		unix.SYNC_FILE_RANGE_WRITE |
		unix.SYNC_FILE_RANGE_WAIT_AFTER
	return ignoringEINTR(func() error {
		return unix.SyncFileRange(int(f.Fd()), off, length, flags)
	})
}

// NewSyncer returns the best range-sync strategy for this platform.
func NewSyncer() Syncer {
	return rangeSyncer{}
}
