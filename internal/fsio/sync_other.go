//go:build !linux

package fsio

import "os"

// Fdatasync falls back to a full fsync where fdatasync is unavailable.
func Fdatasync(f *os.File) error {
	return f.Sync()
}

// NewSyncer returns the whole-file strategy on platforms without a range
// sync primitive.
func NewSyncer() Syncer {
	return fullSyncer{}
}
