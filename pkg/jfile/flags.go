// Package jfile adds atomic, durable, multi-range writes to ordinary
// files.
//
// A File couples an open data file with a journal directory kept beside
// it. Writes are batched into a Transaction; Commit stages the new bytes
// (and the bytes they replace) in a journal record, makes the record
// durable, applies it to the data file, and cleans up. A crash at any
// point leaves the journal in a state recovery can finish or undo, so
// every committed transaction lands entirely or not at all.
//
// Commits are atomic with regard to other processes using this package
// on the same file, not against writers that bypass it.
package jfile

// Flags tune the journaling behaviour of a file handle. Combine with
// bitwise or.
type Flags uint32

const (
	// NoLock skips range locking. The caller takes over serialisation of
	// overlapping transactions.
	NoLock Flags = 1 << 0

	// NoRollback skips pre-image capture. Commits get cheaper; Rollback
	// becomes unavailable.
	NoRollback Flags = 1 << 1

	// Linger defers the data-file apply: Commit returns once the journal
	// record is durable and Sync (or autosync) brings the data file up to
	// date later.
	Linger Flags = 1 << 2

	// ReadOnly rejects all mutations through the handle and skips the
	// recovery pass at open.
	ReadOnly Flags = 1 << 6
)
