package jfile

import "errors"

var (
	// ErrReadOnly is returned when a mutation is attempted through a
	// handle opened with ReadOnly.
	ErrReadOnly = errors.New("file handle is read-only")

	// ErrAtomicPreserved reports a commit that failed before the commit
	// point: the partial journal record was removed and the data file is
	// untouched.
	ErrAtomicPreserved = errors.New("commit failed, data file unchanged")

	// ErrAtomicBroken reports a commit that failed at or past the commit
	// point: the journal record is durable but the data file state is
	// unclear. The next recovery pass finishes the apply.
	ErrAtomicBroken = errors.New("commit failed past the commit point, recovery required")

	// ErrTransactionDone is returned when a transaction that already
	// committed is committed again or grown.
	ErrTransactionDone = errors.New("transaction already committed")

	// ErrEmptyTransaction is returned by Commit on a transaction with no
	// operations.
	ErrEmptyTransaction = errors.New("transaction has no operations")

	// ErrZeroLength is returned by Add for an empty buffer.
	ErrZeroLength = errors.New("zero-length operation")

	// ErrNotCommitted is returned by Rollback on a transaction that never
	// committed.
	ErrNotCommitted = errors.New("transaction not committed")

	// ErrRollbackUnavailable is returned by Rollback when no pre-images
	// were captured (NoRollback) or the transaction was already rolled
	// back.
	ErrRollbackUnavailable = errors.New("no rollback information for transaction")

	// ErrAutosyncRunning is returned by AutosyncStart when the handle
	// already has an autosync task.
	ErrAutosyncRunning = errors.New("autosync already running")

	// ErrAutosyncNotRunning is returned by AutosyncStop without a running
	// task.
	ErrAutosyncNotRunning = errors.New("autosync not running")

	// ErrNotQuiesced is returned by MoveJournal while lingering records
	// or an autosync task exist.
	ErrNotQuiesced = errors.New("handle has in-flight work")

	// ErrNoFile is returned by Fsck when the data file does not exist.
	ErrNoFile = errors.New("no such file")

	// ErrNoJournal is returned by Fsck when the journal directory is
	// missing or holds no records.
	ErrNoJournal = errors.New("no journal for file")

	// ErrClosed is returned by Close on a handle that is already closed.
	// Other operations do not check whether the handle was closed.
	ErrClosed = errors.New("file handle is closed")
)
