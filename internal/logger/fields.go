package logger

// Standard field keys for structured logging. Using the constants keeps
// the output greppable across packages.
const (
	// KeyFile is the data file path
	KeyFile = "file"

	// KeyJournal is the journal directory path
	KeyJournal = "journal"

	// KeyTxID is the transaction / journal record ID
	KeyTxID = "tx_id"

	// KeyOps is the number of operations in a transaction
	KeyOps = "ops"

	// KeyBytes is a byte count (written, recovered, pending)
	KeyBytes = "bytes"

	// KeyRecords is a journal record count
	KeyRecords = "records"

	// KeyDurationMs is an operation duration in milliseconds
	KeyDurationMs = "duration_ms"

	// KeyError carries an error value
	KeyError = "error"
)
