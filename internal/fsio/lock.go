package fsio

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// ErrLocked is returned by the non-blocking lock calls when another
// process already holds a conflicting lock.
var ErrLocked = errors.New("file is locked by another process")

// LockRange takes an exclusive advisory fcntl lock on [off, off+length)
// of f, blocking until any conflicting lock is released.
//
// fcntl locks arbitrate between processes only; two goroutines of the same
// process never conflict here. In-process serialisation is the range lock
// manager's job.
func LockRange(f *os.File, off, length int64) error {
	lk := unix.Flock_t{
		Type:   unix.F_WRLCK,
		Whence: io.SeekStart,
		Start:  off,
		Len:    length,
	}
	return ignoringEINTR(func() error {
		return unix.FcntlFlock(f.Fd(), unix.F_SETLKW, &lk)
	})
}

// UnlockRange releases a lock taken with LockRange.
func UnlockRange(f *os.File, off, length int64) error {
	lk := unix.Flock_t{
		Type:   unix.F_UNLCK,
		Whence: io.SeekStart,
		Start:  off,
		Len:    length,
	}
	return unix.FcntlFlock(f.Fd(), unix.F_SETLK, &lk)
}

// LockFile takes an exclusive flock on the whole file, blocking.
// flock locks belong to the open file description, so they conflict even
// between two descriptors of the same process.
func LockFile(f *os.File) error {
	return ignoringEINTR(func() error {
		return unix.Flock(int(f.Fd()), unix.LOCK_EX)
	})
}

// TryLockFile is LockFile without blocking; a held lock yields ErrLocked.
func TryLockFile(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
		return ErrLocked
	}
	return err
}

// UnlockFile releases a flock taken with LockFile or TryLockFile.
func UnlockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
