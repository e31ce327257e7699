// Package fsio wraps the positional file primitives the journal engine is
// built on: full-transfer reads and writes, durability barriers for files
// and directories, and the advisory locks that coordinate cooperating
// processes.
package fsio

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// ReadFullAt reads up to len(buf) bytes from f starting at off, retrying
// short reads and EINTR until the buffer is full or the file ends.
//
// Reading past EOF is not an error: the count of bytes actually read is
// returned and the tail of buf is left untouched.
func ReadFullAt(f *os.File, buf []byte, off int64) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.ReadAt(buf[total:], off+int64(total))
		total += n
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return total, nil
		case errors.Is(err, unix.EINTR):
		default:
			return total, err
		}
	}
	return total, nil
}

// WriteFullAt writes all of buf to f at off, retrying short writes and
// EINTR. Unlike reads there is no benign short case: anything less than
// len(buf) surfaces the underlying error.
func WriteFullAt(f *os.File, buf []byte, off int64) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.WriteAt(buf[total:], off+int64(total))
		total += n
		if err != nil && !errors.Is(err, unix.EINTR) {
			return total, err
		}
		if n == 0 && err == nil {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

// ignoringEINTR retries fn until it returns anything but EINTR. Shared
// by the sync and lock wrappers on every platform.
func ignoringEINTR(fn func() error) error {
	for {
		err := fn()
		if err != unix.EINTR {
			return err
		}
	}
}

// Size returns the current length of f.
func Size(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// DirSync opens the directory at path and fsyncs it, making preceding
// creates, renames and unlinks inside it durable.
func DirSync(path string) error {
	d, err := os.Open(path)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
