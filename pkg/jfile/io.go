package jfile

import (
	"fmt"
	"io"
)

// The stream and positional wrappers give File the standard io surface.
// Every write goes through a single-operation transaction, so the
// journaling guarantees hold for them too.
var (
	_ io.Reader   = (*File)(nil)
	_ io.Writer   = (*File)(nil)
	_ io.ReaderAt = (*File)(nil)
	_ io.WriterAt = (*File)(nil)
	_ io.Seeker   = (*File)(nil)
	_ io.Closer   = (*File)(nil)
)

// Read reads from the current stream position.
func (f *File) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.f.ReadAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

// ReadAt reads from the given offset without touching the stream
// position. Satisfies the io.ReaderAt contract, including io.EOF on
// short reads.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return f.f.ReadAt(p, off)
}

// Write commits p at the current stream position as one transaction and
// advances the position on success.
func (f *File) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.writeAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

// WriteAt commits p at off as one transaction. The stream position is
// unaffected.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	return f.writeAt(p, off)
}

func (f *File) writeAt(p []byte, off int64) (int, error) {
	t := f.NewTransaction()
	if err := t.Add(p, off); err != nil {
		return 0, err
	}
	n, err := t.Commit()
	return int(n), err
}

// Seek repositions the stream offset, like lseek.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = f.pos
	case io.SeekEnd:
		size, err := f.Size()
		if err != nil {
			return 0, err
		}
		base = size
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}

	pos := base + offset
	if pos < 0 {
		return 0, fmt.Errorf("negative resulting offset %d", pos)
	}
	f.pos = pos
	return pos, nil
}

// Truncate changes the data file's length under the grow lock. Lingering
// records are drained first so a deferred apply cannot resurrect
// truncated bytes. The truncate itself is not journaled.
func (f *File) Truncate(size int64) error {
	if f.flags&ReadOnly != 0 {
		return ErrReadOnly
	}
	if size < 0 {
		return fmt.Errorf("negative size %d", size)
	}
	if err := f.drainPending(); err != nil {
		return err
	}
	return f.truncateLocked(size)
}
