package fsio

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tempFile(t *testing.T, contents []byte) *os.File {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data")
	if err := os.WriteFile(path, contents, 0o640); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestReadFullAt_ShortAtEOF(t *testing.T) {
	f := tempFile(t, []byte("hello"))

	buf := make([]byte, 10)
	n, err := ReadFullAt(f, buf, 0)
	if err != nil {
		t.Fatalf("ReadFullAt() error = %v", err)
	}
	if n != 5 {
		t.Errorf("ReadFullAt() n = %d, want 5", n)
	}
	if !bytes.Equal(buf[:n], []byte("hello")) {
		t.Errorf("ReadFullAt() read %q", buf[:n])
	}
}

func TestReadFullAt_PastEOF(t *testing.T) {
	f := tempFile(t, []byte("hello"))

	buf := make([]byte, 4)
	n, err := ReadFullAt(f, buf, 100)
	if err != nil {
		t.Fatalf("ReadFullAt() error = %v", err)
	}
	if n != 0 {
		t.Errorf("ReadFullAt() n = %d, want 0", n)
	}
}

func TestWriteFullAt_Roundtrip(t *testing.T) {
	f := tempFile(t, nil)

	want := []byte("journaled")
	if _, err := WriteFullAt(f, want, 3); err != nil {
		t.Fatalf("WriteFullAt() error = %v", err)
	}

	buf := make([]byte, len(want))
	n, err := ReadFullAt(f, buf, 3)
	if err != nil || n != len(want) {
		t.Fatalf("ReadFullAt() = %d, %v", n, err)
	}
	if !bytes.Equal(buf, want) {
		t.Errorf("read back %q, want %q", buf, want)
	}
}

func TestSize(t *testing.T) {
	f := tempFile(t, []byte("12345678"))

	size, err := Size(f)
	if err != nil {
		t.Fatalf("Size() error = %v", err)
	}
	if size != 8 {
		t.Errorf("Size() = %d, want 8", size)
	}
}

func TestDirSync(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := DirSync(dir); err != nil {
		t.Errorf("DirSync() error = %v", err)
	}
}

func TestSyncer_SyncRange(t *testing.T) {
	f := tempFile(t, []byte("0123456789"))

	s := NewSyncer()
	if err := s.SyncRange(f, 2, 4); err != nil {
		t.Errorf("SyncRange() error = %v", err)
	}
}

func TestFdatasync(t *testing.T) {
	f := tempFile(t, []byte("abc"))
	if err := Fdatasync(f); err != nil {
		t.Errorf("Fdatasync() error = %v", err)
	}
}

// flock locks belong to the open file description, so a second descriptor
// in the same process is enough to provoke a conflict.
func TestTryLockFile_Conflict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock")

	a, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o640)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if err := TryLockFile(a); err != nil {
		t.Fatalf("TryLockFile(a) error = %v", err)
	}
	if err := TryLockFile(b); !errors.Is(err, ErrLocked) {
		t.Fatalf("TryLockFile(b) error = %v, want ErrLocked", err)
	}

	if err := UnlockFile(a); err != nil {
		t.Fatalf("UnlockFile(a) error = %v", err)
	}
	if err := TryLockFile(b); err != nil {
		t.Errorf("TryLockFile(b) after unlock error = %v", err)
	}
}

func TestLockRange_SameProcess(t *testing.T) {
	f := tempFile(t, []byte("0123456789"))

	if err := LockRange(f, 0, 5); err != nil {
		t.Fatalf("LockRange() error = %v", err)
	}
	if err := UnlockRange(f, 0, 5); err != nil {
		t.Errorf("UnlockRange() error = %v", err)
	}
}
