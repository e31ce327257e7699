package journal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeRecord(t *testing.T, rec *Record, commit bool) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "1")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o640)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()

	if err := Write(f, rec); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if commit {
		if err := MarkCommitted(f, rec); err != nil {
			t.Fatalf("MarkCommitted() error = %v", err)
		}
	}
	return path
}

func TestRecord_RoundtripWithPreImages(t *testing.T) {
	rec := &Record{
		ID: 1,
		Ops: []Op{
			{Data: []byte("hello"), Offset: 0, Pre: []byte("world")},
			{Data: []byte("extend"), Offset: 100, Pre: []byte("ex")}, // short pre near EOF
		},
	}
	path := writeRecord(t, rec, true)

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.ID != 1 {
		t.Errorf("ID = %d, want 1", got.ID)
	}
	if !got.Committed() {
		t.Error("Committed() = false after MarkCommitted")
	}
	if !got.HasPre() {
		t.Error("HasPre() = false, want true")
	}
	if len(got.Ops) != 2 {
		t.Fatalf("len(Ops) = %d, want 2", len(got.Ops))
	}
	if !bytes.Equal(got.Ops[0].Data, []byte("hello")) || got.Ops[0].Offset != 0 {
		t.Errorf("op 0 = %q@%d", got.Ops[0].Data, got.Ops[0].Offset)
	}
	if !bytes.Equal(got.Ops[0].Pre, []byte("world")) {
		t.Errorf("op 0 pre = %q", got.Ops[0].Pre)
	}
	// Short pre-images come back zero-padded to the op length.
	wantPre := append([]byte("ex"), 0, 0, 0, 0)
	if !bytes.Equal(got.Ops[1].Pre, wantPre) {
		t.Errorf("op 1 pre = %q, want %q", got.Ops[1].Pre, wantPre)
	}
	if got.DataBytes() != 11 {
		t.Errorf("DataBytes() = %d, want 11", got.DataBytes())
	}
}

func TestRecord_RoundtripNoRollback(t *testing.T) {
	rec := &Record{
		ID:    7,
		Flags: FlagNoRollback,
		Ops:   []Op{{Data: []byte("abc"), Offset: 9}},
	}
	path := writeRecord(t, rec, true)

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.HasPre() {
		t.Error("HasPre() = true, want false")
	}
	if got.Ops[0].Pre != nil {
		t.Errorf("Pre = %v, want nil", got.Ops[0].Pre)
	}
}

func TestRecord_UncommittedParsesAsInProgress(t *testing.T) {
	rec := &Record{ID: 3, Flags: FlagNoRollback, Ops: []Op{{Data: []byte("x"), Offset: 0}}}
	path := writeRecord(t, rec, false)

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Committed() {
		t.Error("Committed() = true for record without the bit")
	}
}

func TestRecord_TruncatedIsBroken(t *testing.T) {
	rec := &Record{ID: 2, Flags: FlagNoRollback, Ops: []Op{{Data: bytes.Repeat([]byte("a"), 100), Offset: 0}}}
	path := writeRecord(t, rec, true)

	if err := os.Truncate(path, 60); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); !errors.Is(err, ErrBroken) {
		t.Errorf("Read() error = %v, want ErrBroken", err)
	}
}

func TestRecord_TooShortIsBroken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1")
	if err := os.WriteFile(path, []byte("short"), 0o640); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); !errors.Is(err, ErrBroken) {
		t.Errorf("Read() error = %v, want ErrBroken", err)
	}
}

func TestRecord_BadMagicIsCorrupt(t *testing.T) {
	rec := &Record{ID: 2, Flags: FlagNoRollback, Ops: []Op{{Data: []byte("abcdef"), Offset: 0}}}
	path := writeRecord(t, rec, true)

	buf, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	binary.LittleEndian.PutUint32(buf[0:], 0xdeadbeef)
	if err := os.WriteFile(path, buf, 0o640); err != nil {
		t.Fatal(err)
	}

	if _, err := Read(path); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Read() error = %v, want ErrCorrupt", err)
	}
}

func TestRecord_FlippedByteIsCorrupt(t *testing.T) {
	rec := &Record{ID: 2, Flags: FlagNoRollback, Ops: []Op{{Data: []byte("abcdef"), Offset: 0}}}
	path := writeRecord(t, rec, true)

	buf, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	buf[headerSize+opHeaderSize] ^= 0xff // first data byte
	if err := os.WriteFile(path, buf, 0o640); err != nil {
		t.Fatal(err)
	}

	if _, err := Read(path); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Read() error = %v, want ErrCorrupt", err)
	}
}

func TestRecord_UnsupportedVersionIsInvalid(t *testing.T) {
	rec := &Record{ID: 2, Flags: FlagNoRollback, Ops: []Op{{Data: []byte("abcdef"), Offset: 0}}}
	path := writeRecord(t, rec, true)

	buf, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	binary.LittleEndian.PutUint32(buf[4:], 99)
	if err := os.WriteFile(path, buf, 0o640); err != nil {
		t.Fatal(err)
	}

	if _, err := Read(path); !errors.Is(err, ErrInvalid) {
		t.Errorf("Read() error = %v, want ErrInvalid", err)
	}
}

func TestRecord_ZeroOpsRejectedOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := Write(f, &Record{ID: 1}); !errors.Is(err, ErrInvalid) {
		t.Errorf("Write() error = %v, want ErrInvalid", err)
	}
}

// The state bits flip after the trailer is durable; rewriting them must
// not invalidate the checksum, or recovery would discard every committed
// record as corrupt.
func TestRecord_StateFlagsExcludedFromChecksum(t *testing.T) {
	rec := &Record{ID: 4, Ops: []Op{{Data: []byte("abc"), Offset: 1, Pre: []byte("xyz")}}}
	path := writeRecord(t, rec, false)

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read() before commit error = %v", err)
	}
	if got.Committed() {
		t.Fatal("Committed() = true before MarkCommitted")
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := MarkCommitted(f, rec); err != nil {
		t.Fatalf("MarkCommitted() error = %v", err)
	}
	if err := UpdateFlags(f, rec, rec.Flags|FlagRollbacked); err != nil {
		t.Fatalf("UpdateFlags() error = %v", err)
	}

	got, err = Read(path)
	if err != nil {
		t.Fatalf("Read() after flag rewrites error = %v", err)
	}
	if !got.Committed() {
		t.Error("Committed() = false after MarkCommitted")
	}
	if got.Flags&FlagRollbacked == 0 {
		t.Error("rollbacked bit lost")
	}
}

func TestChecksum32_OrderSensitive(t *testing.T) {
	a := checksum32(0, []byte{1, 2})
	b := checksum32(0, []byte{2, 1})
	if a == b {
		t.Error("checksum32 is insensitive to byte order")
	}
}
