package journal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDir_OpenCreatesLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".data.jfile")

	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer d.Close()

	for _, name := range []string{counterName, lockName} {
		if _, err := os.Stat(filepath.Join(path, name)); err != nil {
			t.Errorf("%s missing after Open: %v", name, err)
		}
	}
}

func TestDir_NextIDMonotone(t *testing.T) {
	d, err := Open(filepath.Join(t.TempDir(), "j"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer d.Close()

	var last uint32
	for i := 0; i < 5; i++ {
		id, err := d.NextID()
		if err != nil {
			t.Fatalf("NextID() error = %v", err)
		}
		if id <= last {
			t.Fatalf("NextID() = %d after %d, want monotone", id, last)
		}
		last = id
	}
}

func TestDir_CounterSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j")

	d, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := d.NextID(); err != nil {
			t.Fatal(err)
		}
	}
	d.Close()

	d, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer d.Close()

	id, err := d.NextID()
	if err != nil {
		t.Fatal(err)
	}
	if id != 4 {
		t.Errorf("NextID() after reopen = %d, want 4", id)
	}
}

func TestDir_DoubleOpenIsBusy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j")

	d, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if _, err := Open(path); !errors.Is(err, ErrBusy) {
		t.Errorf("second Open() error = %v, want ErrBusy", err)
	}
}

func TestDir_ListIDsSorted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j")
	d, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	for _, id := range []uint32{12, 3, 7} {
		if err := os.WriteFile(d.PathFor(id), []byte("x"), 0o640); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := d.ListIDs()
	if err != nil {
		t.Fatalf("ListIDs() error = %v", err)
	}
	want := []uint32{3, 7, 12}
	if len(ids) != len(want) {
		t.Fatalf("ListIDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ListIDs() = %v, want %v", ids, want)
		}
	}
}

func TestDir_Remove(t *testing.T) {
	d, err := Open(filepath.Join(t.TempDir(), "j"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if err := os.WriteFile(d.PathFor(5), []byte("x"), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := d.Remove(5); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	ids, err := d.ListIDs()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("ListIDs() = %v after Remove", ids)
	}
}

func TestDir_MissingCounterWithRecordsRefused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j")

	d, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(d.PathFor(9), []byte("x"), 0o640); err != nil {
		t.Fatal(err)
	}
	d.Close()

	if err := os.Remove(filepath.Join(path, counterName)); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(path); !errors.Is(err, ErrNoCounter) {
		t.Errorf("Open() error = %v, want ErrNoCounter", err)
	}
}

func TestDir_MoveTo(t *testing.T) {
	base := t.TempDir()
	oldPath := filepath.Join(base, "old")
	newPath := filepath.Join(base, "new")

	d, err := Open(oldPath)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if _, err := d.NextID(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(d.PathFor(1), []byte("rec"), 0o640); err != nil {
		t.Fatal(err)
	}

	if err := d.MoveTo(newPath); err != nil {
		t.Fatalf("MoveTo() error = %v", err)
	}

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Errorf("old directory still present: %v", err)
	}
	ids, err := d.ListIDs()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Errorf("ListIDs() after move = %v, want [1]", ids)
	}

	// The counter keeps counting at the new location.
	id, err := d.NextID()
	if err != nil {
		t.Fatal(err)
	}
	if id != 2 {
		t.Errorf("NextID() after move = %d, want 2", id)
	}
}
