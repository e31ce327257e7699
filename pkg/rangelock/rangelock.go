// Package rangelock serialises transactions that touch overlapping byte
// ranges of one data file.
//
// Two layers compose: fcntl byte-range locks arbitrate between
// cooperating processes, and an in-process interval table arbitrates
// between goroutines sharing a handle (fcntl locks never conflict within
// a process). Extents are always acquired in ascending offset order, so
// peers that follow the same discipline cannot deadlock.
package rangelock

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/marmos91/jfile/internal/fsio"
)

// GrowOffset is the sentinel byte past any real file size. Transactions
// that extend the file lock [GrowOffset, GrowOffset+1) so concurrent
// growers serialise against each other.
const GrowOffset int64 = 1 << 62

// Extent is a half-open byte range [Off, Off+Len).
type Extent struct {
	Off int64
	Len int64
}

func (e Extent) end() int64 { return e.Off + e.Len }

func (e Extent) overlaps(o Extent) bool {
	return e.Off < o.end() && o.Off < e.end()
}

// Manager coordinates range locks for a single data file.
type Manager struct {
	f *os.File

	mu   sync.Mutex
	cond *sync.Cond
	held []Extent
}

// New returns a Manager for f. All handles on the same file within one
// process must share the Manager for in-process exclusion to hold.
func New(f *os.File) *Manager {
	m := &Manager{f: f}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Token represents a set of held extents. Unlock releases them.
type Token struct {
	m       *Manager
	extents []Extent
}

// Lock blocks until every extent is exclusively held, both in-process and
// via fcntl on the underlying file. Overlapping and adjacent extents are
// merged first; acquisition is ascending by offset.
func (m *Manager) Lock(extents []Extent) (*Token, error) {
	merged := Merge(extents)
	if len(merged) == 0 {
		return &Token{m: m}, nil
	}

	m.mu.Lock()
	for m.anyHeld(merged) {
		m.cond.Wait()
	}
	m.held = append(m.held, merged...)
	m.mu.Unlock()

	for i, e := range merged {
		if err := fsio.LockRange(m.f, e.Off, e.Len); err != nil {
			// Back out everything taken so far.
			for j := i - 1; j >= 0; j-- {
				fsio.UnlockRange(m.f, merged[j].Off, merged[j].Len)
			}
			m.release(merged)
			return nil, fmt.Errorf("lock range [%d,%d): %w", e.Off, e.end(), err)
		}
	}

	return &Token{m: m, extents: merged}, nil
}

// Unlock releases the token's extents in descending order. Safe to call
// more than once.
func (t *Token) Unlock() error {
	if t == nil || t.m == nil || len(t.extents) == 0 {
		return nil
	}
	extents := t.extents
	t.extents = nil

	var first error
	for i := len(extents) - 1; i >= 0; i-- {
		e := extents[i]
		if err := fsio.UnlockRange(t.m.f, e.Off, e.Len); err != nil && first == nil {
			first = fmt.Errorf("unlock range [%d,%d): %w", e.Off, e.end(), err)
		}
	}
	t.m.release(extents)
	return first
}

func (m *Manager) anyHeld(extents []Extent) bool {
	for _, e := range extents {
		for _, h := range m.held {
			if e.overlaps(h) {
				return true
			}
		}
	}
	return false
}

func (m *Manager) release(extents []Extent) {
	m.mu.Lock()
	for _, e := range extents {
		for i, h := range m.held {
			if h == e {
				m.held = append(m.held[:i], m.held[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()
	m.cond.Broadcast()
}

// Merge sorts extents ascending and coalesces overlapping or touching
// neighbours. Zero-length extents are dropped.
func Merge(extents []Extent) []Extent {
	var in []Extent
	for _, e := range extents {
		if e.Len > 0 {
			in = append(in, e)
		}
	}
	if len(in) == 0 {
		return nil
	}
	sort.Slice(in, func(i, j int) bool { return in[i].Off < in[j].Off })

	out := in[:1]
	for _, e := range in[1:] {
		last := &out[len(out)-1]
		if e.Off <= last.end() {
			if e.end() > last.end() {
				last.Len = e.end() - last.Off
			}
			continue
		}
		out = append(out, e)
	}
	return out
}
