package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/marmos91/jfile/internal/fsio"
)

// Record layout (little-endian):
//
//	Header (20 bytes):
//	  - Magic: uint32
//	  - Version: uint32
//	  - Flags: uint32 (transaction flags + commit state bits)
//	  - Op count: uint32
//	  - Transaction ID: uint32
//	Per operation:
//	  - Length: uint64
//	  - Offset: uint64
//	  - New bytes: Length
//	  - Old bytes: Length (present unless FlagNoRollback; zero-padded
//	    where the pre-image ran past EOF)
//	Trailer (4 bytes):
//	  - Checksum: uint32 rolling sum over everything before it, with the
//	    committed/rollbacked flag bits masked to zero
//
// The record is written in two phases: the full body with the committed
// bit clear, a durability barrier, then the header again with the bit
// set and a second barrier. That transition is the atomic commit point:
// after a crash, a record without the bit (or failing its checksum) is
// in-progress and discarded, one with the bit is committed and replayed.
const (
	recordMagic   = uint32(0x4a666c31) // "Jfl1"
	recordVersion = uint32(1)

	headerSize   = 20
	opHeaderSize = 16
	trailerSize  = 4
)

// Record flag bits. The low bits mirror the transaction flags they came
// from; the high bits track commit state.
const (
	FlagNoRollback  = uint32(1 << 1) // no pre-images stored
	FlagCommitted   = uint32(1 << 3)
	FlagRollbacked  = uint32(1 << 4)
	FlagRollbacking = uint32(1 << 5)

	// stateFlags flip via UpdateFlags after the trailer is on disk, so
	// the checksum is computed with them masked out on both sides.
	stateFlags = FlagCommitted | FlagRollbacked
)

// Parse failure classes. Recovery counts each separately.
var (
	// ErrBroken marks a record that could not be read whole: truncated
	// mid-write or unreadable.
	ErrBroken = errors.New("broken journal record")

	// ErrCorrupt marks a record whose magic or checksum does not match.
	ErrCorrupt = errors.New("corrupt journal record")

	// ErrInvalid marks a structurally readable record that violates the
	// format's semantics.
	ErrInvalid = errors.New("invalid journal record")
)

// Op is one positional write inside a record: the new bytes, where they
// go, and optionally the bytes they replaced.
type Op struct {
	Data   []byte
	Offset int64
	Pre    []byte // pre-image; may be shorter than Data near EOF, nil without rollback info
}

// Record is the in-memory form of one journal record.
type Record struct {
	ID    uint32
	Flags uint32
	Ops   []Op
}

// Committed reports whether the commit bit is set.
func (r *Record) Committed() bool { return r.Flags&FlagCommitted != 0 }

// HasPre reports whether the record carries pre-images.
func (r *Record) HasPre() bool { return r.Flags&FlagNoRollback == 0 }

// DataBytes returns the total new-byte payload, the value a successful
// commit reports.
func (r *Record) DataBytes() int64 {
	var n int64
	for _, op := range r.Ops {
		n += int64(len(op.Data))
	}
	return n
}

// checksum32 is a 32-bit rolling sum: rotate left one bit, add the next
// byte. It guards against torn writes, not adversaries.
func checksum32(sum uint32, p []byte) uint32 {
	for _, b := range p {
		sum = (sum<<1 | sum>>31) + uint32(b)
	}
	return sum
}

func (r *Record) header() []byte {
	h := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(h[0:], recordMagic)
	binary.LittleEndian.PutUint32(h[4:], recordVersion)
	binary.LittleEndian.PutUint32(h[8:], r.Flags)
	binary.LittleEndian.PutUint32(h[12:], uint32(len(r.Ops)))
	binary.LittleEndian.PutUint32(h[16:], r.ID)
	return h
}

// maskStateFlags returns a copy of a header with the mutable state bits
// cleared, the form both Write and Read feed to the checksum.
func maskStateFlags(hdr []byte) []byte {
	masked := make([]byte, len(hdr))
	copy(masked, hdr)
	flags := binary.LittleEndian.Uint32(masked[8:])
	binary.LittleEndian.PutUint32(masked[8:], flags&^stateFlags)
	return masked
}

// Write serialises r to f with the committed bit forced clear and makes
// the body durable. The caller then fsyncs the directory (the record's
// name must survive a crash too) before marking it committed.
func Write(f *os.File, r *Record) error {
	if len(r.Ops) == 0 {
		return fmt.Errorf("%w: record with no operations", ErrInvalid)
	}
	r.Flags &^= FlagCommitted

	var sum uint32
	off := int64(0)
	put := func(p []byte) error {
		if _, err := fsio.WriteFullAt(f, p, off); err != nil {
			return err
		}
		sum = checksum32(sum, p)
		off += int64(len(p))
		return nil
	}

	hdr := r.header()
	if _, err := fsio.WriteFullAt(f, hdr, 0); err != nil {
		return fmt.Errorf("write record header: %w", err)
	}
	sum = checksum32(sum, maskStateFlags(hdr))
	off = headerSize

	oh := make([]byte, opHeaderSize)
	for _, op := range r.Ops {
		if len(op.Data) == 0 {
			return fmt.Errorf("%w: zero-length operation", ErrInvalid)
		}
		binary.LittleEndian.PutUint64(oh[0:], uint64(len(op.Data)))
		binary.LittleEndian.PutUint64(oh[8:], uint64(op.Offset))
		if err := put(oh); err != nil {
			return fmt.Errorf("write operation header: %w", err)
		}
		if err := put(op.Data); err != nil {
			return fmt.Errorf("write operation data: %w", err)
		}
		if r.HasPre() {
			pre := op.Pre
			if len(pre) < len(op.Data) {
				// Pad pre-images that ran past EOF to the op length so
				// the on-disk layout stays fixed-shape.
				padded := make([]byte, len(op.Data))
				copy(padded, pre)
				pre = padded
			}
			if err := put(pre[:len(op.Data)]); err != nil {
				return fmt.Errorf("write operation pre-image: %w", err)
			}
		}
	}

	tr := make([]byte, trailerSize)
	binary.LittleEndian.PutUint32(tr, sum)
	if _, err := fsio.WriteFullAt(f, tr, off); err != nil {
		return fmt.Errorf("write record trailer: %w", err)
	}

	if err := fsio.Fdatasync(f); err != nil {
		return fmt.Errorf("sync journal record: %w", err)
	}
	return nil
}

// UpdateFlags rewrites the header with the given flags and makes the
// change durable. MarkCommitted is the two-phase write's second phase.
func UpdateFlags(f *os.File, r *Record, flags uint32) error {
	r.Flags = flags
	if _, err := fsio.WriteFullAt(f, r.header(), 0); err != nil {
		return fmt.Errorf("rewrite record header: %w", err)
	}
	if err := fsio.Fdatasync(f); err != nil {
		return fmt.Errorf("sync record header: %w", err)
	}
	return nil
}

// MarkCommitted sets the committed bit. This is the atomic commit point.
func MarkCommitted(f *os.File, r *Record) error {
	return UpdateFlags(f, r, r.Flags|FlagCommitted)
}

// Read parses and validates the record at path. Failures are classified
// as ErrBroken, ErrCorrupt or ErrInvalid; callers discriminate with
// errors.Is.
//
// The checksum is verified over the body as written, so a record read
// back here is bit-identical to what the writer staged. The committed bit
// is not interpreted: a valid record with the bit clear parses fine and
// the caller classifies it as in-progress.
func Read(path string) (*Record, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBroken, err)
	}
	if len(buf) < headerSize+opHeaderSize+trailerSize {
		return nil, fmt.Errorf("%w: %d bytes is too short", ErrBroken, len(buf))
	}

	magic := binary.LittleEndian.Uint32(buf[0:])
	if magic != recordMagic {
		return nil, fmt.Errorf("%w: bad magic %#x", ErrCorrupt, magic)
	}
	version := binary.LittleEndian.Uint32(buf[4:])
	if version != recordVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalid, version)
	}

	r := &Record{
		Flags: binary.LittleEndian.Uint32(buf[8:]),
		ID:    binary.LittleEndian.Uint32(buf[16:]),
	}
	numOps := binary.LittleEndian.Uint32(buf[12:])
	if numOps == 0 {
		return nil, fmt.Errorf("%w: record with no operations", ErrInvalid)
	}

	// Structural walk before the checksum: an operation running past the
	// file end means the write was torn mid-record, which is a different
	// condition than bits flipped in place.
	body := buf[:len(buf)-trailerSize]
	pos := headerSize
	for i := uint32(0); i < numOps; i++ {
		if pos+opHeaderSize > len(body) {
			return nil, fmt.Errorf("%w: truncated at operation %d", ErrBroken, i)
		}
		length := binary.LittleEndian.Uint64(body[pos:])
		offset := binary.LittleEndian.Uint64(body[pos+8:])
		pos += opHeaderSize

		if length == 0 {
			return nil, fmt.Errorf("%w: zero-length operation", ErrInvalid)
		}
		span := int(length)
		if r.HasPre() {
			span *= 2
		}
		if span < 0 || pos+span > len(body) {
			return nil, fmt.Errorf("%w: truncated at operation %d", ErrBroken, i)
		}

		op := Op{
			Data:   body[pos : pos+int(length)],
			Offset: int64(offset),
		}
		pos += int(length)
		if r.HasPre() {
			op.Pre = body[pos : pos+int(length)]
			pos += int(length)
		}
		r.Ops = append(r.Ops, op)
	}
	if pos != len(body) {
		return nil, fmt.Errorf("%w: %d trailing bytes after last operation", ErrInvalid, len(body)-pos)
	}

	want := binary.LittleEndian.Uint32(buf[len(buf)-trailerSize:])
	got := checksum32(0, maskStateFlags(body[:headerSize]))
	got = checksum32(got, body[headerSize:])
	if got != want {
		return nil, fmt.Errorf("%w: checksum mismatch (%#x != %#x)", ErrCorrupt, got, want)
	}

	return r, nil
}
