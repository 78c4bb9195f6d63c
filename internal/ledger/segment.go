package ledger

import (
	"encoding/binary"

	"github.com/guiyumin/aget/internal/store"
)

const segmentLedgerSize = 24

// Slot names the three u64 fields of the segment ledger.
type Slot int

const (
	SlotTotalSegments Slot = iota
	SlotCompletedCount
	SlotByteOffset
)

func (s Slot) offset() int64 { return int64(s) * 8 }

// Segment is the fixed 24-byte ledger used by the HLS pipeline
// (spec.md §3/§4.C): total_segments at offset 0, completed_count at 8,
// byte_offset at 16, all big-endian u64.
type Segment struct {
	path string
	f    *store.File
}

// OpenSegment opens or creates the segment ledger at path.
func OpenSegment(path string) (*Segment, error) {
	f, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	return &Segment{path: path, f: f}, nil
}

// SegmentExists reports whether a segment ledger exists at path.
func SegmentExists(path string) bool { return store.Exists(path) }

// RemoveSegment deletes the segment ledger, called on successful
// completion.
func RemoveSegment(path string) error { return store.Remove(path) }

// Close releases the underlying file descriptor.
func (s *Segment) Close() error { return s.f.Close() }

// Read returns the u64 stored in slot, or 0 if the ledger is shorter
// than the slot (freshly created file).
func (s *Segment) Read(slot Slot) (uint64, error) {
	buf := make([]byte, 8)
	n, err := s.f.ReadAt(buf, slot.offset())
	if n < 8 {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf), nil
}

// Write stores v in slot. TotalSegments is written once at ledger
// creation and never again; the caller is responsible for that
// discipline (spec.md §3: "immutable once written").
func (s *Segment) Write(slot Slot, v uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	_, err := s.f.WriteAt(buf, slot.offset())
	return err
}

// Size returns the fixed on-disk size of a fully written segment
// ledger, exposed for tests asserting the exact layout.
func Size() int { return segmentLedgerSize }
