package ledger

import (
	"path/filepath"
	"testing"
)

func TestSegmentLedgerSlots(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenSegment(filepath.Join(dir, "out.aget"))
	if err != nil {
		t.Fatalf("OpenSegment: %v", err)
	}
	defer s.Close()

	if err := s.Write(SlotTotalSegments, 5); err != nil {
		t.Fatalf("Write(total): %v", err)
	}
	if err := s.Write(SlotCompletedCount, 2); err != nil {
		t.Fatalf("Write(completed): %v", err)
	}
	if err := s.Write(SlotByteOffset, 4096); err != nil {
		t.Fatalf("Write(offset): %v", err)
	}

	total, err := s.Read(SlotTotalSegments)
	if err != nil || total != 5 {
		t.Fatalf("Read(total) = %d, %v, want 5, nil", total, err)
	}
	completed, err := s.Read(SlotCompletedCount)
	if err != nil || completed != 2 {
		t.Fatalf("Read(completed) = %d, %v, want 2, nil", completed, err)
	}
	offset, err := s.Read(SlotByteOffset)
	if err != nil || offset != 4096 {
		t.Fatalf("Read(offset) = %d, %v, want 4096, nil", offset, err)
	}
}

func TestSegmentLedgerFreshReadsZero(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenSegment(filepath.Join(dir, "out.aget"))
	if err != nil {
		t.Fatalf("OpenSegment: %v", err)
	}
	defer s.Close()

	for _, slot := range []Slot{SlotTotalSegments, SlotCompletedCount, SlotByteOffset} {
		v, err := s.Read(slot)
		if err != nil || v != 0 {
			t.Fatalf("Read(%d) on fresh ledger = %d, %v, want 0, nil", slot, v, err)
		}
	}
}

func TestSegmentExistsAndRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.aget")

	if SegmentExists(path) {
		t.Fatalf("expected ledger to not exist yet")
	}
	s, err := OpenSegment(path)
	if err != nil {
		t.Fatalf("OpenSegment: %v", err)
	}
	s.Close()

	if !SegmentExists(path) {
		t.Fatalf("expected ledger to exist after open")
	}
	if err := RemoveSegment(path); err != nil {
		t.Fatalf("RemoveSegment: %v", err)
	}
	if SegmentExists(path) {
		t.Fatalf("expected ledger removed")
	}
}
