package receiver

import (
	"path/filepath"
	"testing"

	"github.com/guiyumin/aget/internal/ledger"
	"github.com/guiyumin/aget/internal/pool"
	"github.com/guiyumin/aget/internal/store"
)

func TestM3U8ReceiverAdvancesLedgerSlots(t *testing.T) {
	dir := t.TempDir()
	out, err := store.Open(filepath.Join(dir, "out.bin"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer out.Close()

	sl, err := ledger.OpenSegment(filepath.Join(dir, "out.bin.aget"))
	if err != nil {
		t.Fatalf("OpenSegment: %v", err)
	}
	defer sl.Close()
	if err := sl.Write(ledger.SlotTotalSegments, 3); err != nil {
		t.Fatalf("Write(total): %v", err)
	}

	in := make(chan pool.SegmentMessage, 10)
	in <- pool.SegmentMessage{Index: 0, Bytes: []byte("aaa")}
	in <- pool.SegmentMessage{Index: 1, Bytes: []byte("bb")}
	in <- pool.SegmentMessage{Index: 2, Bytes: []byte("c")}
	close(in)

	r := &M3U8{Output: out, Ledger: sl, In: in, Total: 3}
	if err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	completed, err := sl.Read(ledger.SlotCompletedCount)
	if err != nil || completed != 3 {
		t.Fatalf("completed = %d, %v, want 3, nil", completed, err)
	}
	offset, err := sl.Read(ledger.SlotByteOffset)
	if err != nil || offset != 6 {
		t.Fatalf("offset = %d, %v, want 6, nil", offset, err)
	}
}
