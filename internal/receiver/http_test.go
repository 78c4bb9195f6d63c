package receiver

import (
	"path/filepath"
	"testing"

	"github.com/guiyumin/aget/internal/ledger"
	"github.com/guiyumin/aget/internal/pool"
	"github.com/guiyumin/aget/internal/store"
)

func TestHTTPReceiverWritesAndAppendsLedger(t *testing.T) {
	dir := t.TempDir()
	out, err := store.Open(filepath.Join(dir, "out.bin"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer out.Close()

	rl, err := ledger.OpenRange(filepath.Join(dir, "out.bin.aget"))
	if err != nil {
		t.Fatalf("OpenRange: %v", err)
	}
	defer rl.Close()
	if err := rl.WriteTotal(100); err != nil {
		t.Fatalf("WriteTotal: %v", err)
	}

	in := make(chan pool.Message, 10)
	in <- pool.Message{Pair: ledger.Pair{Begin: 0, End: 49}, Bytes: make([]byte, 50)}
	in <- pool.Message{Pair: ledger.Pair{Begin: 50, End: 99}, Bytes: make([]byte, 50)}
	close(in)

	r := &HTTP{Output: out, Ledger: rl, In: in, Total: 100}
	if err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	count, err := rl.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 100 {
		t.Fatalf("Count() = %d, want 100", count)
	}
}
