package planner

import (
	"reflect"
	"testing"

	"github.com/guiyumin/aget/internal/ledger"
)

func TestSplitPairEvenDivision(t *testing.T) {
	got := SplitPair(ledger.Pair{Begin: 0, End: 299}, 100)
	want := []ledger.Pair{{0, 99}, {100, 199}, {200, 299}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitPair() = %v, want %v", got, want)
	}
}

func TestSplitPairLastShorter(t *testing.T) {
	got := SplitPair(ledger.Pair{Begin: 0, End: 249}, 100)
	want := []ledger.Pair{{0, 99}, {100, 199}, {200, 249}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitPair() = %v, want %v", got, want)
	}
}

func TestSplitPairContiguousAndUnionMatches(t *testing.T) {
	for _, tc := range []struct {
		a, b uint64
		k    uint64
	}{
		{0, 999, 7}, {5, 5, 3}, {0, 0, 1}, {10, 1000, 64},
	} {
		chunks := SplitPair(ledger.Pair{Begin: tc.a, End: tc.b}, tc.k)
		if chunks[0].Begin != tc.a {
			t.Fatalf("first chunk begin = %d, want %d", chunks[0].Begin, tc.a)
		}
		if chunks[len(chunks)-1].End != tc.b {
			t.Fatalf("last chunk end = %d, want %d", chunks[len(chunks)-1].End, tc.b)
		}
		for i, c := range chunks {
			length := c.End - c.Begin + 1
			if i < len(chunks)-1 && length != tc.k {
				t.Fatalf("chunk %d length = %d, want %d", i, length, tc.k)
			}
			if length > tc.k {
				t.Fatalf("chunk %d length = %d, exceeds %d", i, length, tc.k)
			}
			if i > 0 && chunks[i-1].End+1 != c.Begin {
				t.Fatalf("chunks %d and %d are not contiguous: %v, %v", i-1, i, chunks[i-1], c)
			}
		}
	}
}

func TestPlanFreshEmptyTotal(t *testing.T) {
	p := PlanFresh(0, 100)
	if p.Mode != ModeEmpty {
		t.Fatalf("Mode = %v, want ModeEmpty", p.Mode)
	}
	if len(p.Chunks) != 0 {
		t.Fatalf("expected no chunks for empty resource")
	}
}

func TestPlanResumeSplitsEachGap(t *testing.T) {
	gaps := []ledger.Pair{{0, 149}, {500, 699}}
	p := PlanResume(gaps, 100)
	if p.Mode != ModeResume {
		t.Fatalf("Mode = %v, want ModeResume", p.Mode)
	}
	wantCount := len(SplitPair(gaps[0], 100)) + len(SplitPair(gaps[1], 100))
	if len(p.Chunks) != wantCount {
		t.Fatalf("len(Chunks) = %d, want %d", len(p.Chunks), wantCount)
	}
}

func TestPlanDirect(t *testing.T) {
	p := PlanDirect()
	if p.Mode != ModeDirect {
		t.Fatalf("Mode = %v, want ModeDirect", p.Mode)
	}
	if len(p.Chunks) != 1 {
		t.Fatalf("expected exactly one pseudo-range chunk")
	}
}
