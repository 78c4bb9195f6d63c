// Package ledger implements the two on-disk progress ledgers aget uses
// to resume downloads: the range ledger for HTTP (spec.md §3/§4.B) and
// the fixed-layout segment ledger for HLS (spec.md §3/§4.C).
package ledger

import (
	"encoding/binary"
	"os"
	"sort"

	"github.com/guiyumin/aget/internal/store"
)

// Pair is a closed byte interval [Begin, End] of the output file.
type Pair struct {
	Begin uint64
	End   uint64
}

// Length returns the number of bytes the pair covers.
func (p Pair) Length() uint64 { return p.End - p.Begin + 1 }

const (
	rangeHeaderSize = 8
	rangeRecordSize = 16
)

// Range is the persistent record of completed byte ranges for one
// output path (spec.md §3 RangeLedger). Bytes 0..8 hold the total
// content length big-endian; bytes 8..EOF hold 16-byte begin/end
// records, possibly overlapping or unsorted until rewrite() compacts
// them.
type Range struct {
	path string
	f    *store.File
}

// OpenRange opens or creates the range ledger at path.
func OpenRange(path string) (*Range, error) {
	f, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	return &Range{path: path, f: f}, nil
}

// RangeExists reports whether a range ledger exists at path.
func RangeExists(path string) bool { return store.Exists(path) }

// Close releases the underlying file descriptor.
func (r *Range) Close() error { return r.f.Close() }

// RemoveRange deletes the ledger file, called on successful completion.
func RemoveRange(path string) error { return store.Remove(path) }

// Total reads the stored total content length. A ledger with fewer
// than 8 bytes (freshly created) reads as 0.
func (r *Range) Total() (uint64, error) {
	buf := make([]byte, rangeHeaderSize)
	n, err := r.f.ReadAt(buf, 0)
	if err != nil && n == 0 {
		return 0, nil
	}
	if n < rangeHeaderSize {
		return 0, nil
	}
	return binary.BigEndian.Uint64(buf), nil
}

// WriteTotal stores the total content length in the header.
func (r *Range) WriteTotal(total uint64) error {
	buf := make([]byte, rangeHeaderSize)
	binary.BigEndian.PutUint64(buf, total)
	_, err := r.f.WriteAt(buf, 0)
	return err
}

// Append grows the ledger with one more (possibly overlapping,
// possibly out-of-order) record, the fast append-only path used while
// a download is in flight.
func (r *Range) Append(p Pair) error {
	size, err := r.size()
	if err != nil {
		return err
	}
	buf := make([]byte, rangeRecordSize)
	binary.BigEndian.PutUint64(buf[0:8], p.Begin)
	binary.BigEndian.PutUint64(buf[8:16], p.End)
	_, err = r.f.WriteAt(buf, size)
	return err
}

func (r *Range) size() (int64, error) {
	fi, err := os.Stat(r.path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// rawRecords reads every 16-byte record from offset 8 to EOF without
// sorting or merging.
func (r *Range) rawRecords() ([]Pair, error) {
	size, err := r.size()
	if err != nil {
		return nil, err
	}
	n := (size - rangeHeaderSize) / rangeRecordSize
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n*rangeRecordSize)
	if _, err := r.f.ReadAt(buf, rangeHeaderSize); err != nil && int64(len(buf)) != size-rangeHeaderSize {
		return nil, err
	}
	pairs := make([]Pair, 0, n)
	for i := int64(0); i < n; i++ {
		off := i * rangeRecordSize
		pairs = append(pairs, Pair{
			Begin: binary.BigEndian.Uint64(buf[off : off+8]),
			End:   binary.BigEndian.Uint64(buf[off+8 : off+16]),
		})
	}
	return pairs, nil
}

// Pairs returns the sorted, merged, non-overlapping view of all
// appended ranges (spec.md §4.B pairs() algorithm, invariant 1 of §8).
func (r *Range) Pairs() ([]Pair, error) {
	raw, err := r.rawRecords()
	if err != nil {
		return nil, err
	}
	return MergePairs(raw), nil
}

// MergePairs sorts pairs lexicographically and sweep-merges adjacent
// or overlapping intervals, merge condition prev.End+1 >= cur.Begin.
func MergePairs(pairs []Pair) []Pair {
	if len(pairs) == 0 {
		return nil
	}
	sorted := make([]Pair, len(pairs))
	copy(sorted, pairs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Begin != sorted[j].Begin {
			return sorted[i].Begin < sorted[j].Begin
		}
		return sorted[i].End < sorted[j].End
	})

	merged := []Pair{sorted[0]}
	for _, cur := range sorted[1:] {
		last := &merged[len(merged)-1]
		if last.End+1 >= cur.Begin {
			if cur.End > last.End {
				last.End = cur.End
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// Gaps returns the intervals in [0, total) not yet covered by Pairs
// (spec.md §4.B gaps() algorithm, invariant 2 of §8).
func (r *Range) Gaps(total uint64) ([]Pair, error) {
	pairs, err := r.Pairs()
	if err != nil {
		return nil, err
	}
	return ComputeGaps(pairs, total), nil
}

// ComputeGaps is the pure algorithm behind Gaps, factored out so the
// range planner can reuse it without ledger I/O.
func ComputeGaps(pairs []Pair, total uint64) []Pair {
	if total == 0 {
		return nil
	}
	sentinel := Pair{Begin: total, End: total}
	all := append(append([]Pair{}, pairs...), sentinel)

	var gaps []Pair
	if all[0].Begin > 0 {
		gaps = append(gaps, Pair{Begin: 0, End: all[0].Begin - 1})
	}
	for i := 0; i < len(all)-1; i++ {
		cur, next := all[i], all[i+1]
		if cur.End+1 < next.Begin {
			gaps = append(gaps, Pair{Begin: cur.End + 1, End: next.Begin - 1})
		}
	}
	return gaps
}

// Count sums the lengths of all merged pairs, the bytes already on
// disk, used to seed the rate meter on resume.
func (r *Range) Count() (uint64, error) {
	pairs, err := r.Pairs()
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, p := range pairs {
		total += p.Length()
	}
	return total, nil
}

// Rewrite atomically compacts the ledger to its canonical form: total
// header followed by the sorted, merged pairs, truncating away any
// overlap/out-of-order slack accumulated during append (spec.md
// §4.B rewrite()).
func (r *Range) Rewrite() error {
	total, err := r.Total()
	if err != nil {
		return err
	}
	pairs, err := r.Pairs()
	if err != nil {
		return err
	}

	buf := make([]byte, rangeHeaderSize+len(pairs)*rangeRecordSize)
	binary.BigEndian.PutUint64(buf[0:8], total)
	for i, p := range pairs {
		off := rangeHeaderSize + i*rangeRecordSize
		binary.BigEndian.PutUint64(buf[off:off+8], p.Begin)
		binary.BigEndian.PutUint64(buf[off+8:off+16], p.End)
	}

	if err := r.f.Truncate(0); err != nil {
		return err
	}
	_, err = r.f.WriteAt(buf, 0)
	return err
}
