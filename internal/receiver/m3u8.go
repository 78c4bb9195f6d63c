package receiver

import (
	"time"

	"go.uber.org/zap"

	"github.com/guiyumin/aget/internal/ledger"
	"github.com/guiyumin/aget/internal/pool"
	"github.com/guiyumin/aget/internal/rate"
	"github.com/guiyumin/aget/internal/status"
	"github.com/guiyumin/aget/internal/store"
)

// M3U8 drains a pool.SegmentMessage channel, appending each segment's
// bytes at a running offset and advancing the segment ledger's
// completed_count/byte_offset slots (spec.md §4.K). Messages arrive
// pre-ordered by the segment pool's next_expected contract, so the
// receiver only needs to append, never reorder.
type M3U8 struct {
	Output     *store.File
	Ledger     *ledger.Segment
	In         <-chan pool.SegmentMessage
	Total      uint64 // total segment count, for status rendering
	SeedOffset uint64
	Renderer   *status.Renderer
	Log        *zap.SugaredLogger
}

// Run drains In until closed, returning the first write/ledger error.
func (r *M3U8) Run() error {
	offset := r.SeedOffset
	meter := rate.New(r.Total, 0)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-r.In:
			if !ok {
				meter.Tick()
				r.render(meter)
				return nil
			}
			if _, err := r.Output.WriteAt(msg.Bytes, int64(offset)); err != nil {
				return err
			}
			offset += uint64(len(msg.Bytes))
			if err := r.Ledger.Write(ledger.SlotCompletedCount, msg.Index+1); err != nil {
				return err
			}
			if err := r.Ledger.Write(ledger.SlotByteOffset, offset); err != nil {
				return err
			}
			meter.Add(1)
		case <-ticker.C:
			meter.Tick()
			r.render(meter)
		}
	}
}

func (r *M3U8) render(meter *rate.Meter) {
	if r.Renderer == nil {
		return
	}
	if r.Log != nil {
		r.Log.Infof(r.Renderer.Render(meter.Completed(), r.Total, meter.BytesPerSecond(), meter.ETA()))
	}
}
