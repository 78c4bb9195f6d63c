// Package receiver implements the two sinks that drain worker-pool
// channels and persist progress to the ledgers: the HTTP receiver
// (spec.md §4.J) and the M3U8 receiver (spec.md §4.K). Grounded on the
// teacher's RunMultiStreamDownloadWithAuthCallback ticker-based
// progress loop in internal/core/downloader/progress.go.
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

// HTTP drains a pool.Message channel, writing bytes at offset and
// appending each pair to the range ledger, while rendering status on
// a 2-second tick (spec.md §4.J).
type HTTP struct {
	Output   *store.File
	Ledger   *ledger.Range // nil in direct mode
	In       <-chan pool.Message
	Total    uint64
	Renderer *status.Renderer
	Log      *zap.SugaredLogger
}

// Run drains In until the channel is closed, returning the first
// write/ledger error encountered (spec.md: "Receiver errors propagate
// to the orchestrator and fail the task").
func (r *HTTP) Run() error {
	seed := uint64(0)
	if r.Ledger != nil {
		if c, err := r.Ledger.Count(); err == nil {
			seed = c
		}
	}
	meter := rate.New(r.Total, seed)

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
			if _, err := r.Output.WriteAt(msg.Bytes, int64(msg.Pair.Begin)); err != nil {
				return err
			}
			if r.Ledger != nil {
				if err := r.Ledger.Append(msg.Pair); err != nil {
					return err
				}
			}
			meter.Add(msg.Pair.Length())
		case <-ticker.C:
			meter.Tick()
			r.render(meter)
		}
	}
}

func (r *HTTP) render(meter *rate.Meter) {
	if r.Renderer == nil {
		return
	}
	if r.Log != nil {
		r.Log.Infof(r.Renderer.Render(meter.Completed(), r.Total, meter.BytesPerSecond(), meter.ETA()))
	}
}
