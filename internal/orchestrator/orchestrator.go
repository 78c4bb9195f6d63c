// Package orchestrator drives one task's full lifecycle — completion
// check, probe, ledger reconciliation, plan & spawn, drain, finalize —
// for each of aget's three retrieval modes (spec.md §4.L). It is the
// one component that wires every leaf package (store, ledger, planner,
// httpclient, playlist, pool, receiver, torrentengine) together; the
// teacher has no equivalent single entry point, so this is grounded
// directly on spec.md §4.L's state machine rather than adapted from a
// teacher file (see DESIGN.md).
package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/guiyumin/aget/internal/aerrors"
	"github.com/guiyumin/aget/internal/httpclient"
	"github.com/guiyumin/aget/internal/ledger"
	"github.com/guiyumin/aget/internal/planner"
	"github.com/guiyumin/aget/internal/playlist"
	"github.com/guiyumin/aget/internal/pool"
	"github.com/guiyumin/aget/internal/receiver"
	"github.com/guiyumin/aget/internal/status"
	"github.com/guiyumin/aget/internal/store"
	"github.com/guiyumin/aget/internal/torrentengine"
)

// Options carries every value the CLI layer resolves from flags,
// config file and environment before handing a task to the
// orchestrator (spec.md §6).
type Options struct {
	URL         string
	Out         string
	Method      string
	Data        []byte
	Headers     map[string]string
	Concurrency int
	ChunkSize   uint64
	Timeout     time.Duration
	DNSTimeout  time.Duration
	Proxy       string
	Type        string
	Insecure    bool
	Log         *zap.SugaredLogger
	BT          torrentengine.AddOptions
}

// DetectType resolves the effective task type from the explicit
// --type flag and the URL shape (spec.md §6: "auto: magnet/.torrent →
// bt, .m3u8 → m3u8, http(s):// → http").
func DetectType(rawURL, explicit string) string {
	if explicit != "" && explicit != "auto" {
		return explicit
	}
	lower := strings.ToLower(rawURL)
	if strings.HasPrefix(lower, "magnet:") || strings.HasSuffix(lower, ".torrent") {
		return "bt"
	}
	if strings.Contains(lower, ".m3u8") {
		return "m3u8"
	}
	return "http"
}

// Run executes one attempt of the task's full lifecycle and returns
// the outcome; Drive is responsible for retrying it at the process
// level.
func Run(ctx context.Context, opts Options) error {
	start := time.Now()
	renderer := status.New(opts.Out)

	var err error
	switch DetectType(opts.URL, opts.Type) {
	case "bt":
		err = runBT(ctx, opts)
	case "m3u8":
		err = runM3U8(ctx, opts)
	case "http":
		err = runHTTP(ctx, opts)
	default:
		err = aerrors.NewArgument(aerrors.ArgUnsupportedTask, "unsupported task type %q", opts.Type)
	}

	if opts.Log != nil {
		if err != nil {
			opts.Log.Info(renderer.RenderError(err))
		} else {
			opts.Log.Info(renderer.RenderDone(0, time.Since(start)))
		}
	}
	return err
}

// Drive re-invokes Run up to retries times, sleeping retryWait between
// attempts; because ledgers persist on disk, each retry resumes
// automatically (spec.md "Retry (process level)"). An Internal error
// is process-fatal and is never retried.
func Drive(ctx context.Context, opts Options, retries int, retryWait time.Duration) error {
	if retries <= 0 {
		retries = 1
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			if opts.Log != nil {
				opts.Log.Debugf("retrying %s (attempt %d/%d): %v", opts.URL, attempt+1, retries, lastErr)
			}
			select {
			case <-time.After(retryWait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = Run(ctx, opts)
		if lastErr == nil {
			return nil
		}
		var internal *aerrors.Internal
		if errors.As(lastErr, &internal) {
			return lastErr
		}
	}
	return lastErr
}

func newClient(opts Options) (*httpclient.Client, error) {
	return httpclient.New(httpclient.Config{
		Headers:    opts.Headers,
		Timeout:    opts.Timeout,
		DNSTimeout: opts.DNSTimeout,
		Proxy:      opts.Proxy,
		Insecure:   opts.Insecure,
	})
}

func requestMethodAndBody(opts Options) (string, io.Reader) {
	method := opts.Method
	var body io.Reader
	if len(opts.Data) > 0 {
		body = bytes.NewReader(opts.Data)
		if method == "" {
			method = "POST"
		}
	}
	if method == "" {
		method = "GET"
	}
	return method, body
}

// runHTTP implements the HTTP range-parallel path of spec.md §4.L.
func runHTTP(ctx context.Context, opts Options) error {
	ledgerPath := opts.Out + ".aget"

	if store.Exists(opts.Out) && !ledger.RangeExists(ledgerPath) {
		return nil
	}

	client, err := newClient(opts)
	if err != nil {
		return err
	}
	method, body := requestMethodAndBody(opts)

	finalURL, clKind, err := client.RedirectAndContentLength(ctx, method, opts.URL, body)
	if err != nil {
		return err
	}

	out, err := store.Open(opts.Out)
	if err != nil {
		return err
	}
	defer out.Close()

	getter := &httpGetter{c: client}

	switch clKind.Kind {
	case httpclient.KindRangeLength:
		return runHTTPRangeCapable(ctx, opts, getter, finalURL, out, ledgerPath, clKind.Length)
	case httpclient.KindDirectLength:
		return runHTTPDirect(ctx, opts, getter, finalURL, out, clKind.Length)
	default:
		return runHTTPDirect(ctx, opts, getter, finalURL, out, 0)
	}
}

func runHTTPRangeCapable(ctx context.Context, opts Options, getter pool.Getter, finalURL string, out *store.File, ledgerPath string, probed uint64) error {
	existed := ledger.RangeExists(ledgerPath)

	rl, err := ledger.OpenRange(ledgerPath)
	if err != nil {
		return err
	}

	var plan planner.Plan
	if !existed {
		if err := rl.WriteTotal(probed); err != nil {
			rl.Close()
			return err
		}
		plan = planner.PlanFresh(probed, opts.ChunkSize)
	} else {
		storedTotal, err := rl.Total()
		if err != nil {
			rl.Close()
			return err
		}
		if storedTotal != probed {
			rl.Close()
			return aerrors.ErrContentLengthNotConsistent(probed, storedTotal)
		}
		if err := rl.Rewrite(); err != nil {
			rl.Close()
			return err
		}
		gaps, err := rl.Gaps(probed)
		if err != nil {
			rl.Close()
			return err
		}
		plan = planner.PlanResume(gaps, opts.ChunkSize)
	}

	if plan.Mode == planner.ModeEmpty {
		rl.Close()
		if err := out.Truncate(0); err != nil {
			return err
		}
		return ledger.RemoveRange(ledgerPath)
	}

	ch := make(chan pool.Message, opts.Concurrency+10)
	workerPool := &pool.HTTP{
		Getter:      getter,
		URL:         finalURL,
		Stack:       pool.NewStack(plan.Chunks),
		Concurrency: opts.Concurrency,
		IdleTimeout: opts.Timeout,
		Log:         opts.Log,
		Out:         ch,
	}
	recv := &receiver.HTTP{
		Output:   out,
		Ledger:   rl,
		In:       ch,
		Total:    probed,
		Renderer: status.New(opts.Out),
		Log:      opts.Log,
	}

	workErr, recvErr := runPoolAndReceiver(ctx, func(ctx context.Context) error { return workerPool.Run(ctx) }, recv.Run, ch)

	if workErr != nil {
		rl.Close()
		return workErr
	}
	if recvErr != nil {
		rl.Close()
		return recvErr
	}

	rl.Close()
	return ledger.RemoveRange(ledgerPath)
}

func runHTTPDirect(ctx context.Context, opts Options, getter pool.Getter, finalURL string, out *store.File, total uint64) error {
	ch := make(chan pool.Message, opts.Concurrency+10)
	workerPool := &pool.HTTP{
		Getter:      getter,
		URL:         finalURL,
		Stack:       pool.NewStack([]ledger.Pair{{Begin: 0, End: 0}}),
		Concurrency: 1,
		IdleTimeout: opts.Timeout,
		Direct:      true,
		DirectTotal: total,
		Log:         opts.Log,
		Out:         ch,
	}
	recv := &receiver.HTTP{
		Output:   out,
		Ledger:   nil,
		In:       ch,
		Total:    total,
		Renderer: status.New(opts.Out),
		Log:      opts.Log,
	}

	workErr, recvErr := runPoolAndReceiver(ctx, func(ctx context.Context) error { return workerPool.Run(ctx) }, recv.Run, ch)
	if workErr != nil {
		return workErr
	}
	return recvErr
}

// runM3U8 implements the HLS segmented-media path of spec.md §4.L.
func runM3U8(ctx context.Context, opts Options) error {
	ledgerPath := opts.Out + ".aget"

	if store.Exists(opts.Out) && !ledger.SegmentExists(ledgerPath) {
		return nil
	}

	client, err := newClient(opts)
	if err != nil {
		return err
	}

	out, err := store.Open(opts.Out)
	if err != nil {
		return err
	}
	defer out.Close()

	fetcher := &playlistFetcher{ctx: ctx, c: client}
	segments, err := playlist.Resolve(fetcher, opts.URL)
	if err != nil {
		return err
	}

	existed := ledger.SegmentExists(ledgerPath)
	sl, err := ledger.OpenSegment(ledgerPath)
	if err != nil {
		return err
	}

	var startIndex, seedOffset uint64
	remaining := segments
	if !existed {
		if err := sl.Write(ledger.SlotTotalSegments, uint64(len(segments))); err != nil {
			sl.Close()
			return err
		}
	} else {
		storedTotal, err := sl.Read(ledger.SlotTotalSegments)
		if err != nil {
			sl.Close()
			return err
		}
		if storedTotal != uint64(len(segments)) {
			sl.Close()
			return aerrors.ErrPartsNotConsistent(uint64(len(segments)), storedTotal)
		}
		completed, err := sl.Read(ledger.SlotCompletedCount)
		if err != nil {
			sl.Close()
			return err
		}
		seedOffset, err = sl.Read(ledger.SlotByteOffset)
		if err != nil {
			sl.Close()
			return err
		}

		// completed_count is the next-expected segment Index (spec.md
		// §3: the receiver writes msg.Index+1 on every append), not a
		// position in the segments slice — segment Index starts at the
		// playlist's media sequence number, which need not be 0. Convert
		// it to a slice offset relative to the first resolved segment.
		sliceOffset := uint64(0)
		if len(segments) > 0 && completed > segments[0].Index {
			sliceOffset = completed - segments[0].Index
		}
		if sliceOffset > uint64(len(segments)) {
			sliceOffset = uint64(len(segments))
		}
		remaining = segments[sliceOffset:]
	}

	if len(remaining) == 0 {
		sl.Close()
		return ledger.RemoveSegment(ledgerPath)
	}
	// The pool's ordering counter starts at the first remaining segment's
	// Index, which on a fresh run is the playlist's media sequence number.
	startIndex = remaining[0].Index

	segGetter := &segmentGetter{c: client}
	ch := make(chan pool.SegmentMessage, opts.Concurrency+10)
	segPool := pool.NewSegmentPool(segGetter, remaining, opts.Concurrency, startIndex, opts.Timeout, ch, opts.Log)

	recv := &receiver.M3U8{
		Output:     out,
		Ledger:     sl,
		In:         ch,
		Total:      uint64(len(segments)),
		SeedOffset: seedOffset,
		Renderer:   status.New(opts.Out),
		Log:        opts.Log,
	}

	workErr, recvErr := runPoolAndReceiver(ctx, func(ctx context.Context) error { return segPool.Run(ctx) }, recv.Run, ch)

	if workErr != nil {
		sl.Close()
		return workErr
	}
	if recvErr != nil {
		sl.Close()
		return recvErr
	}

	sl.Close()
	return ledger.RemoveSegment(ledgerPath)
}

// runBT implements the BitTorrent path, which delegates its real logic
// to the embedded engine (spec.md §1, §4.L covers only HTTP/HLS in
// detail).
func runBT(ctx context.Context, opts Options) error {
	dataDir := opts.Out + ".bt.aget"

	engine, err := torrentengine.New(dataDir)
	if err != nil {
		return err
	}
	defer engine.Close()

	handle, err := engine.Add(opts.URL, opts.BT)
	if err != nil {
		return err
	}

	if err := handle.Wait(ctx); err != nil {
		return err
	}

	if opts.Log != nil {
		info := handle.Info()
		opts.Log.Infof("torrent %s complete (%s), session state in %s", info.Name, info.Hash, handle.SessionDir())
	}
	if !opts.BT.Seed {
		handle.Drop()
	}
	return nil
}

// runPoolAndReceiver runs a worker pool and its receiver concurrently,
// closing the sender end once the pool drains so the receiver
// terminates naturally (spec.md §4.L step 4: "close the sender end in
// the orchestrator so the receiver terminates once all workers exit").
func runPoolAndReceiver[T any](ctx context.Context, runPool func(context.Context) error, runReceiver func() error, ch chan T) (poolErr, recvErr error) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		recvErr = runReceiver()
	}()

	poolErr = runPool(ctx)
	close(ch)
	wg.Wait()
	return poolErr, recvErr
}
