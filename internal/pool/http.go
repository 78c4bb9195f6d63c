package pool

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/guiyumin/aget/internal/aerrors"
	"github.com/guiyumin/aget/internal/ledger"
)

// Message is one (subrange, bytes) unit handed to the HTTP receiver.
// Subrange tracks the absolute file offsets of bytes actually read,
// not the original chunk, because partial reads are possible
// (spec.md §4.H).
type Message struct {
	Pair  ledger.Pair
	Bytes []byte
}

// Getter is the minimal surface the HTTP pool needs from the HTTP
// client wrapper: a ranged request returning a streaming body. Direct
// mode passes nil begin/end.
type Getter interface {
	Request(ctx context.Context, method, url string, body io.Reader, begin, end *uint64) (Body, error)
}

// Body is the streaming response the Getter returns; *http.Response
// satisfies it directly.
type Body interface {
	io.ReadCloser
}

// HTTP is the range-chunk worker pool of spec.md §4.H.
type HTTP struct {
	Getter      Getter
	URL         string
	Stack       *Stack[ledger.Pair]
	Concurrency int
	BufferSize  int
	IdleTimeout time.Duration
	Direct      bool
	DirectTotal uint64
	Log         *zap.SugaredLogger

	Out chan<- Message

	mu       sync.Mutex
	firstErr error
}

// Run spawns min(Concurrency, Stack.Len()) workers and blocks until
// the stack is drained. It returns the first InnerError raised by a
// worker, if any; soft per-chunk errors are absorbed by residual
// pushes and logged at debug.
func (p *HTTP) Run(ctx context.Context) error {
	n := p.Concurrency
	if l := p.Stack.Len(); l < n {
		n = l
	}
	if n <= 0 {
		return nil
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			p.workerLoop(ctx)
		}()
	}
	wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firstErr
}

func (p *HTTP) recordFatal(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.firstErr == nil {
		p.firstErr = err
	}
}

func (p *HTTP) workerLoop(ctx context.Context) {
	for {
		pair, ok := p.Stack.Pop()
		if !ok {
			return
		}
		if err := p.downloadChunk(ctx, pair); err != nil {
			if _, fatal := err.(*aerrors.Internal); fatal {
				p.recordFatal(err)
				return
			}
			if p.Log != nil {
				p.Log.Debugf("chunk %v failed: %v", pair, err)
			}
		}
	}
}

func (p *HTTP) downloadChunk(ctx context.Context, pair ledger.Pair) error {
	var begin, end *uint64
	if !p.Direct {
		b, e := pair.Begin, pair.End
		begin, end = &b, &e
	}

	body, err := p.Getter.Request(ctx, "GET", p.URL, nil, begin, end)
	if err != nil {
		p.Stack.Push(pair)
		return err
	}
	defer body.Close()

	current := pair.Begin
	want := pair.Length()
	var received uint64
	idleTicks := 0
	buf := make([]byte, p.bufferSize())

	for {
		n, readErr := readWithTimeout(body, buf, p.idleTimeout())
		if n == 0 && readErr == errReadTimedOut {
			idleTicks++
			if idleTicks >= 2 {
				p.pushResidual(pair, current)
				return &aerrors.Network{Code: aerrors.NetTimeout, Message: "idle read timeout"}
			}
			continue
		}
		idleTicks = 0

		if n > 0 {
			out := make([]byte, n)
			copy(out, buf[:n])
			msgPair := ledger.Pair{Begin: current, End: current + uint64(n) - 1}
			if !p.send(ctx, Message{Pair: msgPair, Bytes: out}) {
				return aerrors.NewInternal(nil, "receiver channel closed")
			}
			current += uint64(n)
			received += uint64(n)
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			p.pushResidual(pair, current)
			return aerrors.NewNetwork(aerrors.NetSendFailure, "reading body: %v", readErr)
		}
	}

	if !p.Direct && received != want {
		p.pushResidual(pair, current)
		return &aerrors.Network{Code: aerrors.NetUncompletedRead, Message: "short read"}
	}
	if p.Direct && p.DirectTotal > 0 && received != p.DirectTotal {
		// Open Question 2 (DESIGN.md): recommended hardening, a
		// post-hoc length check against DirectLength.
		return &aerrors.Network{Code: aerrors.NetUncompletedRead, Message: "direct download ended short of Content-Length"}
	}
	return nil
}

func (p *HTTP) pushResidual(pair ledger.Pair, current uint64) {
	if current > pair.End {
		return
	}
	p.Stack.Push(ledger.Pair{Begin: current, End: pair.End})
}

func (p *HTTP) send(ctx context.Context, msg Message) bool {
	select {
	case p.Out <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *HTTP) bufferSize() int {
	if p.BufferSize > 0 {
		return p.BufferSize
	}
	return 128 * 1024
}

func (p *HTTP) idleTimeout() time.Duration {
	if p.IdleTimeout > 0 {
		return p.IdleTimeout
	}
	return 60 * time.Second
}

var errReadTimedOut = &timeoutError{}

type timeoutError struct{}

func (*timeoutError) Error() string { return "read timed out" }

type readResult struct {
	n   int
	err error
}

// readWithTimeout performs one Read call but gives up after timeout,
// implementing the "per-read idle timeout" of spec.md §5. Two
// consecutive no-data timeouts cause the caller to abort the chunk.
func readWithTimeout(r io.Reader, buf []byte, timeout time.Duration) (int, error) {
	done := make(chan readResult, 1)
	go func() {
		n, err := r.Read(buf)
		done <- readResult{n, err}
	}()

	select {
	case res := <-done:
		return res.n, res.err
	case <-time.After(timeout):
		return 0, errReadTimedOut
	}
}
