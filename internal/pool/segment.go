package pool

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/guiyumin/aget/internal/aerrors"
	"github.com/guiyumin/aget/internal/playlist"
)

// SegmentMessage is one decrypted segment handed to the M3U8 receiver
// in strictly increasing index order (spec.md §4.I).
type SegmentMessage struct {
	Index uint64
	Bytes []byte
}

// SegmentGetter fetches one segment's raw (still possibly encrypted)
// body.
type SegmentGetter interface {
	Get(ctx context.Context, url string) (io.ReadCloser, error)
}

// Segment is the HLS segment worker pool. A shared monotonic
// next_expected counter enforces the ordering contract: a worker
// whose decrypted segment is not yet next sleeps ~500ms and retries
// (spec.md §4.I).
type Segment struct {
	Getter      SegmentGetter
	Stack       *Stack[playlist.Segment]
	Concurrency int
	IdleTimeout time.Duration
	Log         *zap.SugaredLogger

	Out chan<- SegmentMessage

	mu           sync.Mutex
	nextExpected uint64
	firstErr     error
}

// NewSegmentPool builds a pool whose ordering counter starts at
// startIndex, which the caller sets to the lowest segment index present
// (so a resumed download's remaining segments release starting from the
// correct point).
func NewSegmentPool(getter SegmentGetter, segments []playlist.Segment, concurrency int, startIndex uint64, idleTimeout time.Duration, out chan<- SegmentMessage, log *zap.SugaredLogger) *Segment {
	reversed := make([]playlist.Segment, len(segments))
	for i, s := range segments {
		reversed[len(segments)-1-i] = s
	}
	return &Segment{
		Getter:       getter,
		Stack:        NewStack(reversed),
		Concurrency:  concurrency,
		IdleTimeout:  idleTimeout,
		Out:          out,
		Log:          log,
		nextExpected: startIndex,
	}
}

// Run spawns workers and blocks until the stack drains, returning the
// first error encountered (the orchestrator surfaces it after drain,
// per spec.md §4.I).
func (p *Segment) Run(ctx context.Context) error {
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

func (p *Segment) recordErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.firstErr == nil {
		p.firstErr = err
	}
}

func (p *Segment) workerLoop(ctx context.Context) {
	for {
		seg, ok := p.Stack.Pop()
		if !ok {
			return
		}
		data, err := p.fetchAndDecrypt(ctx, seg)
		if err != nil {
			p.recordErr(err)
			if p.Log != nil {
				p.Log.Debugf("segment %d failed: %v", seg.Index, err)
			}
			continue
		}
		if !p.releaseInOrder(ctx, seg.Index, data) {
			return
		}
	}
}

func (p *Segment) fetchAndDecrypt(ctx context.Context, seg playlist.Segment) ([]byte, error) {
	const maxRetries = 3
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		body, err := p.Getter.Get(ctx, seg.URL)
		if err != nil {
			lastErr = err
			continue
		}
		raw, err := p.readBody(body)
		body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if seg.Key == nil {
			return raw, nil
		}
		return decryptAES128CBC(raw, seg.Key, seg.IV)
	}
	return nil, lastErr
}

// readBody drains body applying the same two-tick idle-read timeout as
// the HTTP pool's downloadChunk (spec.md §4.I: "Per-segment idle
// timeout: same two-tick rule as HTTP. On timeout, retry the segment
// (do not advance)."). A timeout here returns an error so the caller's
// retry loop re-fetches the whole segment rather than resuming a
// partial read.
func (p *Segment) readBody(body io.Reader) ([]byte, error) {
	var out bytes.Buffer
	buf := make([]byte, 32*1024)
	idleTicks := 0

	for {
		n, readErr := readWithTimeout(body, buf, p.idleTimeout())
		if n == 0 && readErr == errReadTimedOut {
			idleTicks++
			if idleTicks >= 2 {
				return nil, &aerrors.Network{Code: aerrors.NetTimeout, Message: "idle read timeout"}
			}
			continue
		}
		idleTicks = 0

		if n > 0 {
			out.Write(buf[:n])
		}
		if readErr == io.EOF {
			return out.Bytes(), nil
		}
		if readErr != nil {
			return nil, aerrors.NewNetwork(aerrors.NetUncompletedRead, "reading segment: %v", readErr)
		}
	}
}

func (p *Segment) idleTimeout() time.Duration {
	if p.IdleTimeout > 0 {
		return p.IdleTimeout
	}
	return 60 * time.Second
}

// releaseInOrder blocks (sleeping ~500ms between polls) until this
// worker's segment index equals next_expected, then sends it and
// advances the counter. Once any segment has failed, a worker whose
// segment is not next gives up and returns false, so the pool drains
// instead of waiting for an index that will never be released.
func (p *Segment) releaseInOrder(ctx context.Context, index uint64, data []byte) bool {
	for {
		p.mu.Lock()
		ready := index == p.nextExpected
		if ready {
			p.nextExpected++
		}
		failed := !ready && p.firstErr != nil
		p.mu.Unlock()

		if failed {
			return false
		}

		if ready {
			select {
			case p.Out <- SegmentMessage{Index: index, Bytes: data}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return false
		}
	}
}

// decryptAES128CBC matches the teacher's decryptAES128 in
// internal/core/downloader/hls.go: stdlib crypto/aes + crypto/cipher
// CBC decrypt followed by PKCS7 unpadding.
func decryptAES128CBC(data, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, aerrors.NewCrypto("building AES cipher: %v", err)
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, aerrors.NewCrypto("ciphertext length %d not a multiple of block size", len(data))
	}
	if len(data) == 0 {
		return data, nil
	}

	decrypted := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(decrypted, data)
	return removePKCS7Padding(decrypted)
}

func removePKCS7Padding(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) || padLen > aes.BlockSize {
		return nil, aerrors.NewCrypto("invalid PKCS7 padding length %d", padLen)
	}
	if !bytes.Equal(data[len(data)-padLen:], bytes.Repeat([]byte{byte(padLen)}, padLen)) {
		return nil, aerrors.NewCrypto("invalid PKCS7 padding bytes")
	}
	return data[:len(data)-padLen], nil
}
