package orchestrator

import (
	"context"
	"io"

	"github.com/guiyumin/aget/internal/httpclient"
	"github.com/guiyumin/aget/internal/pool"
)

// httpGetter adapts *httpclient.Client to pool.Getter, so the HTTP
// worker pool never depends on net/http directly (spec.md §4.H).
type httpGetter struct {
	c *httpclient.Client
}

func (g *httpGetter) Request(ctx context.Context, method, url string, body io.Reader, begin, end *uint64) (pool.Body, error) {
	resp, err := g.c.Request(ctx, method, url, body, begin, end)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// segmentGetter adapts *httpclient.Client to pool.SegmentGetter for the
// HLS segment worker pool (spec.md §4.I).
type segmentGetter struct {
	c *httpclient.Client
}

func (g *segmentGetter) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	resp, err := g.c.Request(ctx, "GET", url, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// playlistFetcher adapts *httpclient.Client to playlist.Fetcher, which
// has no context parameter of its own; the orchestrator's task context
// is captured at construction time.
type playlistFetcher struct {
	ctx context.Context
	c   *httpclient.Client
}

func (f *playlistFetcher) Get(url string) (io.ReadCloser, error) {
	resp, err := f.c.Request(f.ctx, "GET", url, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
