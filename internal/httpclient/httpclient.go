// Package httpclient wraps net/http with the redirect-resolution and
// content-length-probing behavior the core downloader needs (spec.md
// §4.D), grounded on the teacher's probeRangeSupport/probeWithHEAD
// transport tuning in internal/core/downloader/multistream.go.
package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/guiyumin/aget/internal/aerrors"
)

// ContentLengthKind tags which of the three probe outcomes applied
// (spec.md §3 ContentLengthKind).
type ContentLengthKind struct {
	Kind   Kind
	Length uint64
}

type Kind int

const (
	KindNone Kind = iota
	KindRangeLength
	KindDirectLength
)

// Config carries the knobs the client is constructed from: headers,
// timeouts, proxy and TLS overrides (spec.md §4.D / §6 flags).
type Config struct {
	Headers       map[string]string
	DefaultHeader map[string]string
	Timeout       time.Duration
	DNSTimeout    time.Duration
	Proxy         string
	Insecure      bool
}

// Client is a configured wrapper over *http.Client with redirects
// disabled so the core can resolve them explicitly, one hop at a time.
type Client struct {
	hc      *http.Client
	headers map[string]string
}

// New builds a Client from cfg. Redirects are never followed
// automatically (spec.md §4.D: "the core resolves redirects
// explicitly"); DNS/dial timeout is applied via the dialer, the
// per-read idle timeout is enforced by callers reading the stream.
func New(cfg Config) (*Client, error) {
	dialer := &net.Dialer{Timeout: cfg.DNSTimeout}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConns:        0,
		MaxIdleConnsPerHost: 32,
		IdleConnTimeout:     120 * time.Second,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: cfg.Insecure},
	}

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, aerrors.NewNetwork(aerrors.NetInvalidURL, "invalid proxy url %q: %v", cfg.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	hc := &http.Client{
		Transport: transport,
		Timeout:   0, // idle-read timeout is enforced by the worker pool, not a total deadline
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	headers := map[string]string{
		"User-Agent": "aget/0.1.0",
		"Accept":     "*/*",
	}
	for k, v := range cfg.DefaultHeader {
		headers[k] = v
	}
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &Client{hc: hc, headers: headers}, nil
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, aerrors.NewNetwork(aerrors.NetInvalidURL, "invalid url %q: %v", rawURL, err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// Redirect resolves a possible chain of redirects starting at rawURL,
// issuing a Range: bytes=0-1 probe at each hop, and returns the final
// URL (spec.md §4.D redirect()).
func (c *Client) Redirect(ctx context.Context, method, rawURL string, body io.Reader) (string, error) {
	final, _, err := c.redirectLoop(ctx, method, rawURL, body, false)
	return final, err
}

// RedirectAndContentLength does the same resolution while also
// inspecting Content-Range/Content-Length at the final hop (spec.md
// §4.D redirect_and_contentlength()).
func (c *Client) RedirectAndContentLength(ctx context.Context, method, rawURL string, body io.Reader) (string, ContentLengthKind, error) {
	return c.redirectLoop(ctx, method, rawURL, body, true)
}

func (c *Client) redirectLoop(ctx context.Context, method, rawURL string, body io.Reader, wantLength bool) (string, ContentLengthKind, error) {
	current := rawURL
	const maxHops = 20

	for hop := 0; hop < maxHops; hop++ {
		req, err := c.newRequest(ctx, method, current, body)
		if err != nil {
			return "", ContentLengthKind{}, err
		}
		req.Header.Set("Range", "bytes=0-1")

		resp, err := c.hc.Do(req)
		if err != nil {
			return "", ContentLengthKind{}, aerrors.NewNetwork(aerrors.NetSendFailure, "request to %s failed: %v", current, err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			loc := resp.Header.Get("Location")
			if loc == "" {
				return "", ContentLengthKind{}, &aerrors.Network{Code: aerrors.NetNoLocation, Message: "redirect with no Location header"}
			}
			next, err := resolveURL(current, loc)
			if err != nil {
				return "", ContentLengthKind{}, aerrors.NewNetwork(aerrors.NetInvalidURL, "invalid Location %q: %v", loc, err)
			}
			current = next
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if !wantLength {
				return current, ContentLengthKind{}, nil
			}
			return current, parseContentLength(resp), nil
		}

		return "", ContentLengthKind{}, aerrors.Unsuccess(resp.StatusCode)
	}

	return "", ContentLengthKind{}, aerrors.NewNetwork(aerrors.NetUnsuccess, "too many redirects from %s", rawURL)
}

func parseContentLength(resp *http.Response) ContentLengthKind {
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		var start, end, total uint64
		if _, err := fmt.Sscanf(cr, "bytes %d-%d/%d", &start, &end, &total); err == nil {
			return ContentLengthKind{Kind: KindRangeLength, Length: total}
		}
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if resp.ContentLength > 0 {
			return ContentLengthKind{Kind: KindDirectLength, Length: uint64(resp.ContentLength)}
		}
	}
	return ContentLengthKind{Kind: KindNone}
}

func resolveURL(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// Request issues a ranged (or full, if pair is nil) GET/POST and
// returns the streaming body (spec.md §4.D request()). Callers must
// Close the returned body.
func (c *Client) Request(ctx context.Context, method, rawURL string, body io.Reader, begin, end *uint64) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	if begin != nil && end != nil {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", *begin, *end))
	} else {
		req.Header.Set("Range", "bytes=0-")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, aerrors.NewNetwork(aerrors.NetSendFailure, "request to %s failed: %v", rawURL, err)
	}
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc := resp.Header.Get("Location")
		resp.Body.Close()
		if loc == "" {
			return nil, &aerrors.Network{Code: aerrors.NetNoLocation, Message: "redirect with no Location header"}
		}
		next, err := resolveURL(rawURL, loc)
		if err != nil {
			return nil, aerrors.NewNetwork(aerrors.NetInvalidURL, "invalid Location %q: %v", loc, err)
		}
		return c.Request(ctx, method, next, body, begin, end)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, aerrors.Unsuccess(resp.StatusCode)
	}
	return resp, nil
}

// ParseHeader splits a "-H Name: Value" flag line into a key/value
// pair (spec.md §6 -H, --header).
func ParseHeader(line string) (string, string, error) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", aerrors.NewNetwork(aerrors.NetInvalidHeader, "header %q missing ':'", line)
	}
	name := strings.TrimSpace(line[:idx])
	value := strings.TrimSpace(line[idx+1:])
	if name == "" {
		return "", "", aerrors.NewNetwork(aerrors.NetInvalidHeader, "header %q has empty name", line)
	}
	return name, value, nil
}
