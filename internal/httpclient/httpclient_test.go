package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRedirectAndContentLengthRangeCapable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "bytes 0-1/2048")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("hi"))
	}))
	defer srv.Close()

	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	final, clk, err := c.RedirectAndContentLength(context.Background(), "GET", srv.URL, nil)
	if err != nil {
		t.Fatalf("RedirectAndContentLength: %v", err)
	}
	if final != srv.URL {
		t.Fatalf("final = %q, want %q", final, srv.URL)
	}
	if clk.Kind != KindRangeLength || clk.Length != 2048 {
		t.Fatalf("clk = %+v, want RangeLength(2048)", clk)
	}
}

func TestRedirectFollowsLocationChain(t *testing.T) {
	var final *httptest.Server
	final = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusOK)
	}))
	defer final.Close()

	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusFound)
	}))
	defer redirector.Close()

	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Redirect(context.Background(), "GET", redirector.URL, nil)
	if err != nil {
		t.Fatalf("Redirect: %v", err)
	}
	if got != final.URL {
		t.Fatalf("Redirect() = %q, want %q", got, final.URL)
	}
}

func TestRedirectMissingLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound) // no Location header set
	}))
	defer srv.Close()

	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Redirect(context.Background(), "GET", srv.URL, nil)
	if err == nil {
		t.Fatalf("expected NoLocation error, got nil")
	}
}

func TestRedirectUnsuccessfulStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Redirect(context.Background(), "GET", srv.URL, nil)
	if err == nil {
		t.Fatalf("expected Unsuccess error, got nil")
	}
}

func TestRequestSetsRangeHeader(t *testing.T) {
	var gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("ab"))
	}))
	defer srv.Close()

	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	begin, end := uint64(10), uint64(11)
	resp, err := c.Request(context.Background(), "GET", srv.URL, nil, &begin, &end)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	defer resp.Body.Close()
	io.ReadAll(resp.Body)

	if gotRange != "bytes=10-11" {
		t.Fatalf("Range header = %q, want bytes=10-11", gotRange)
	}
}

func TestParseHeader(t *testing.T) {
	name, value, err := ParseHeader("X-Custom: hello world")
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if name != "X-Custom" || value != "hello world" {
		t.Fatalf("got (%q, %q)", name, value)
	}

	if _, _, err := ParseHeader("no-colon-here"); err == nil {
		t.Fatalf("expected error for header with no colon")
	}
}
