package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logx "github.com/antima/update-notifier/pkg/logx"
)

func TestFetchOK(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("ETag", `"abc"`)
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		_, _ = w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	c := NewClient(Config{}, logx.Nop())
	res, err := c.Fetch(context.Background(), Request{URL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(res.Content) != "hello world" {
		t.Errorf("content = %q", res.Content)
	}
	if res.ETag != `"abc"` {
		t.Errorf("etag = %q", res.ETag)
	}
	if res.LastModified == "" {
		t.Error("last-modified not captured")
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("status = %d", res.StatusCode)
	}
}

func TestFetchConditionalHeaders(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"abc"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		_, _ = w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	c := NewClient(Config{UserAgent: "test-agent"}, logx.Nop())

	res, err := c.Fetch(context.Background(), Request{URL: srv.URL, Timeout: time.Second, ETag: `"abc"`})
	if !errors.Is(err, ErrNotModified) {
		t.Fatalf("err = %v, want ErrNotModified", err)
	}
	if res == nil || res.StatusCode != http.StatusNotModified {
		t.Fatalf("result = %+v", res)
	}

	res, err = c.Fetch(context.Background(), Request{URL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unconditional Fetch: %v", err)
	}
	if string(res.Content) != "fresh" {
		t.Errorf("content = %q", res.Content)
	}
}

func TestFetchHTTPStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(Config{}, logx.Nop())
	_, err := c.Fetch(context.Background(), Request{URL: srv.URL, Timeout: time.Second})

	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if fe.Kind != KindHTTPStatus || fe.StatusCode != http.StatusNotFound {
		t.Fatalf("error = %+v, want http_status 404", fe)
	}
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Config{}, logx.Nop())
	_, err := c.Fetch(context.Background(), Request{URL: srv.URL, Timeout: 30 * time.Millisecond})

	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if fe.Kind != KindTimeout {
		t.Fatalf("kind = %s, want timeout", fe.Kind)
	}
}

func TestFetchContentTooLarge(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	c := NewClient(Config{MaxContentSize: 16}, logx.Nop())
	_, err := c.Fetch(context.Background(), Request{URL: srv.URL, Timeout: time.Second})
	if err == nil {
		t.Fatal("no error for oversized body")
	}

	// A body exactly at the cap is fine.
	c = NewClient(Config{MaxContentSize: 64}, logx.Nop())
	res, err := c.Fetch(context.Background(), Request{URL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("Fetch at cap: %v", err)
	}
	if len(res.Content) != 64 {
		t.Errorf("content size = %d, want 64", len(res.Content))
	}
}

func TestFetchConnectionError(t *testing.T) {
	t.Parallel()

	// Reserve a port and close it so nothing is listening.
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Config{}, logx.Nop())
	_, err := c.Fetch(context.Background(), Request{URL: url, Timeout: time.Second})

	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if fe.Kind != KindConnection {
		t.Fatalf("kind = %s, want connection", fe.Kind)
	}
}
