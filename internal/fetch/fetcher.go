// Package fetch retrieves current content for a monitored URL.
//
// The client is stateless and safe for concurrent use; every call carries
// its own timeout so one slow endpoint can never stall another monitor.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	logx "github.com/antima/update-notifier/pkg/logx"
)

const defaultMaxContentSize = 5 << 20 // 5 MiB

type Config struct {
	// MaxContentSize caps the response body; larger bodies fail the cycle.
	MaxContentSize int
	UserAgent      string
}

type Client struct {
	httpClient *http.Client
	log        logx.Logger
	cfg        Config
}

func NewClient(cfg Config, log logx.Logger) *Client {
	if cfg.MaxContentSize <= 0 {
		cfg.MaxContentSize = defaultMaxContentSize
	}
	return &Client{
		// Timeout is per-request via context; the client itself has none.
		httpClient: &http.Client{},
		log:        log.With(logx.String("comp", "fetch")),
		cfg:        cfg,
	}
}

// Request identifies one fetch. ETag/LastModified from the previous
// successful fetch enable a conditional GET: the server may answer 304
// and spare both sides the body transfer.
type Request struct {
	URL          string
	Timeout      time.Duration
	ETag         string
	LastModified string
}

type Result struct {
	Content      []byte
	ContentType  string
	ETag         string
	LastModified string
	StatusCode   int
}

// Fetch performs a single GET bounded by req.Timeout.
//
// Failures come back as *Error (timeout/connection/http status) except a
// 304 answer, which is ErrNotModified.
func (c *Client) Fetch(ctx context.Context, req Request) (*Result, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(rctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, &Error{Kind: KindConnection, URL: req.URL, Err: err}
	}
	if c.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if req.ETag != "" {
		httpReq.Header.Set("If-None-Match", req.ETag)
	}
	if req.LastModified != "" {
		httpReq.Header.Set("If-Modified-Since", req.LastModified)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.classify(req.URL, err)
	}
	defer resp.Body.Close()

	res := &Result{
		ContentType:  resp.Header.Get("Content-Type"),
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		StatusCode:   resp.StatusCode,
	}

	if resp.StatusCode == http.StatusNotModified {
		c.log.Debug("content not modified (304)", logx.String("url", req.URL))
		return res, ErrNotModified
	}

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused, then fail.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return res, &Error{Kind: KindHTTPStatus, URL: req.URL, StatusCode: resp.StatusCode}
	}

	limit := int64(c.cfg.MaxContentSize)
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, c.classify(req.URL, err)
	}
	if int64(len(body)) > limit {
		return nil, &Error{
			Kind: KindConnection, URL: req.URL,
			Err: fmt.Errorf("content too large: more than %d bytes", limit),
		}
	}

	res.Content = body
	c.log.Debug("fetched",
		logx.String("url", req.URL),
		logx.String("content_type", res.ContentType),
		logx.Int("size", len(body)))
	return res, nil
}

func (c *Client) classify(url string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	}
	return &Error{Kind: KindConnection, URL: url, Err: err}
}
