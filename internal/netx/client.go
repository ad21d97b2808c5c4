// Package netx is the transfer client: it PUTs bytes to pre-signed URLs and
// reports how much of the body has been sent.
package netx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/dmitrijs2005/assetsync/internal/common"
)

// ProgressFunc receives the cumulative number of bytes sent and the body
// size. Calls are made from the transport goroutine, in non-decreasing order
// of sent.
type ProgressFunc func(sent, total int64)

// maxErrorBody caps how much of a failed response is quoted in the error.
const maxErrorBody = 512

type Client struct {
	http    *http.Client
	limiter *rate.Limiter
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithRateLimit caps upload bandwidth in bytes per second. Zero or negative
// means unlimited.
func WithRateLimit(bytesPerSecond int64) Option {
	return func(cl *Client) {
		if bytesPerSecond > 0 {
			cl.limiter = rate.NewLimiter(rate.Limit(bytesPerSecond), int(bytesPerSecond))
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{http: &http.Client{}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// PutBytes sends body to url with a single HTTP PUT carrying only a
// Content-Type header. Only 200 OK counts as success; every other outcome
// is reported as common.ErrTransferFailed. There are no retries.
func (c *Client) PutBytes(ctx context.Context, body []byte, url, contentType string, progress ProgressFunc) error {
	total := int64(len(body))
	pr := &progressReader{ctx: ctx, r: bytes.NewReader(body), total: total, fn: progress, limiter: c.limiter}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, pr)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", common.ErrTransferFailed, err)
	}
	req.ContentLength = total
	if total == 0 {
		req.Body = http.NoBody
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrTransferFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s; body: %s", common.ErrTransferFailed, resp.Status, string(b))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	pr.finish()
	return nil
}
