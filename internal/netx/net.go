// Package netx is the HTTP transport shared by the content store and
// message broker clients: bearer auth, retries of transient failures and
// mapping of error statuses back to typed errors.
package netx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/logging"
)

type Client struct {
	baseURL         string
	token           string
	http            *http.Client
	maxElapsed      time.Duration
	initialInterval time.Duration
	log             logging.Logger
}

type Option func(*Client)

func WithInitialInterval(d time.Duration) Option {
	return func(c *Client) { c.initialInterval = d }
}

func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New returns a client for baseURL. Requests carry token as a bearer
// credential when it is not empty. Transient failures are retried until
// maxElapsed has passed; zero disables retries.
func New(baseURL, token string, timeout, maxElapsed time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		token:           token,
		http:            &http.Client{Timeout: timeout},
		maxElapsed:      maxElapsed,
		initialInterval: 100 * time.Millisecond,
		log:             logging.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetToken replaces the bearer credential used by later requests.
func (c *Client) SetToken(token string) { c.token = token }

type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// transientStatus marks a 5xx answer that is worth another attempt.
type transientStatus struct {
	resp *Response
}

func (e *transientStatus) Error() string { return fmt.Sprintf("server error: %d", e.resp.Status) }

// Do sends one request and returns a 2xx response. Other statuses are
// converted with DecodeError.
func (c *Client) Do(ctx context.Context, method, path, contentType string, body []byte) (*Response, error) {
	var result *Response

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if c.token != "" {
			req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		r := &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}
		switch {
		case r.Status >= 500:
			return &transientStatus{resp: r}
		case r.Status >= 300:
			return backoff.Permanent(DecodeError(r.Status, r.Body))
		}
		result = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxElapsedTime = c.maxElapsed

	var policy backoff.BackOff = b
	if c.maxElapsed <= 0 {
		policy = &backoff.StopBackOff{}
	}

	notify := func(err error, wait time.Duration) {
		c.log.Warn(ctx, "request failed, retrying", "method", method, "path", path, "error", err, "wait", wait)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(policy, ctx), notify)
	if err != nil {
		var ts *transientStatus
		if errors.As(err, &ts) {
			return nil, DecodeError(ts.resp.Status, ts.resp.Body)
		}
		return nil, err
	}
	return result, nil
}
