package fortex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrPermanent: 4xx selain 429. Caller error, jangan retry.
var ErrPermanent = errors.New("fortex: permanent api error")

// ErrSchema: response body did not match the expected shape. Treated the
// same as a permanent error (retrying will not fix the payload).
var ErrSchema = errors.New("fortex: malformed response")

// ErrTransient: timeout or 5xx that survived every retry.
var ErrTransient = errors.New("fortex: transient error, retries exhausted")

const (
	defaultMaxRetries     = 3
	defaultBackoffBase    = 5 * time.Second
	defaultServerErrDelay = 10 * time.Second
	defaultRetryAfter     = 60 * time.Second
)

// Client is the HTTP client for the Fortex monitoring API.
// Safe for concurrent use; the only shared state is connection reuse
// inside http.Client and the rate limiter.
type Client struct {
	baseURL    string
	authToken  string
	systemName string

	httpc   *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger

	maxRetries     int
	backoffBase    time.Duration
	serverErrDelay time.Duration
}

// Option configures the client; mainly dipakai untuk test timing.
type Option func(*Client)

func WithMaxRetries(n int) Option { return func(c *Client) { c.maxRetries = n } }

func WithBackoffBase(d time.Duration) Option { return func(c *Client) { c.backoffBase = d } }

func WithServerErrDelay(d time.Duration) Option { return func(c *Client) { c.serverErrDelay = d } }

func WithRateLimit(interval time.Duration) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Every(interval), 1) }
}

func New(baseURL, authToken, systemName string, timeout time.Duration, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:        trimTrailingSlash(baseURL),
		authToken:      authToken,
		systemName:     systemName,
		httpc:          &http.Client{Timeout: timeout},
		limiter:        rate.NewLimiter(rate.Inf, 1),
		log:            log.With().Str("component", "fortex").Logger(),
		maxRetries:     defaultMaxRetries,
		backoffBase:    defaultBackoffBase,
		serverErrDelay: defaultServerErrDelay,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// request runs one logical API call with the full retry policy:
// timeout/network -> retry up to maxRetries with increasing delay;
// 429 -> wait the server-supplied duration, uncounted;
// other 4xx -> ErrPermanent, no retry;
// 5xx -> retry with a fixed delay, counted.
func (c *Client) request(ctx context.Context, method, endpoint string, body any, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}

	url := c.baseURL + endpoint
	attempt := 0
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		c.log.Debug().Str("method", method).Str("url", url).Int("attempt", attempt+1).Msg("fortex request")

		status, data, err := c.do(ctx, method, url, payload)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			attempt++
			if attempt >= c.maxRetries {
				return fmt.Errorf("%w: %s %s: %v", ErrTransient, method, endpoint, err)
			}
			// delay naik tiap attempt: base, 2*base, 3*base
			delay := time.Duration(attempt) * c.backoffBase
			c.log.Warn().Err(err).Dur("delay", delay).Msg("network error, retrying")
			if err := sleepCtx(ctx, delay); err != nil {
				return err
			}
			continue
		}

		switch {
		case status == http.StatusTooManyRequests:
			wait := retryAfter(data.header)
			c.log.Warn().Dur("wait", wait).Msg("rate limited by server")
			if err := sleepCtx(ctx, wait); err != nil {
				return err
			}
			// uncounted against the retry bound
			continue

		case status >= 500:
			attempt++
			if attempt >= c.maxRetries {
				return fmt.Errorf("%w: %s %s: status %d", ErrTransient, method, endpoint, status)
			}
			c.log.Warn().Int("status", status).Msg("server error, retrying")
			if err := sleepCtx(ctx, c.serverErrDelay); err != nil {
				return err
			}
			continue

		case status >= 400:
			return fmt.Errorf("%w: %s %s: status %d", ErrPermanent, method, endpoint, status)
		}

		if out != nil {
			if err := json.Unmarshal(data.body, out); err != nil {
				return fmt.Errorf("%w: %s %s: %v", ErrSchema, method, endpoint, err)
			}
		}
		return nil
	}
}

type response struct {
	header http.Header
	body   []byte
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte) (int, response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, response{}, err
	}
	req.Header.Set("Authorization", c.authToken)
	req.Header.Set("x-system-name", c.systemName)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, response{}, err
	}
	return resp.StatusCode, response{header: resp.Header, body: body}, nil
}

func retryAfter(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultRetryAfter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
