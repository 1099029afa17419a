package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slipverify/notifier/pkg/logger"
)

// Client delivers JSON callbacks. It is safe for concurrent use.
type Client struct {
	http       *http.Client
	secret     string
	timeout    time.Duration
	maxRetries int
	backoff    Backoff
	userAgent  string
	breakerCfg BreakerConfig
	breakers   *breakers
	logger     *slog.Logger
	onAttempt  func(Attempt)
	now        func() time.Time
}

// NewClient creates a Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout:    10 * time.Second,
		maxRetries: 3,
		backoff:    DefaultBackoff(),
		userAgent:  "slipverify-notifier/1.0",
		breakerCfg: BreakerConfig{FailureThreshold: 5, SuccessThreshold: 2, RecoveryTimeout: 30 * time.Second},
		logger:     logger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Component("callback"))
	c.breakers = &breakers{cfg: c.breakerCfg, now: c.now, m: make(map[string]*breaker)}
	return c
}

// Send marshals payload and POSTs it to rawURL, retrying transient
// failures. Every attempt of one Send carries the same X-Callback-ID.
func (c *Client) Send(ctx context.Context, rawURL string, payload any) error {
	u, err := parseURL(rawURL)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	var br *breaker
	if c.breakerCfg.FailureThreshold > 0 {
		br = c.breakers.get(u.Host)
		if !br.allow() {
			return ErrCircuitOpen
		}
	}

	id := uuid.NewString()
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(c.backoff.NextInterval(attempt))
			select {
			case <-ctx.Done():
				t.Stop()
				return fmt.Errorf("%w: %w", ErrDeliveryFailed, errors.Join(ctx.Err(), lastErr))
			case <-t.C:
			}
		}

		start := c.now()
		status, err := c.post(ctx, rawURL, id, body)
		if c.onAttempt != nil {
			c.onAttempt(Attempt{URL: rawURL, Number: attempt + 1, StatusCode: status, Duration: c.now().Sub(start), Err: err})
		}
		if br != nil {
			if err == nil {
				br.success()
			} else {
				br.failure()
			}
		}
		if err == nil {
			return nil
		}
		lastErr = err

		if permanentStatus(status) {
			return fmt.Errorf("%w: %w", ErrPermanent, err)
		}
		c.logger.LogAttrs(ctx, slog.LevelDebug, "callback attempt failed",
			slog.String("host", u.Host),
			slog.Int("attempt", attempt+1),
			logger.Error(err),
		)
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrDeliveryFailed, c.maxRetries+1, lastErr)
}

func (c *Client) post(ctx context.Context, rawURL, id string, body []byte) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(HeaderID, id)

	if c.secret != "" {
		ts := c.now().Unix()
		sig, err := Sign(c.secret, ts, body)
		if err != nil {
			return 0, err
		}
		req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(HeaderSignature, sig)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return 0, fmt.Errorf("%w: %w", ErrTemporary, err)
	}
	defer func() { _ = resp.Body.Close() }()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, nil
	}
	msg := fmt.Sprintf("callback returned status %d", resp.StatusCode)
	if detail := strings.TrimSpace(strings.ReplaceAll(string(respBody), "\n", " ")); detail != "" {
		if len(detail) > 200 {
			detail = detail[:200] + "..."
		}
		msg += ": " + detail
	}
	return resp.StatusCode, errors.New(msg)
}

// permanentStatus reports 4xx responses that a retry cannot fix.
func permanentStatus(code int) bool {
	if code < 400 || code >= 500 {
		return false
	}
	switch code {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return true
}

func parseURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: only http and https are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return u, nil
}
