package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"aegis/internal/detect"
	"aegis/internal/services"
	"aegis/internal/tracking"
)

const (
	defaultHTTPTimeout    = 15 * time.Second
	defaultRetryMaxDelay  = 5 * time.Second
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryAttempts  = 3
	maxResponseBytes      = 4 << 20
)

// Config captures the runtime settings required to talk to the classifier.
type Config struct {
	URL            string
	APIKey         string
	TimeoutSeconds int
	RetryAttempts  int
}

// Client posts still frames to an image moderation endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a classifier client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	client := &Client{
		cfg: Config{
			URL:            strings.TrimSpace(cfg.URL),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			TimeoutSeconds: cfg.TimeoutSeconds,
			RetryAttempts:  attempts,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: attempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("vision request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type classifyResponse struct {
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Objects []struct {
		Label      string    `json:"label"`
		Confidence float64   `json:"confidence"`
		Box        []float64 `json:"box"`
	} `json:"objects"`
	Error string `json:"error"`
}

// Classify uploads the image at imagePath and returns the verdict. Box
// coordinates are pixels of the uploaded image.
func (c *Client) Classify(ctx context.Context, imagePath string) (detect.FrameVerdict, error) {
	var empty detect.FrameVerdict
	if c.cfg.URL == "" {
		return empty, services.Wrap(services.ErrConfiguration, "vision", "classify", "endpoint url not configured", nil)
	}
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return empty, services.Wrap(services.ErrNotFound, "vision", "read frame", imagePath, err)
	}

	attempts := c.retryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.sendOnce(ctx, filepath.Base(imagePath), data)
		if err == nil {
			return c.toVerdict(resp, data), nil
		}
		lastErr = err
		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			break
		}
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}
	marker := services.ErrExternalTool
	var statusErr *httpStatusError
	switch {
	case errors.Is(lastErr, context.DeadlineExceeded):
		marker = services.ErrTimeout
	case errors.As(lastErr, &statusErr) && (statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= http.StatusInternalServerError):
		marker = services.ErrTransient
	}
	return empty, services.Wrap(marker, "vision", "classify", filepath.Base(imagePath), lastErr)
}

func (c *Client) sendOnce(ctx context.Context, name string, data []byte) (classifyResponse, error) {
	var parsed classifyResponse
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", name)
	if err != nil {
		return parsed, fmt.Errorf("vision request: build form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return parsed, fmt.Errorf("vision request: build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return parsed, fmt.Errorf("vision request: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, &body)
	if err != nil {
		return parsed, fmt.Errorf("vision request: new request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return parsed, fmt.Errorf("vision request: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return parsed, fmt.Errorf("vision request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return parsed, &httpStatusError{StatusCode: resp.StatusCode, Body: string(payload), RetryAfter: retryAfter}
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return parsed, fmt.Errorf("vision request: decode response: %w", err)
	}
	if msg := strings.TrimSpace(parsed.Error); msg != "" {
		return parsed, fmt.Errorf("vision request: api error: %s", msg)
	}
	return parsed, nil
}

func (c *Client) toVerdict(resp classifyResponse, raw []byte) detect.FrameVerdict {
	v := detect.FrameVerdict{
		Blocked: resp.Blocked,
		Reason:  strings.TrimSpace(resp.Reason),
		Width:   resp.Width,
		Height:  resp.Height,
	}
	if v.Width <= 0 || v.Height <= 0 {
		v.Width, v.Height = imageSize(raw)
	}
	for _, obj := range resp.Objects {
		if len(obj.Box) != 4 {
			continue
		}
		box := tracking.Box{
			X1: int(obj.Box[0]), Y1: int(obj.Box[1]),
			X2: int(obj.Box[2]), Y2: int(obj.Box[3]),
		}
		if v.Width > 0 && v.Height > 0 {
			box = tracking.Clamp(box, v.Width, v.Height)
		}
		if box.Empty() {
			continue
		}
		v.Objects = append(v.Objects, tracking.Detection{
			Label:      strings.TrimSpace(obj.Label),
			Confidence: obj.Confidence,
			Box:        box,
		})
	}
	return v
}

func imageSize(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return c.capDelay(statusErr.RetryAfter), true
			}
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoffDelay(attempt), true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return c.backoffDelay(attempt), true
	}
	return 0, false
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.retryBaseDelay
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > c.retryMaxDelay/2 {
			delay = c.retryMaxDelay
			break
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if c.retryMaxDelay > 0 && delay > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
