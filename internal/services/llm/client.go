package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"lecturenotes/internal/config"
	"lecturenotes/internal/services"
)

const (
	defaultHTTPTimeout    = 120 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 3
)

// Config captures the runtime settings required to talk to the endpoint.
type Config struct {
	APIKey          string
	BaseURL         string
	TranscribeModel string
	CaptionModel    string
	EmbedModel      string
	NoteModel       string
	ClassifyModel   string
	TimeoutSeconds  int
}

// Client wraps go-openai with bounded retries.
type Client struct {
	cfg Config
	api *openai.Client

	httpClient       *http.Client
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

// WithRetryMaxAttempts overrides the default retry count (defaults to 3).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
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

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:          strings.TrimSpace(cfg.APIKey),
			BaseURL:         strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TranscribeModel: strings.TrimSpace(cfg.TranscribeModel),
			CaptionModel:    strings.TrimSpace(cfg.CaptionModel),
			EmbedModel:      strings.TrimSpace(cfg.EmbedModel),
			NoteModel:       strings.TrimSpace(cfg.NoteModel),
			ClassifyModel:   strings.TrimSpace(cfg.ClassifyModel),
			TimeoutSeconds:  cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.ClassifyModel == "" {
		client.cfg.ClassifyModel = client.cfg.NoteModel
	}

	apiCfg := openai.DefaultConfig(client.cfg.APIKey)
	if client.cfg.BaseURL != "" {
		apiCfg.BaseURL = client.cfg.BaseURL
	}
	apiCfg.HTTPClient = client.httpClient
	client.api = openai.NewClientWithConfig(apiCfg)
	return client
}

// FromConfig builds a client from the [llm] section.
func FromConfig(cfg *config.Config, opts ...Option) *Client {
	opts = append([]Option{WithRetryMaxAttempts(cfg.LLM.RetryAttempts)}, opts...)
	return NewClient(Config{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		TranscribeModel: cfg.LLM.TranscribeModel,
		CaptionModel:    cfg.LLM.CaptionModel,
		EmbedModel:      cfg.LLM.EmbedModel,
		NoteModel:       cfg.LLM.NoteModel,
		ClassifyModel:   cfg.LLM.ClassifyModel,
		TimeoutSeconds:  cfg.LLM.TimeoutSeconds,
	}, opts...)
}

// HealthCheck lists models to verify the key and endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return services.Wrap(services.ErrConfiguration, "llm", "health", "api key required", nil)
	}
	return c.withRetry(ctx, "llm health", func() error {
		_, err := c.api.ListModels(ctx)
		return err
	})
}

func (c *Client) requireKey(op string) error {
	if c.cfg.APIKey == "" {
		return services.Wrap(services.ErrConfiguration, "llm", op, "api key required", nil)
	}
	return nil
}

// withRetry runs call until it succeeds, fails permanently, or attempts run
// out. The returned error is tagged with a services marker.
func (c *Client) withRetry(ctx context.Context, op string, call func() error) error {
	attempts := c.retryAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := call()
		if err == nil {
			return nil
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
	return tagError(op, lastErr)
}

func tagError(op string, err error) error {
	marker := services.ErrExternalService
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		marker = services.ErrTimeout
	} else if errors.Is(err, context.Canceled) {
		marker = services.ErrCancelled
	}
	return services.Wrap(marker, "llm", op, "", err)
}

func (c *Client) retryAttempts() int {
	if c == nil || c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	if errors.Is(err, errEmptyContent) {
		return c.backoffDelay(attempt), true
	}
	if status, ok := httpStatus(err); ok {
		switch {
		case status == http.StatusRequestTimeout,
			status == http.StatusTooManyRequests,
			status >= http.StatusInternalServerError:
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}
	if isTimeout(err) {
		return c.backoffDelay(attempt), true
	}
	return 0, false
}

// httpStatus extracts the response status from go-openai errors.
func httpStatus(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := defaultRetryBaseDelay
	maxDelay := defaultRetryMaxDelay
	if c != nil {
		if c.retryBaseDelay >= 0 {
			base = c.retryBaseDelay
		}
		if c.retryMaxDelay > 0 {
			maxDelay = c.retryMaxDelay
		}
	}
	if base <= 0 {
		return 0
	}
	// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
	delay := base
	for i := 1; i < max(attempt, 1); i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
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
	maxDelay := defaultRetryMaxDelay
	if c != nil && c.retryMaxDelay > 0 {
		maxDelay = c.retryMaxDelay
	}
	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c != nil && c.sleeper != nil {
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

var errEmptyContent = errors.New("empty content")

// chat runs a single-choice chat completion and returns its trimmed content.
func (c *Client) chat(ctx context.Context, op string, req openai.ChatCompletionRequest) (string, error) {
	if err := c.requireKey(op); err != nil {
		return "", err
	}
	var content string
	err := c.withRetry(ctx, op, func() error {
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		for _, choice := range resp.Choices {
			if text := strings.TrimSpace(choice.Message.Content); text != "" {
				content = text
				return nil
			}
		}
		finish := ""
		if len(resp.Choices) > 0 {
			finish = string(resp.Choices[0].FinishReason)
		}
		return fmt.Errorf("%w (finish_reason=%q)", errEmptyContent, finish)
	})
	return content, err
}
