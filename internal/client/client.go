package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lecturenotes/internal/api"
	"lecturenotes/internal/history"
	"lecturenotes/internal/jobs"
	"lecturenotes/internal/results"
)

// APIError is a non-2xx daemon answer.
type APIError struct {
	StatusCode int
	Message    string
	Kind       string
	Hint       string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned %d", e.StatusCode)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to one daemon.
type Client struct {
	base  *url.URL
	token string
	user  string
	http  *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithUser sets the X-User-Email header for history calls.
func WithUser(email string) Option {
	return func(c *Client) { c.user = strings.TrimSpace(email) }
}

// New builds a client for baseURL ("http://host:port" or a bare
// "host:port").
func New(baseURL, token string, opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return nil, errors.New("daemon address is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse daemon address: %w", err)
	}
	c := &Client{
		base:  base,
		token: strings.TrimSpace(token),
		// No overall timeout: uploads and result downloads can be large.
		http: &http.Client{Transport: http.DefaultTransport},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SubmitRequest describes a new job. AudioPath may be empty when
// SkipTranscription is set.
type SubmitRequest struct {
	AudioPath         string
	DeckPath          string
	SkipTranscription bool
	Transcript        string
	UserEmail         string
}

// Submit uploads the files and returns the job id.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	body, writer := io.Pipe()
	mw := multipart.NewWriter(writer)
	go func() {
		writer.CloseWithError(writeSubmitForm(mw, req))
	}()

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/jobs", body)
	if err != nil {
		_ = body.Close()
		return "", err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	var accepted api.JobAccepted
	if err := c.do(httpReq, &accepted); err != nil {
		return "", err
	}
	return accepted.JobID, nil
}

func writeSubmitForm(mw *multipart.Writer, req SubmitRequest) error {
	if err := attachFile(mw, "doc_file", req.DeckPath); err != nil {
		return err
	}
	if req.AudioPath != "" {
		if err := attachFile(mw, "audio_file", req.AudioPath); err != nil {
			return err
		}
	}
	fields := map[string]string{
		"skip_transcription": fmt.Sprint(req.SkipTranscription),
		"transcript":         req.Transcript,
		"user_email":         req.UserEmail,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := mw.WriteField(name, value); err != nil {
			return err
		}
	}
	return mw.Close()
}

func attachFile(mw *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", field, err)
	}
	defer f.Close()
	part, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("upload %s: %w", field, err)
	}
	return nil
}

// Status polls /status/:id.
func (c *Client) Status(ctx context.Context, id string) (jobs.Progress, error) {
	var out jobs.Progress
	return out, c.get(ctx, "/status/"+url.PathEscape(id), &out)
}

// Result fetches the final notes of a completed job.
func (c *Client) Result(ctx context.Context, id string) (results.Notes, error) {
	var out results.Notes
	return out, c.get(ctx, "/result/"+url.PathEscape(id), &out)
}

// Partial fetches the notes saved so far.
func (c *Client) Partial(ctx context.Context, id string) (results.Notes, error) {
	var out results.Notes
	return out, c.get(ctx, "/api/jobs/"+url.PathEscape(id)+"/partial", &out)
}

// Jobs lists every job the daemon knows.
func (c *Client) Jobs(ctx context.Context) ([]api.JobView, error) {
	var out api.JobListResponse
	return out.Jobs, c.get(ctx, "/api/jobs", &out)
}

// Job fetches one job snapshot.
func (c *Client) Job(ctx context.Context, id string) (api.JobView, error) {
	var out api.JobView
	return out, c.get(ctx, "/api/jobs/"+url.PathEscape(id), &out)
}

// Cancel stops a running job.
func (c *Client) Cancel(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// Delete evicts a job, cancelling it first when needed.
func (c *Client) Delete(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/jobs/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// History lists the configured user's saved lectures.
func (c *Client) History(ctx context.Context) ([]history.Record, error) {
	var out api.HistoryListResponse
	return out.Records, c.get(ctx, "/api/history", &out)
}

// HistoryRecord fetches the newest record for filename.
func (c *Client) HistoryRecord(ctx context.Context, filename string) (history.Record, error) {
	var out history.Record
	return out, c.get(ctx, "/api/history/"+url.PathEscape(filename), &out)
}

// DeleteHistory removes every record for filename.
func (c *Client) DeleteHistory(ctx context.Context, filename string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/history/"+url.PathEscape(filename), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// SearchHistory ranks stored slides against query.
func (c *Client) SearchHistory(ctx context.Context, query string, limit int) ([]history.Hit, error) {
	values := url.Values{"q": {query}}
	if limit > 0 {
		values.Set("limit", fmt.Sprint(limit))
	}
	var out api.SearchResponse
	return out.Hits, c.get(ctx, "/api/history/search?"+values.Encode(), &out)
}

// Health runs the daemon's preflight checks. A 503 still decodes the
// checks so callers can show which one failed.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return api.HealthResponse{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return api.HealthResponse{}, fmt.Errorf("contact daemon: %w", err)
	}
	defer resp.Body.Close()
	var out api.HealthResponse
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return out, decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode health: %w", err)
	}
	return out, nil
}

// Ping is the daemon liveness probe.
func (c *Client) Ping(ctx context.Context) (api.PingResponse, error) {
	var out api.PingResponse
	return out, c.get(ctx, "/api/ping", &out)
}

// WaitForCompletion polls Status until the job is terminal.
func (c *Client) WaitForCompletion(ctx context.Context, id string, interval time.Duration, onProgress func(jobs.Progress)) (jobs.Progress, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var last jobs.Progress
	for {
		p, err := c.Status(ctx, id)
		if err != nil {
			return last, err
		}
		if onProgress != nil && p != last {
			onProgress(p)
		}
		last = p
		if p.Progress >= 100 || p.Progress == jobs.ProgressFailed {
			return p, nil
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("build request path: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.ResolveReference(ref).String(), body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.user != "" {
		req.Header.Set("X-User-Email", c.user)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contact daemon: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body api.ErrorResponse
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		apiErr.Message, apiErr.Kind, apiErr.Hint = body.Error, body.Kind, body.Hint
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
