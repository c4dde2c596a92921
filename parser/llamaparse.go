package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const defaultLlamaParseURL = "https://api.cloud.llamaindex.ai/api/parsing"

// LlamaParseConfig configures the hosted LlamaParse service.
type LlamaParseConfig struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration // delay between job status checks (default 5s)
	MaxPolls     int           // status checks before giving up (default 120)
	RetryDelay   time.Duration // base backoff for transient HTTP failures (default 2s)
	MaxRetries   int           // default 4
}

// LlamaParse converts documents through the LlamaParse REST API.
type LlamaParse struct {
	cfg    LlamaParseConfig
	client *http.Client
}

func NewLlamaParse(cfg LlamaParseConfig) *LlamaParse {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultLlamaParseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 120
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 4
	}
	return &LlamaParse{cfg: cfg, client: &http.Client{Timeout: 120 * time.Second}}
}

func (p *LlamaParse) Name() string { return "llamaparse" }

func (p *LlamaParse) Convert(ctx context.Context, path string, formats []Format) (*Result, error) {
	if p.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("input file: %w", err)
	}

	jobID, err := p.uploadFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("uploading to LlamaParse: %w", err)
	}
	slog.Info("convert: job submitted", "file", filepath.Base(path), "job_id", jobID)

	if err := p.waitForJob(ctx, jobID); err != nil {
		return nil, fmt.Errorf("waiting for LlamaParse job %s: %w", jobID, err)
	}

	res := &Result{Method: p.Name()}
	if wants(formats, FormatJSON) {
		body, err := p.fetchResult(ctx, jobID, "json")
		if err != nil {
			return nil, err
		}
		docs, err := DecodeDocuments(body)
		if err != nil {
			return nil, err
		}
		for i := range docs {
			if docs[i].FilePath == "" {
				docs[i].FilePath = path
			}
		}
		res.Documents = docs
	}
	if wants(formats, FormatMarkdown) {
		body, err := p.fetchResult(ctx, jobID, "markdown")
		if err != nil {
			return nil, err
		}
		var out struct {
			Markdown string `json:"markdown"`
		}
		if err := json.Unmarshal(body, &out); err != nil {
			res.Markdown = string(body) // raw fallback
		} else {
			res.Markdown = out.Markdown
		}
	}
	if wants(formats, FormatText) {
		body, err := p.fetchResult(ctx, jobID, "text")
		if err != nil {
			return nil, err
		}
		var out struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(body, &out); err != nil {
			res.Text = string(body)
		} else {
			res.Text = out.Text
		}
	}
	return res, nil
}

func (p *LlamaParse) uploadFile(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	writer.Close()

	payload := body.Bytes()
	respBody, err := p.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/upload", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return req, nil
	})
	if err != nil {
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("upload response carried no job id")
	}
	return result.ID, nil
}

// waitForJob polls the job status endpoint until the job succeeds, fails,
// or MaxPolls is reached.
func (p *LlamaParse) waitForJob(ctx context.Context, jobID string) error {
	url := fmt.Sprintf("%s/job/%s", p.cfg.BaseURL, jobID)
	for i := 0; i < p.cfg.MaxPolls; i++ {
		body, err := p.do(ctx, func() (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		})
		if err != nil {
			return err
		}

		var status struct {
			Status       string `json:"status"`
			ErrorMessage string `json:"error_message"`
		}
		if err := json.Unmarshal(body, &status); err != nil {
			return fmt.Errorf("decoding job status: %w", err)
		}

		switch strings.ToUpper(status.Status) {
		case "SUCCESS":
			return nil
		case "ERROR", "CANCELED", "CANCELLED":
			if status.ErrorMessage != "" {
				return fmt.Errorf("job %s: %s", strings.ToLower(status.Status), status.ErrorMessage)
			}
			return fmt.Errorf("job %s", strings.ToLower(status.Status))
		}

		slog.Debug("convert: job pending", "job_id", jobID, "status", status.Status, "poll", i+1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.cfg.PollInterval):
		}
	}
	return fmt.Errorf("LlamaParse job timed out after %d polls", p.cfg.MaxPolls)
}

func (p *LlamaParse) fetchResult(ctx context.Context, jobID, kind string) ([]byte, error) {
	url := fmt.Sprintf("%s/job/%s/result/%s", p.cfg.BaseURL, jobID, kind)
	body, err := p.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s result: %w", kind, err)
	}
	return body, nil
}

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

// do sends the request built by newReq, retrying network errors and
// retryable status codes with exponential backoff.
func (p *LlamaParse) do(ctx context.Context, newReq func() (*http.Request, error)) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.cfg.RetryDelay * time.Duration(1<<(attempt-1))
			slog.Warn("llamaparse: retrying request", "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := newReq()
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
		req.Header.Set("Accept", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading response body: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		lastErr = fmt.Errorf("LlamaParse error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if !retryableStatusCode(resp.StatusCode) {
			return nil, lastErr
		}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				select {
				case <-time.After(time.Duration(seconds) * time.Second):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
		}
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
