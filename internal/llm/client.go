// Package llm talks to an OpenAI-compatible Responses API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"hybridhouse/internal/httpx"
	"hybridhouse/internal/logger"
)

var ErrNotConfigured = errors.New("llm: api key not configured")

// InputMessage is one conversation turn sent to the provider. Only role and
// content are accepted upstream.
type InputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Input              []InputMessage
	PromptID           string
	Instructions       string
	PreviousResponseID string
}

type Response struct {
	ID string
	// Outputs holds the text of each assistant message, in order.
	Outputs []string
}

// Client is the completion provider used by the interview engine.
type Client interface {
	Create(ctx context.Context, req Request) (*Response, error)
}

type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
}

type client struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxRetries  int
	httpClient  *http.Client
	log         *zap.Logger
}

// sleep is swapped in tests.
var sleep = httpx.Sleep

func NewClient(opts Options, log *zap.Logger) Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.openai.com"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	model := opts.Model
	if model == "" {
		model = "gpt-4.1"
	}
	return &client{
		apiKey:      opts.APIKey,
		baseURL:     base,
		model:       model,
		temperature: opts.Temperature,
		maxRetries:  opts.MaxRetries,
		httpClient:  &http.Client{Timeout: timeout},
		log:         log.With(zap.String("component", "llm")),
	}
}

type promptRef struct {
	ID string `json:"id"`
}

type responsesRequest struct {
	Model              string         `json:"model"`
	Input              []InputMessage `json:"input"`
	Prompt             *promptRef     `json:"prompt,omitempty"`
	Instructions       string         `json:"instructions,omitempty"`
	PreviousResponseID string         `json:"previous_response_id,omitempty"`
	Store              bool           `json:"store"`
	Temperature        *float64       `json:"temperature,omitempty"`
}

type responsesResponse struct {
	ID     string `json:"id"`
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
}

// outputTexts returns the first text part of every message output item.
func outputTexts(resp responsesResponse) []string {
	var out []string
	for _, item := range resp.Output {
		if item.Type != "" && item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Text != "" {
				out = append(out, c.Text)
				break
			}
		}
	}
	return out
}

func (c *client) Create(ctx context.Context, r Request) (*Response, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	body := responsesRequest{
		Model:              c.model,
		Input:              r.Input,
		Instructions:       r.Instructions,
		PreviousResponseID: r.PreviousResponseID,
		Store:              true,
	}
	if r.PromptID != "" {
		body.Prompt = &promptRef{ID: r.PromptID}
	}
	if c.temperature > 0 {
		t := c.temperature
		body.Temperature = &t
	}

	var raw responsesResponse
	if err := c.do(ctx, http.MethodPost, "/v1/responses", body, &raw); err != nil {
		return nil, err
	}
	out := &Response{ID: raw.ID, Outputs: outputTexts(raw)}
	if len(out.Outputs) == 0 {
		return nil, fmt.Errorf("llm: response %s has no output text", raw.ID)
	}
	c.log.Debug("llm response",
		zap.String("response_id", out.ID),
		zap.Int("outputs", len(out.Outputs)),
		zap.String("text", logger.Truncate(out.Outputs[0], 200)),
	)
	return out, nil
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &httpx.StatusError{Service: "openai", StatusCode: resp.StatusCode, Body: logger.Truncate(string(raw), 500)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 1 * time.Second
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w", uErr)
			}
			return nil
		}
		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("OpenAI request retrying",
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", c.maxRetries),
			zap.Duration("sleep", sleepFor),
			zap.Error(err),
		)
		if err := sleep(ctx, sleepFor); err != nil {
			return err
		}
		backoff *= 2
	}
	return fmt.Errorf("unreachable retry loop")
}
