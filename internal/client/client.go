// Package client talks to the docs-assistant HTTP API on behalf of the
// transcript store.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gwi.com/docs-assistant/internal/transcript"
)

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

// WithToken sends token as a bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout bounds every request. Zero keeps requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ transcript.Backend = (*Client)(nil)

type historyEntry struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Images   []string `json:"images"`
	Date     string   `json:"date"`
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer string   `json:"answer"`
	Images []string `json:"images"`
}

// FetchHistory returns the server-held history, oldest first.
func (c *Client) FetchHistory(ctx context.Context) ([]transcript.Record, error) {
	var entries []historyEntry
	if err := c.do(ctx, http.MethodGet, "/api/history", nil, &entries); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	records := make([]transcript.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, transcript.Record{
			Question: e.Question,
			Answer:   e.Answer,
			Images:   e.Images,
		})
	}
	return records, nil
}

func (c *Client) Ask(ctx context.Context, question string) (transcript.Reply, error) {
	var resp askResponse
	if err := c.do(ctx, http.MethodPost, "/api/ask", askRequest{Question: question}, &resp); err != nil {
		return transcript.Reply{}, fmt.Errorf("ask: %w", err)
	}
	if resp.Images == nil {
		resp.Images = []string{}
	}
	return transcript.Reply{Answer: resp.Answer, Images: resp.Images}, nil
}

func (c *Client) DeleteHistory(ctx context.Context) error {
	if err := c.do(ctx, http.MethodDelete, "/api/history", nil, nil); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeStatusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeStatusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &StatusError{Code: resp.StatusCode, Message: msg}
}
