// Package backend talks to the question-answering service that processes
// videos and answers questions about them.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const maxReplyBytes = 1 << 20

var ErrMalformedReply = errors.New("backend: malformed reply")

// APIError is an error reported by the backend in the reply's error field.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string { return e.Message }

type Client struct {
	mu         sync.RWMutex
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// SetBaseURL points subsequent requests at a different backend.
func (c *Client) SetBaseURL(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = strings.TrimRight(baseURL, "/")
}

func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

type processRequest struct {
	VideoID string `json:"videoId"`
}

type queryRequest struct {
	VideoID  string `json:"videoId"`
	Question string `json:"question"`
}

type clearCacheRequest struct {
	VideoID string `json:"videoId"`
}

type reply struct {
	Error  string  `json:"error"`
	Answer *string `json:"answer"`
}

// Process asks the backend to prepare a video for questions.
func (c *Client) Process(ctx context.Context, videoID string) error {
	_, err := c.post(ctx, "/api/process", processRequest{VideoID: videoID})
	return err
}

// Query asks a question about a processed video and returns the raw answer.
func (c *Client) Query(ctx context.Context, videoID, question string) (string, error) {
	r, err := c.post(ctx, "/api/query", queryRequest{VideoID: videoID, Question: question})
	if err != nil {
		return "", err
	}
	if r.Answer == nil {
		return "", fmt.Errorf("%w: missing answer", ErrMalformedReply)
	}
	return *r.Answer, nil
}

// ClearCache drops the backend's cached state for a video. The reply body is
// ignored; only transport failures are reported.
func (c *Client) ClearCache(ctx context.Context, videoID string) error {
	body, err := json.Marshal(clearCacheRequest{VideoID: videoID})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/clear_cache", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxReplyBytes))
	return nil
}

// Health checks that the backend is reachable.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend health returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*reply, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var r reply
	if err := json.Unmarshal(respBody, &r); err != nil {
		return nil, fmt.Errorf("%w: status %d: %v", ErrMalformedReply, resp.StatusCode, err)
	}

	if r.Error != "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: r.Error}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	return &r, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	return resp, nil
}
