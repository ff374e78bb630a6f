package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"banana-studio-backend/internal/jobs"
)

const DefaultQueueURL = "https://queue.fal.run"

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// File is a media file hosted by fal.
type File struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	FileSize    int64  `json:"file_size,omitempty"`
}

type queueResponse struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
	Video       *File  `json:"video"`
	Image       *File  `json:"image"`
}

type StatusResponse struct {
	Status        string `json:"status"` // "IN_QUEUE", "IN_PROGRESS", "COMPLETED", "FAILED", "ERROR"
	QueuePosition int    `json:"queue_position,omitempty"`
	Error         string `json:"error,omitempty"`
}

func NewClient(baseURL, apiKey string) *Client {
	return NewClientWithHTTP(baseURL, apiKey, &http.Client{
		Timeout: 60 * time.Second,
	})
}

func NewClientWithHTTP(baseURL, apiKey string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultQueueURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// DecodeSubmission turns a submit response into Immediate when it already
// carries media, or Queued when it carries a request id.
func DecodeSubmission(model string, body []byte) (jobs.Submission, error) {
	var r queueResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	if out := outputFrom(r.Video, r.Image, body); out != nil {
		return jobs.Immediate{Output: *out}, nil
	}
	if r.RequestID != "" {
		return jobs.Queued{Handle: jobs.Handle{
			RequestID:   r.RequestID,
			Model:       model,
			StatusURL:   r.StatusURL,
			ResponseURL: r.ResponseURL,
		}}, nil
	}
	return nil, fmt.Errorf("response has neither a result nor a request_id, body: %s", string(body))
}

func outputFrom(video, image *File, raw []byte) *jobs.Output {
	file := video
	if file == nil || file.URL == "" {
		file = image
	}
	if file == nil || file.URL == "" {
		return nil
	}
	return &jobs.Output{
		URL:         file.URL,
		ContentType: file.ContentType,
		FileName:    file.FileName,
		Raw:         json.RawMessage(raw),
	}
}

// appID is the owner/app prefix of a model path; queue status lives there.
func appID(model string) string {
	parts := strings.Split(model, "/")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, "/")
}

func (c *Client) Submit(ctx context.Context, model string, payload any) (jobs.Submission, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	body, status, err := c.do(ctx, http.MethodPost, c.baseURL+"/"+model, jsonData)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("failed to submit to %s: status %d, body: %s", model, status, string(body))
	}

	return DecodeSubmission(model, body)
}

func (c *Client) GetStatus(ctx context.Context, handle jobs.Handle) (*StatusResponse, error) {
	url := handle.StatusURL
	if url == "" {
		url = fmt.Sprintf("%s/%s/requests/%s/status", c.baseURL, appID(handle.Model), handle.RequestID)
	}

	body, status, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusAccepted {
		return nil, fmt.Errorf("failed to get status: status %d, body: %s", status, string(body))
	}

	var result StatusResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}
	return &result, nil
}

// GetResult fetches the payload of a completed request. A non-success status
// here means the provider rejected the job, so it is reported as a failure
// message rather than a transport error.
func (c *Client) GetResult(ctx context.Context, handle jobs.Handle) (*jobs.Output, string, error) {
	url := handle.ResponseURL
	if url == "" {
		url = fmt.Sprintf("%s/%s/requests/%s", c.baseURL, appID(handle.Model), handle.RequestID)
	}

	body, status, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	if status < 200 || status >= 300 {
		return nil, errorDetail(body, status), nil
	}

	var r queueResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}
	out := outputFrom(r.Video, r.Image, body)
	if out == nil {
		return &jobs.Output{Raw: json.RawMessage(body)}, "", nil
	}
	return out, "", nil
}

func errorDetail(body []byte, status int) string {
	var e struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Error != "" {
			return e.Error
		}
		if s, ok := e.Detail.(string); ok && s != "" {
			return s
		}
		if e.Detail != nil {
			if b, err := json.Marshal(e.Detail); err == nil {
				return string(b)
			}
		}
	}
	return fmt.Sprintf("request failed with status %d: %s", status, strings.TrimSpace(string(body)))
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Key "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}
