// Package source talks to the appforms REST endpoint that owns submission status.
package source

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
	"strings"
	"time"

	"github.com/cancetinn/ldm-discord/model"
)

var (
	// ErrFetch marks a failed list or get. The poller retries on its next tick.
	ErrFetch = errors.New("fetch submissions")
	// ErrUpdate marks a status update the source did not confirm.
	ErrUpdate = errors.New("update submission status")
	// ErrNotFound is returned by Get when the source has no such submission.
	ErrNotFound = errors.New("submission not found")
)

const (
	listPath   = "form-data"
	updatePath = "update-form"

	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

// Client is a thin wrapper around the submissions API.
type Client struct {
	baseURL    string
	credential string
	timeout    time.Duration
	http       *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the API rooted at cfg.BaseURL,
// e.g. http://lidoma-new.local/wp-json/appforms/v1.
func NewClient(cfg model.Source, httpClient *http.Client) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("source base url is empty")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse source base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    base,
		credential: cfg.Credential,
		timeout:    timeout,
		http:       httpClient,
		logger:     slog.Default(),
	}, nil
}

// WithLogger sets the logger used to report records the client skips.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// List returns every submission the source currently exposes. Records that
// cannot be decoded are logged and left out so one bad record does not hide
// the rest.
func (c *Client) List(ctx context.Context) ([]model.Submission, error) {
	var raw []json.RawMessage
	if err := c.getJSON(ctx, c.baseURL+"/"+listPath, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	subs := make([]model.Submission, 0, len(raw))
	for i, rec := range raw {
		var sub model.Submission
		if err := json.Unmarshal(rec, &sub); err != nil {
			c.logger.Warn("skipping undecodable submission", "index", i, "record", clipRecord(rec), "error", err)
			continue
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func clipRecord(rec json.RawMessage) string {
	if len(rec) > maxErrorBody {
		return string(rec[:maxErrorBody]) + "..."
	}
	return string(rec)
}

// Get fetches a single submission by id.
func (c *Client) Get(ctx context.Context, id string) (model.Submission, error) {
	var sub model.Submission
	err := c.getJSON(ctx, c.baseURL+"/"+listPath+"/"+url.PathEscape(id), &sub)
	if err != nil {
		return model.Submission{}, fmt.Errorf("%w %s: %w", ErrFetch, id, err)
	}
	return sub, nil
}

type updateRequest struct {
	SubmissionID string `json:"submissionId"`
	Status       string `json:"status"`
}

// UpdateStatus persists a review decision. Any non-2xx answer is a failure.
func (c *Client) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	body, err := json.Marshal(updateRequest{SubmissionID: id, Status: string(status)})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+updatePath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrUpdate, id, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("%w %s: %w", ErrUpdate, id, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.credential != "" {
		req.Header.Set("Authorization", "Bearer "+c.credential)
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("HTTP error! Status: %d %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}
