// Package scanner is the HTTP client for the vulnerability scanner's
// detection and knowledge-base endpoints. Responses are returned as raw
// blobs; the tolerant parsing lives in qparse and knowledge.
package scanner

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Filters narrows a detection pull. Statuses defaults to the non-fixed set;
// Truncation caps the host count per response page (0 = server default).
type Filters struct {
	Statuses   []string
	Truncation int
}

// DefaultStatuses is the detection status set pulled for reconciliation.
// Fixed detections are deliberately excluded.
var DefaultStatuses = []string{"New", "Active", "Re-Opened"}

// API is the scanner surface consumed by the run orchestrator.
type API interface {
	PullDetections(ctx context.Context, filters Filters) (string, error)
	FetchKnowledgeBatch(ctx context.Context, qids []string) (string, error)
}

// Client talks to a Qualys-style VM API using basic auth.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// NewClient builds a Client for the given API root.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http:     &http.Client{Timeout: 5 * time.Minute},
	}
}

// PullDetections fetches the current detection list as a raw blob.
func (c *Client) PullDetections(ctx context.Context, filters Filters) (string, error) {
	statuses := filters.Statuses
	if len(statuses) == 0 {
		statuses = DefaultStatuses
	}

	form := url.Values{}
	form.Set("action", "list")
	form.Set("status", strings.Join(statuses, ","))
	form.Set("show_igs", "0")
	if filters.Truncation > 0 {
		form.Set("truncation_limit", strconv.Itoa(filters.Truncation))
	}

	return c.post(ctx, "/api/2.0/fo/asset/host/vm/detection/", form)
}

// FetchKnowledgeBatch fetches knowledge-base entries for a batch of QIDs.
func (c *Client) FetchKnowledgeBatch(ctx context.Context, qids []string) (string, error) {
	form := url.Values{}
	form.Set("action", "list")
	form.Set("details", "Basic")
	form.Set("ids", strings.Join(qids, ","))

	return c.post(ctx, "/api/2.0/fo/knowledge_base/vuln/", form)
}

func (c *Client) post(ctx context.Context, path string, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Requested-With", "go-recon")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("received status code %d from scanner API", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	return string(body), nil
}
