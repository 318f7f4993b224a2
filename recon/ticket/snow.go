package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SnowStore is a Store over a ServiceNow-style table REST API. Creating a
// ticket posts to the table endpoint on behalf of the exception catalog item;
// work notes go through the journal field, which the platform appends rather
// than replaces.
type SnowStore struct {
	baseURL  string
	table    string
	username string
	password string
	http     *http.Client
}

// NewSnowStore builds a store for the given instance and ticket table.
func NewSnowStore(baseURL, table, username, password string) *SnowStore {
	return &SnowStore{
		baseURL:  strings.TrimRight(baseURL, "/"),
		table:    table,
		username: username,
		password: password,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
}

type tableResponse struct {
	Result []Ticket `json:"result"`
}

type recordResponse struct {
	Result Ticket `json:"result"`
}

// ListOpenTickets returns every non-terminal ticket for the catalog item.
func (s *SnowStore) ListOpenTickets(ctx context.Context, catalogItemID string) ([]Ticket, error) {
	query := url.Values{}
	query.Set("sysparm_query", fmt.Sprintf("cat_item=%s^stateNOT IN%s,%s,%s",
		catalogItemID, StateClosed, StateCancelled, StateCompleted))
	query.Set("sysparm_limit", "10000")

	body, err := s.do(ctx, http.MethodGet, s.tableURL("")+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp tableResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ticket list: %w", err)
	}
	return resp.Result, nil
}

// FindOpenTicket scans the open tickets for the catalog item and returns the
// first whose stored QID field equals qid exactly, or (nil, nil) when none
// does. The store keeps no index on the QID field, so this is a linear scan.
func (s *SnowStore) FindOpenTicket(ctx context.Context, catalogItemID, qid string) (*Ticket, error) {
	tickets, err := s.ListOpenTickets(ctx, catalogItemID)
	if err != nil {
		return nil, err
	}
	for i := range tickets {
		if tickets[i].QID == qid {
			return &tickets[i], nil
		}
	}
	return nil, nil
}

// CreateTicket instantiates a new ticket for the catalog item.
func (s *SnowStore) CreateTicket(ctx context.Context, catalogItemID string, fields Fields) (*Ticket, error) {
	payload := map[string]string{"cat_item": catalogItemID}
	for k, v := range fields {
		payload[k] = v
	}

	body, err := s.do(ctx, http.MethodPost, s.tableURL(""), payload)
	if err != nil {
		return nil, err
	}

	var resp recordResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal created ticket: %w", err)
	}
	return &resp.Result, nil
}

// UpdateTicket patches the given fields onto the ticket record.
func (s *SnowStore) UpdateTicket(ctx context.Context, t *Ticket, fields Fields) error {
	_, err := s.do(ctx, http.MethodPatch, s.tableURL(t.SysID), fields)
	return err
}

// AppendWorkNote writes one entry to the ticket's work-note journal.
func (s *SnowStore) AppendWorkNote(ctx context.Context, t *Ticket, note string) error {
	_, err := s.do(ctx, http.MethodPatch, s.tableURL(t.SysID), map[string]string{"work_notes": note})
	return err
}

// DeleteTicket removes the ticket record outright. Used by the self-test
// cleanup and the purge utility only.
func (s *SnowStore) DeleteTicket(ctx context.Context, t *Ticket) error {
	_, err := s.do(ctx, http.MethodDelete, s.tableURL(t.SysID), nil)
	return err
}

func (s *SnowStore) tableURL(sysID string) string {
	u := fmt.Sprintf("%s/api/now/table/%s", s.baseURL, s.table)
	if sysID != "" {
		u += "/" + sysID
	}
	return u
}

func (s *SnowStore) do(ctx context.Context, method, rawURL string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(s.username, s.password)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("received status code %d from ticket store", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
