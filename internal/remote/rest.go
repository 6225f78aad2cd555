package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"
)

// defaultTimeout bounds every request to the REST backend. The underlying
// transport imposes none of its own.
const defaultTimeout = 15 * time.Second

// RESTStore talks to a PostgREST-style endpoint: one route per table,
// equality filters as "column=eq.value" query parameters, order as an
// "order=column.asc|desc" parameter.
type RESTStore struct {
	baseURL string
	apiKey  string
	token   string
	table   string
	client  *http.Client
}

// RESTOption customizes a RESTStore.
type RESTOption func(*RESTStore)

// WithHTTPClient substitutes the HTTP client (used by tests).
func WithHTTPClient(c *http.Client) RESTOption {
	return func(s *RESTStore) { s.client = c }
}

// WithBearerToken sets the per-user bearer credential. When empty, the
// api key doubles as the bearer token (anonymous access).
func WithBearerToken(token string) RESTOption {
	return func(s *RESTStore) { s.token = token }
}

// NewRESTStore creates a Store backed by the REST endpoint at baseURL.
func NewRESTStore(baseURL, apiKey, table string, opts ...RESTOption) *RESTStore {
	s := &RESTStore{
		baseURL: baseURL,
		apiKey:  apiKey,
		token:   apiKey,
		table:   table,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.token == "" {
		s.token = apiKey
	}
	return s
}

// Insert implements Store.Insert.
func (s *RESTStore) Insert(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	_, err = s.do(ctx, http.MethodPost, Query{}, body)
	return err
}

// Select implements Store.Select. A malformed response body is treated as
// an empty result set rather than an error, so partial data never
// corrupts local state.
func (s *RESTStore) Select(ctx context.Context, q Query) ([]Record, error) {
	data, err := s.do(ctx, http.MethodGet, q, nil)
	if err != nil {
		return nil, err
	}

	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return []Record{}, nil
	}
	return recs, nil
}

// Update implements Store.Update.
func (s *RESTStore) Update(ctx context.Context, p Patch, q Query) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal patch: %w", err)
	}
	_, err = s.do(ctx, http.MethodPatch, q, body)
	return err
}

// Delete implements Store.Delete.
func (s *RESTStore) Delete(ctx context.Context, q Query) error {
	_, err := s.do(ctx, http.MethodDelete, q, nil)
	return err
}

// do issues one request and returns the response body. Any transport
// failure or non-2xx status wraps ErrUnavailable.
func (s *RESTStore) do(ctx context.Context, method string, q Query, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.endpoint(q), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.token)
	if method == http.MethodPost {
		// Re-inserting an existing (user, task, day) row must converge,
		// not conflict.
		req.Header.Set("Prefer", "resolution=merge-duplicates")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s %s returned status %d", ErrUnavailable, method, s.table, resp.StatusCode)
	}
	return data, nil
}

func (s *RESTStore) endpoint(q Query) string {
	params := url.Values{}

	// Sorted for a deterministic URL; PostgREST does not care, tests do.
	cols := make([]string, 0, len(q.Eq))
	for col := range q.Eq {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		params.Add(col, "eq."+q.Eq[col])
	}

	if q.OrderBy != "" {
		dir := "asc"
		if q.Descending {
			dir = "desc"
		}
		params.Add("order", q.OrderBy+"."+dir)
	}

	endpoint := s.baseURL + "/rest/v1/" + s.table
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	return endpoint
}
