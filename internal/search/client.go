// internal/search/client.go
// Package search provides a client for the OpenSearch-compatible cluster that
// fixtures are provisioned into and that generated queries are verified
// against. The harness only needs a narrow slice of the cluster API: index
// lifecycle, bulk writes, and the query endpoints used for secondary
// verification.
package search

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

	"github.com/askbench/askbench/internal/appconfig"
	"github.com/askbench/askbench/internal/logging"
)

// Client talks to a single cluster over HTTP.
type Client struct {
	client   *http.Client
	baseURL  string
	username string
	password string
	timeout  time.Duration
	debug    bool
}

// New constructs a Client configured with the application's request timeout.
func New(cfg *appconfig.Config) *Client {
	timeout := cfg.RequestTimeout()
	return &Client{
		client: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{ForceAttemptHTTP2: false},
		},
		baseURL:  strings.TrimRight(cfg.Cluster.URL, "/"),
		username: cfg.Cluster.Username,
		password: cfg.Cluster.Password,
		timeout:  timeout,
		debug:    cfg.Debug,
	}
}

// ResponseError is a non-2xx reply from the cluster, carrying the error type
// reported in the response body so callers can branch on it.
type ResponseError struct {
	StatusCode int
	Type       string
	Reason     string
}

func (e *ResponseError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("cluster returned %d: %s: %s", e.StatusCode, e.Type, e.Reason)
	}
	return fmt.Sprintf("cluster returned %d: %s", e.StatusCode, e.Reason)
}

// IsAlreadyExists reports whether err is the cluster's duplicate-index error.
func IsAlreadyExists(err error) bool {
	respErr, ok := err.(*ResponseError)
	return ok && respErr.Type == "resource_already_exists_exception"
}

type errorBody struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// do issues one request and decodes error replies into ResponseError.
func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + path
	if body != nil {
		logging.LogRequest("BENCH->CLUSTER", c.baseURL, path, body)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if c.debug {
		logging.LogRequest("CLUSTER->BENCH", c.baseURL, path, respBody)
	}

	if resp.StatusCode >= 400 {
		var parsed errorBody
		if err := json.Unmarshal(respBody, &parsed); err == nil && parsed.Error.Type != "" {
			return nil, &ResponseError{
				StatusCode: resp.StatusCode,
				Type:       parsed.Error.Type,
				Reason:     parsed.Error.Reason,
			}
		}
		return nil, &ResponseError{
			StatusCode: resp.StatusCode,
			Reason:     strings.TrimSpace(string(respBody)),
		}
	}

	return respBody, nil
}

// CatIndices returns the names of all indices present in the cluster.
func (c *Client) CatIndices(ctx context.Context) ([]string, error) {
	body, err := c.do(ctx, http.MethodGet, "/_cat/indices?h=index&format=json", nil, "")
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Index string `json:"index"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("parse cat indices response: %w", err)
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.Index)
	}
	return names, nil
}

// CreateIndex creates an index with the given mapping definition.
func (c *Client) CreateIndex(ctx context.Context, name string, mappings json.RawMessage) error {
	payload, err := json.Marshal(map[string]json.RawMessage{"mappings": mappings})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPut, "/"+url.PathEscape(name), payload, "application/json")
	return err
}

// DeleteIndices deletes the named indices in one call. Missing indices are
// not an error (ignore_unavailable).
func (c *Client) DeleteIndices(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	path := "/" + url.PathEscape(strings.Join(names, ",")) + "?ignore_unavailable=true"
	_, err := c.do(ctx, http.MethodDelete, path, nil, "")
	return err
}

// BulkIndex writes documents into an index with refresh-on-write, so the
// documents are visible to searches as soon as the call returns. Documents
// with a non-empty id are indexed under that id.
func (c *Client) BulkIndex(ctx context.Context, index string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, doc := range docs {
		action := map[string]map[string]string{"index": {"_index": index}}
		if doc.ID != "" {
			action["index"]["_id"] = doc.ID
		}
		actionLine, err := json.Marshal(action)
		if err != nil {
			return err
		}
		buf.Write(actionLine)
		buf.WriteByte('\n')
		buf.Write(doc.Source)
		buf.WriteByte('\n')
	}

	_, err := c.do(ctx, http.MethodPost, "/_bulk?refresh=true", buf.Bytes(), "application/x-ndjson")
	return err
}

// Document is one seed document destined for a fixture index.
type Document struct {
	ID     string
	Source json.RawMessage
}

// GetMapping returns the mapping definition of an index.
func (c *Client) GetMapping(ctx context.Context, index string) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(index)+"/_mapping", nil, "")
	if err != nil {
		return nil, err
	}
	var parsed map[string]struct {
		Mappings json.RawMessage `json:"mappings"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse mapping response: %w", err)
	}
	entry, ok := parsed[index]
	if !ok {
		return nil, fmt.Errorf("mapping response has no entry for index %q", index)
	}
	return entry.Mappings, nil
}

// SearchResponse is the hits envelope returned by _search.
type SearchResponse struct {
	Hits struct {
		Hits []Hit `json:"hits"`
	} `json:"hits"`
}

// Hit is a single search result document.
type Hit struct {
	Index  string          `json:"_index"`
	ID     string          `json:"_id"`
	Score  float64         `json:"_score"`
	Source json.RawMessage `json:"_source"`
}

// Sample returns up to size documents from an index.
func (c *Client) Sample(ctx context.Context, index string, size int) (*SearchResponse, error) {
	path := fmt.Sprintf("/%s/_search?size=%d", url.PathEscape(index), size)
	body, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	var parsed SearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}
	return &parsed, nil
}

// SearchDSL executes a raw query-DSL body against an index.
func (c *Client) SearchDSL(ctx context.Context, index, query string) (*SearchResponse, error) {
	path := "/" + url.PathEscape(index) + "/_search"
	body, err := c.do(ctx, http.MethodGet, path, []byte(query), "application/json")
	if err != nil {
		return nil, err
	}
	var parsed SearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}
	return &parsed, nil
}

// QueryResponse is the tabular envelope returned by the PPL and SQL plugins.
type QueryResponse struct {
	Schema   []SchemaField `json:"schema"`
	Datarows [][]any       `json:"datarows"`
	Total    int           `json:"total"`
	Size     int           `json:"size"`
}

// SchemaField describes one column of a tabular query response.
type SchemaField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// QueryPPL executes a PPL query through the cluster's PPL plugin.
func (c *Client) QueryPPL(ctx context.Context, query string) (*QueryResponse, error) {
	return c.query(ctx, "/_plugins/_ppl", query)
}

// QuerySQL executes a SQL query through the cluster's SQL plugin.
func (c *Client) QuerySQL(ctx context.Context, query string) (*QueryResponse, error) {
	return c.query(ctx, "/_plugins/_sql", query)
}

func (c *Client) query(ctx context.Context, path, query string) (*QueryResponse, error) {
	payload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, http.MethodPost, path, payload, "application/json")
	if err != nil {
		return nil, err
	}
	var parsed QueryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse query response: %w", err)
	}
	return &parsed, nil
}

// PutClusterSettings applies persistent cluster settings.
func (c *Client) PutClusterSettings(ctx context.Context, persistent map[string]any) error {
	payload, err := json.Marshal(map[string]any{"persistent": persistent})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPut, "/_cluster/settings", payload, "application/json")
	return err
}
