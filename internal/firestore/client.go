package firestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrNotFound marks a document that does not exist. It is a valid
// result, not a transport failure.
var ErrNotFound = errors.New("document not found")

// IsNotFound reports whether err means the requested document is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreError wraps any transport or HTTP failure talking to the store.
type StoreError struct {
	Op     string
	Status int
	Err    error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("firestore: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("firestore: %s: status %d", e.Op, e.Status)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Client talks to the Firestore REST API for a single project database.
// It owns the HTTP transport and timeout; callers see only documents as
// field maps of typed values.
type Client struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

const requestTimeout = 15 * time.Second

// New returns a client for the given project's default database.
func New(projectID, apiKey string) *Client {
	base := fmt.Sprintf(
		"https://firestore.googleapis.com/v1/projects/%s/databases/(default)/documents",
		projectID,
	)
	return NewWithBaseURL(base, apiKey)
}

// NewWithBaseURL returns a client against an explicit documents base URL.
func NewWithBaseURL(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: requestTimeout},
	}
}

type document struct {
	Fields map[string]Value `json:"fields"`
}

// Get fetches a document by id. A missing document is ErrNotFound.
func (c *Client) Get(ctx context.Context, collection, id string) (map[string]Value, error) {
	fields, err := c.get(ctx, collection, id)
	observe(collection, "get", err)
	return fields, err
}

func (c *Client) get(ctx context.Context, collection, id string) (map[string]Value, error) {
	u := c.docURL(collection, id, nil)
	resp, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &StoreError{Op: "get " + collection + "/" + id, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode/100 != 2 {
		return nil, &StoreError{Op: "get " + collection + "/" + id, Status: resp.StatusCode}
	}

	var doc document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, &StoreError{Op: "get " + collection + "/" + id, Err: err}
	}
	if doc.Fields == nil {
		return map[string]Value{}, nil
	}
	return doc.Fields, nil
}

// Set replaces the whole document, creating it if absent.
func (c *Client) Set(ctx context.Context, collection, id string, fields map[string]Value) error {
	u := c.docURL(collection, id, nil)
	err := c.write(ctx, http.MethodPatch, "set "+collection+"/"+id, u, fields)
	observe(collection, "set", err)
	return err
}

// Patch updates only the given fields, leaving the rest of the document
// untouched. This is a true field-mask update, not a full replace.
func (c *Client) Patch(ctx context.Context, collection, id string, fields map[string]Value) error {
	extra := url.Values{}
	for k := range fields {
		extra.Add("updateMask.fieldPaths", k)
	}
	u := c.docURL(collection, id, extra)
	err := c.write(ctx, http.MethodPatch, "patch "+collection+"/"+id, u, fields)
	observe(collection, "patch", err)
	return err
}

// Create creates a document with an explicit, caller-chosen id.
func (c *Client) Create(ctx context.Context, collection, id string, fields map[string]Value) error {
	extra := url.Values{}
	extra.Set("documentId", id)
	u := c.collectionURL(collection, extra)
	err := c.write(ctx, http.MethodPost, "create "+collection+"/"+id, u, fields)
	observe(collection, "create", err)
	return err
}

type runQueryRequest struct {
	StructuredQuery structuredQuery `json:"structuredQuery"`
}

type structuredQuery struct {
	From  []collectionSelector `json:"from"`
	Where fieldFilterClause    `json:"where"`
}

type collectionSelector struct {
	CollectionID string `json:"collectionId"`
}

type fieldFilterClause struct {
	FieldFilter fieldFilter `json:"fieldFilter"`
}

type fieldFilter struct {
	Field fieldReference `json:"field"`
	Op    string         `json:"op"`
	Value Value          `json:"value"`
}

type fieldReference struct {
	FieldPath string `json:"fieldPath"`
}

type runQueryResult struct {
	Document *document `json:"document"`
}

// QueryEquals runs a single-field equality query over a collection.
// Result order is not guaranteed to be stable across calls.
func (c *Client) QueryEquals(ctx context.Context, collection, field string, value Value) ([]map[string]Value, error) {
	docs, err := c.queryEquals(ctx, collection, field, value)
	observe(collection, "query", err)
	return docs, err
}

func (c *Client) queryEquals(ctx context.Context, collection, field string, value Value) ([]map[string]Value, error) {
	payload := runQueryRequest{
		StructuredQuery: structuredQuery{
			From: []collectionSelector{{CollectionID: collection}},
			Where: fieldFilterClause{
				FieldFilter: fieldFilter{
					Field: fieldReference{FieldPath: field},
					Op:    "EQUAL",
					Value: value,
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &StoreError{Op: "query " + collection, Err: err}
	}

	resp, err := c.do(ctx, http.MethodPost, c.queryURL(), bytes.NewReader(body))
	if err != nil {
		return nil, &StoreError{Op: "query " + collection, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, &StoreError{Op: "query " + collection, Status: resp.StatusCode}
	}

	var results []runQueryResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, &StoreError{Op: "query " + collection, Err: err}
	}

	var docs []map[string]Value
	for _, r := range results {
		if r.Document == nil {
			continue
		}
		fields := r.Document.Fields
		if fields == nil {
			fields = map[string]Value{}
		}
		docs = append(docs, fields)
	}
	return docs, nil
}

func (c *Client) write(ctx context.Context, method, op, u string, fields map[string]Value) error {
	body, err := json.Marshal(document{Fields: fields})
	if err != nil {
		return &StoreError{Op: op, Err: err}
	}
	resp, err := c.do(ctx, method, u, bytes.NewReader(body))
	if err != nil {
		return &StoreError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return &StoreError{Op: op, Status: resp.StatusCode}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, u string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.hc.Do(req)
}

func (c *Client) docURL(collection, id string, extra url.Values) string {
	return c.buildURL(c.baseURL+"/"+collection+"/"+url.PathEscape(id), extra)
}

func (c *Client) collectionURL(collection string, extra url.Values) string {
	return c.buildURL(c.baseURL+"/"+collection, extra)
}

func (c *Client) queryURL() string {
	return c.buildURL(c.baseURL+":runQuery", nil)
}

func (c *Client) buildURL(base string, extra url.Values) string {
	q := url.Values{}
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	for k, vs := range extra {
		q[k] = append(q[k], vs...)
	}
	if len(q) == 0 {
		return base
	}
	return base + "?" + q.Encode()
}
