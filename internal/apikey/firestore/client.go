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
	"sort"
	"strings"
	"time"
)

const defaultHTTPTimeout = 15 * time.Second

// Value is a Firestore typed value. Exactly one of the fields is set;
// timestamps travel as RFC 3339 strings.
type Value struct {
	StringValue    *string `json:"stringValue,omitempty"`
	TimestampValue *string `json:"timestampValue,omitempty"`
}

func stringValue(s string) Value {
	return Value{StringValue: &s}
}

func timestampValue(t time.Time) Value {
	s := t.UTC().Format(time.RFC3339Nano)
	return Value{TimestampValue: &s}
}

// stringOr returns the string value, or fallback when the value is unset.
// Documents are schemaless, so readers repair missing fields instead of
// failing on them.
func (v Value) stringOr(fallback string) string {
	if v.StringValue == nil {
		return fallback
	}
	return *v.StringValue
}

// timeOr returns the timestamp value, or fallback when the value is unset
// or does not parse.
func (v Value) timeOr(fallback time.Time) time.Time {
	if t := v.timePtr(); t != nil {
		return *t
	}
	return fallback
}

// timePtr returns the timestamp value, or nil when unset or unparseable.
func (v Value) timePtr() *time.Time {
	if v.TimestampValue == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *v.TimestampValue)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// Document is a Firestore document: a resource name plus typed fields.
type Document struct {
	Name   string           `json:"name,omitempty"`
	Fields map[string]Value `json:"fields,omitempty"`
}

// StructuredQuery is the filter/order/limit body of a runQuery call.
type StructuredQuery struct {
	From    []CollectionSelector `json:"from"`
	Where   *Filter              `json:"where,omitempty"`
	OrderBy []Order              `json:"orderBy,omitempty"`
	Limit   int                  `json:"limit,omitempty"`
}

type CollectionSelector struct {
	CollectionID string `json:"collectionId"`
}

// Filter is either a composite filter or a field filter, never both.
type Filter struct {
	CompositeFilter *CompositeFilter `json:"compositeFilter,omitempty"`
	FieldFilter     *FieldFilter     `json:"fieldFilter,omitempty"`
}

type CompositeFilter struct {
	Op      string   `json:"op"`
	Filters []Filter `json:"filters"`
}

type FieldFilter struct {
	Field FieldReference `json:"field"`
	Op    string         `json:"op"`
	Value Value          `json:"value"`
}

type FieldReference struct {
	FieldPath string `json:"fieldPath"`
}

type Order struct {
	Field     FieldReference `json:"field"`
	Direction string         `json:"direction"`
}

func fieldEquals(fieldPath, value string) Filter {
	return Filter{FieldFilter: &FieldFilter{
		Field: FieldReference{FieldPath: fieldPath},
		Op:    "EQUAL",
		Value: stringValue(value),
	}}
}

func whereAll(filters ...Filter) *Filter {
	if len(filters) == 1 {
		f := filters[0]
		return &f
	}
	return &Filter{CompositeFilter: &CompositeFilter{Op: "AND", Filters: filters}}
}

func orderByDesc(fieldPath string) []Order {
	return []Order{{Field: FieldReference{FieldPath: fieldPath}, Direction: "DESCENDING"}}
}

type runQueryRequest struct {
	StructuredQuery *StructuredQuery `json:"structuredQuery"`
}

// runQuery responses wrap each result; entries carrying only a read
// timestamp have no Document and are not results.
type queryResult struct {
	Document *Document `json:"document"`
}

// apiError is a non-2xx response from the document endpoint.
type apiError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *apiError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("firestore request failed: %s: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("firestore request failed: %s", e.Status)
}

// isNotFound reports whether err is the endpoint rejecting a write whose
// existence precondition failed.
func isNotFound(err error) bool {
	var ae *apiError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound
}

// Client is a minimal Firestore REST client covering the document writes
// and structured queries the key store needs. It holds no connection
// state beyond the standard HTTP client; every request is authenticated
// with the token source's current bearer token.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	tokens     *tokenSource
}

// newClient builds a client rooted at baseURL, which must address a
// database's documents resource.
func newClient(baseURL string, tokens *tokenSource, httpClient *http.Client) (*Client, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	base, err := url.ParseRequestURI(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse documents base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    base,
		tokens:     tokens,
	}, nil
}

// SetDocument creates or fully replaces the document at path.
func (c *Client) SetDocument(ctx context.Context, path string, fields map[string]Value) error {
	req, err := c.newRequest(ctx, http.MethodPatch, path, Document{Fields: fields})
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// PatchDocument updates only the given fields of the document at path.
// The update mask names exactly the supplied fields, so everything else
// in the document is left untouched. The write carries an existence
// precondition: patching a missing document fails with NOT_FOUND instead
// of creating a stub.
func (c *Client) PatchDocument(ctx context.Context, path string, fields map[string]Value) error {
	req, err := c.newRequest(ctx, http.MethodPatch, path, Document{Fields: fields})
	if err != nil {
		return err
	}

	paths := make([]string, 0, len(fields))
	for name := range fields {
		paths = append(paths, name)
	}
	sort.Strings(paths)

	q := req.URL.Query()
	for _, p := range paths {
		q.Add("updateMask.fieldPaths", p)
	}
	q.Set("currentDocument.exists", "true")
	req.URL.RawQuery = q.Encode()

	return c.do(req, nil)
}

// DeleteDocument deletes the document at path. The delete carries an
// existence precondition, so a missing document surfaces as NOT_FOUND
// rather than silent success.
func (c *Client) DeleteDocument(ctx context.Context, path string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}

	q := req.URL.Query()
	q.Set("currentDocument.exists", "true")
	req.URL.RawQuery = q.Encode()

	return c.do(req, nil)
}

// RunQuery executes a structured query against a collection under the
// given parent document path and returns the matching documents.
func (c *Client) RunQuery(ctx context.Context, parentPath string, query *StructuredQuery) ([]Document, error) {
	req, err := c.newRequest(ctx, http.MethodPost, parentPath+":runQuery", runQueryRequest{StructuredQuery: query})
	if err != nil {
		return nil, err
	}

	var results []queryResult
	if err := c.do(req, &results); err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		if r.Document == nil {
			continue
		}
		docs = append(docs, *r.Document)
	}
	return docs, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	u := c.baseURL.ResolveReference(&url.URL{Path: path})

	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), buf)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request, v interface{}) error {
	token, err := c.tokens.Token(req.Context())
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("firestore request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &apiError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       snippet(data),
		}
	}

	if v == nil {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 512 {
		s = s[:512]
	}
	return s
}
