package tabular

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client implements Store against an Airtable-style REST API.
type Client struct {
	apiURL     string // record CRUD endpoint root
	contentURL string // attachment upload endpoint root
	apiKey     string
	baseID     string
	http       *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithEndpoints overrides the API endpoints, used by tests pointing at a
// local httptest server.
func WithEndpoints(apiURL, contentURL string) ClientOption {
	return func(c *Client) {
		c.apiURL = apiURL
		c.contentURL = contentURL
	}
}

// NewClient creates a REST client for the given base.
func NewClient(apiKey, baseID string, opts ...ClientOption) *Client {
	c := &Client{
		apiURL:     "https://api.airtable.com/v0",
		contentURL: "https://content.airtable.com/v0",
		apiKey:     apiKey,
		baseID:     baseID,
		http:       &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, rawURL string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSpace(string(data)))
		}
		return fmt.Errorf("tabular store status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) tableURL(table string) string {
	return c.apiURL + "/" + c.baseID + "/" + url.PathEscape(table)
}

// CreateRecord creates a record in the given table.
func (c *Client) CreateRecord(ctx context.Context, table string, fields map[string]any) (*Record, error) {
	var rec Record
	err := c.do(ctx, http.MethodPost, c.tableURL(table), map[string]any{
		"fields":   fields,
		"typecast": true,
	}, &rec)
	if err != nil {
		return nil, fmt.Errorf("create record in %s: %w", table, err)
	}
	return &rec, nil
}

// UpdateRecord patches fields of an existing record.
func (c *Client) UpdateRecord(ctx context.Context, table, id string, fields map[string]any) error {
	err := c.do(ctx, http.MethodPatch, c.tableURL(table)+"/"+url.PathEscape(id), map[string]any{
		"fields":   fields,
		"typecast": true,
	}, nil)
	if err != nil {
		return fmt.Errorf("update record %s in %s: %w", id, table, err)
	}
	return nil
}

// GetRecord fetches a record by ID. Returns (nil, nil) when missing.
func (c *Client) GetRecord(ctx context.Context, table, id string) (*Record, error) {
	var rec Record
	err := c.do(ctx, http.MethodGet, c.tableURL(table)+"/"+url.PathEscape(id), nil, &rec)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get record %s from %s: %w", id, table, err)
	}
	return &rec, nil
}

type recordPage struct {
	Records []*Record `json:"records"`
}

// FindFirst returns the first record whose field equals value.
func (c *Client) FindFirst(ctx context.Context, table, field, value string) (*Record, error) {
	formula := fmt.Sprintf("{%s} = '%s'", field, strings.ReplaceAll(value, "'", "\\'"))
	q := url.Values{}
	q.Set("filterByFormula", formula)
	q.Set("maxRecords", "1")

	var page recordPage
	if err := c.do(ctx, http.MethodGet, c.tableURL(table)+"?"+q.Encode(), nil, &page); err != nil {
		return nil, fmt.Errorf("find in %s by %s: %w", table, field, err)
	}
	if len(page.Records) == 0 {
		return nil, nil
	}
	return page.Records[0], nil
}

// ListRecent returns up to limit records, most recently created first.
func (c *Client) ListRecent(ctx context.Context, table string, limit int) ([]*Record, error) {
	q := url.Values{}
	q.Set("maxRecords", strconv.Itoa(limit))
	q.Set("sort[0][field]", "Fecha")
	q.Set("sort[0][direction]", "desc")

	var page recordPage
	if err := c.do(ctx, http.MethodGet, c.tableURL(table)+"?"+q.Encode(), nil, &page); err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return page.Records, nil
}

type uploadResponse struct {
	ID     string                     `json:"id"`
	Fields map[string]json.RawMessage `json:"fields"`
}

type attachmentRef struct {
	URL string `json:"url"`
}

// UploadAttachment pushes binary content into an attachment field via the
// content endpoint and returns the URL the store assigned to it.
func (c *Client) UploadAttachment(ctx context.Context, table, recordID, field, filename, contentType string, data []byte) (string, error) {
	_ = table // the content endpoint addresses records directly
	uploadURL := c.contentURL + "/" + c.baseID + "/" + url.PathEscape(recordID) + "/" + url.PathEscape(field) + "/uploadAttachment"

	var resp uploadResponse
	err := c.do(ctx, http.MethodPost, uploadURL, map[string]any{
		"contentType": contentType,
		"filename":    filename,
		"file":        base64.StdEncoding.EncodeToString(data),
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("upload attachment %s: %w", filename, err)
	}

	// The response echoes the field with the attachment list; take the last
	// entry's URL as the reference for the just-uploaded file.
	if raw, ok := resp.Fields[field]; ok {
		var refs []attachmentRef
		if err := json.Unmarshal(raw, &refs); err == nil && len(refs) > 0 {
			return refs[len(refs)-1].URL, nil
		}
	}
	return "", nil
}
