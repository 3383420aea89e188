package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Client is the HTTP client for the fieldops backend API. All responses use
// the {success, data, error} envelope.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient creates an API client for the given base URL (e.g.
// "https://api.example.com/api").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SetToken sets the bearer token attached to subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current session token, if any.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// request performs an API call and unwraps the response envelope.
// A failure to obtain any HTTP response is returned as-is (transport class);
// a response carrying success=false or a non-2xx status becomes an *APIError.
func (c *Client) request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		// A response arrived but carries no structured body (e.g. a proxy
		// error page). Callers treat it like any other server rejection.
		return nil, &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("malformed response (status %d)", resp.StatusCode)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		return nil, &APIError{Status: resp.StatusCode, Message: env.Error}
	}
	return env.Data, nil
}

// SendOrder posts a raw, already-encoded order payload to the submission
// endpoint. This is the replay path used by the sync manager: any failure,
// transport or HTTP, counts as one failed attempt.
func (c *Client) SendOrder(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ordenes", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("order submission status %d", resp.StatusCode)
	}
	return nil
}

// LoginResult is the payload returned by the login endpoint.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// User identifies the authenticated technician.
type User struct {
	ID           string `json:"id"`
	RecordID     string `json:"recordId,omitempty"`
	Nombre       string `json:"nombre"`
	Email        string `json:"email"`
	Especialidad string `json:"especialidad,omitempty"`
}

// Login authenticates with email + PIN and stores the returned token on the
// client.
func (c *Client) Login(ctx context.Context, email, pin string) (*LoginResult, error) {
	data, err := c.request(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email": email,
		"pin":   pin,
	})
	if err != nil {
		return nil, err
	}
	var res LoginResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode login result: %w", err)
	}
	c.SetToken(res.Token)
	return &res, nil
}

// Cliente is a remote client record as returned by the search endpoint.
type Cliente struct {
	RecordID  string `json:"recordId,omitempty"`
	Rut       string `json:"rut"`
	Nombre    string `json:"nombre"`
	Email     string `json:"email,omitempty"`
	Telefono  string `json:"telefono,omitempty"`
	Direccion string `json:"direccion,omitempty"`
	Comuna    string `json:"comuna,omitempty"`
}

// SearchClientes looks up remote client records by RUT or name fragment.
func (c *Client) SearchClientes(ctx context.Context, query string) ([]Cliente, error) {
	data, err := c.request(ctx, http.MethodGet, "/clientes/buscar?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, err
	}
	var out []Cliente
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode clientes: %w", err)
	}
	return out, nil
}

// Tecnicos lists the active technicians.
func (c *Client) Tecnicos(ctx context.Context) ([]User, error) {
	data, err := c.request(ctx, http.MethodGet, "/tecnicos", nil)
	if err != nil {
		return nil, err
	}
	var out []User
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode tecnicos: %w", err)
	}
	return out, nil
}

// Resend asks the backend to re-invoke the webhook relay for an existing
// order record.
func (c *Client) Resend(ctx context.Context, recordID string) (json.RawMessage, error) {
	return c.request(ctx, http.MethodPost, "/ordenes/"+url.PathEscape(recordID)+"/reenviar", nil)
}

// Orders returns the most recent order records for dashboard display.
func (c *Client) Orders(ctx context.Context) (json.RawMessage, error) {
	return c.request(ctx, http.MethodGet, "/ordenes", nil)
}
