// Package sdk is the Go client of the repairdesk HTTP API.
package sdk

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/celerix-dev/repairdesk/pkg/schema"
)

const maxAttempts = 3

// Client talks to one repairdesk server. It keeps the bearer token of the
// last successful SignIn.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	lang    schema.Lang

	mu    sync.RWMutex // Protects token
	token string
}

var _ RepairDesk = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithLanguage selects the language of localized answers.
func WithLanguage(l schema.Lang) Option { return func(c *Client) { c.lang = l } }

// WithToken starts the client with an existing session token.
func WithToken(token string) Option { return func(c *Client) { c.token = token } }

// WithInsecureTLS accepts the self-signed certificate repairdesk generates.
func WithInsecureTLS() Option {
	return func(c *Client) {
		c.http = &http.Client{
			Timeout:   30 * time.Second,
			Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}},
		}
	}
}

// Connect creates a client for the server at baseURL.
func Connect(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 30 * time.Second},
		lang:    schema.DefaultLang,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FromEnv connects to REPAIRDESK_URL (default http://localhost:7002).
// REPAIRDESK_INSECURE_TLS=true accepts self-signed certificates.
func FromEnv(opts ...Option) (*Client, error) {
	addr := os.Getenv("REPAIRDESK_URL")
	if addr == "" {
		addr = "http://localhost:7002"
	}
	if os.Getenv("REPAIRDESK_INSECURE_TLS") == "true" {
		opts = append([]Option{WithInsecureTLS()}, opts...)
	}
	return Connect(addr, opts...)
}

// Token returns the current session token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// do sends one request. GETs are retried with backoff on transport errors
// and 5xx answers; mutations are sent once.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("lang", string(c.lang))
	target := c.baseURL.JoinPath(path)
	target.RawQuery = query.Encode()

	attempts := 1
	if method == http.MethodGet {
		attempts = maxAttempts
	}

	var lastErr error
	for i := range attempts {
		if i > 0 {
			// exponential backoff: 200ms, 400ms
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(100<<i) * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, target.String(), bytes.NewReader(body))
		if err != nil {
			return err
		}
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		if token := c.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		retry, err := decode(resp, out)
		if !retry {
			return err
		}
		lastErr = err
	}
	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("%s %s failed after %d attempts: %w", method, path, attempts, lastErr)
}

// decode reads resp into out and maps error answers. It reports whether
// the failure is worth retrying.
func decode(resp *http.Response, out any) (bool, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return true, err
	}

	if resp.StatusCode < 300 {
		if out == nil || len(data) == 0 {
			return false, nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return false, fmt.Errorf("decode response: %w", err)
		}
		return false, nil
	}

	var e struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(data, &e)
	if e.Error == "" {
		e.Error = strings.TrimSpace(string(data))
	}

	var kind error
	switch resp.StatusCode {
	case http.StatusNotFound:
		kind = ErrNotFound
	case http.StatusForbidden:
		kind = ErrForbidden
	case http.StatusUnauthorized:
		kind = ErrUnauthorized
	case http.StatusTooManyRequests:
		kind = ErrRateLimited
	case http.StatusConflict:
		kind = ErrConflict
	case http.StatusBadRequest:
		kind = ErrInvalid
	default:
		return resp.StatusCode >= 500, fmt.Errorf("server answered %d: %s", resp.StatusCode, e.Error)
	}
	return false, fmt.Errorf("%w: %s", kind, e.Error)
}

// get is the generic read helper.
func get[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	var out T
	err := c.do(ctx, http.MethodGet, path, query, nil, &out)
	return out, err
}

// send is the generic write helper.
func send[T any](ctx context.Context, c *Client, method, path string, in any) (*T, error) {
	var out T
	if err := c.do(ctx, method, path, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Price list and content ---

func (c *Client) Categories(ctx context.Context) ([]schema.CategoryView, error) {
	return get[[]schema.CategoryView](ctx, c, "/api/categories", nil)
}

func (c *Client) Models(ctx context.Context, categoryID string) ([]schema.ModelView, error) {
	return get[[]schema.ModelView](ctx, c, "/api/categories/"+url.PathEscape(categoryID)+"/models", nil)
}

func (c *Client) Prices(ctx context.Context, modelID string) (*schema.PriceTable, error) {
	return get[*schema.PriceTable](ctx, c, "/api/models/"+url.PathEscape(modelID)+"/prices", nil)
}

func (c *Client) Announcements(ctx context.Context) ([]schema.AnnouncementView, error) {
	return get[[]schema.AnnouncementView](ctx, c, "/api/announcements", nil)
}

func (c *Client) Articles(ctx context.Context) ([]schema.ArticleView, error) {
	return get[[]schema.ArticleView](ctx, c, "/api/articles", nil)
}

func (c *Client) Article(ctx context.Context, slug string) (*schema.ArticleView, error) {
	return get[*schema.ArticleView](ctx, c, "/api/articles/"+url.PathEscape(slug), nil)
}

// --- Session ---

// SignIn exchanges credentials for a session token kept by the client.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Me, error) {
	var out struct {
		User  schema.Subject `json:"user"`
		Token string         `json:"token"`
	}
	in := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/sign-in", nil, in, &out); err != nil {
		return nil, err
	}
	c.setToken(out.Token)
	return c.Me(ctx)
}

// SignOut forgets the session token.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/sign-out", nil, nil, nil)
	c.setToken("")
	return err
}

func (c *Client) Me(ctx context.Context) (*Me, error) {
	return get[*Me](ctx, c, "/api/auth/me", nil)
}

// --- Back office ---

func (c *Client) CreateCategory(ctx context.Context, cat schema.Category) (*schema.Category, error) {
	return send[schema.Category](ctx, c, http.MethodPost, "/api/admin/categories", cat)
}

func (c *Client) UpdateCategory(ctx context.Context, cat schema.Category) (*schema.Category, error) {
	return send[schema.Category](ctx, c, http.MethodPut, "/api/admin/categories/"+url.PathEscape(cat.ID), cat)
}

func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/admin/categories/"+url.PathEscape(id), nil, nil, nil)
}

// SetActive flips the active flag of a category, model or service.
func (c *Client) SetActive(ctx context.Context, table schema.AuditTable, id string, active bool) error {
	var base string
	switch table {
	case schema.TableDeviceCategories:
		base = "/api/admin/categories/"
	case schema.TableDeviceModels:
		base = "/api/admin/models/"
	case schema.TableServices:
		base = "/api/admin/services/"
	default:
		return fmt.Errorf("%w: %s has no active flag", ErrInvalid, table)
	}
	in := map[string]bool{"is_active": active}
	return c.do(ctx, http.MethodPut, base+url.PathEscape(id)+"/active", nil, in, nil)
}

func (c *Client) CreateModel(ctx context.Context, m schema.DeviceModel) (*schema.DeviceModel, error) {
	return send[schema.DeviceModel](ctx, c, http.MethodPost, "/api/admin/models", m)
}

func (c *Client) CreateService(ctx context.Context, s schema.Service) (*schema.Service, error) {
	return send[schema.Service](ctx, c, http.MethodPost, "/api/admin/services", s)
}

func (c *Client) LinkService(ctx context.Context, categoryID, serviceID string) (*schema.CategoryService, error) {
	in := map[string]string{"service_id": serviceID}
	return send[schema.CategoryService](ctx, c, http.MethodPost, "/api/admin/categories/"+url.PathEscape(categoryID)+"/services", in)
}

func (c *Client) SetPrice(ctx context.Context, p schema.Price) (*schema.Price, error) {
	return send[schema.Price](ctx, c, http.MethodPut, "/api/admin/prices", p)
}

func (c *Client) DeletePrice(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/admin/prices/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) AddImage(ctx context.Context, img schema.DeviceImage) (*schema.DeviceImage, error) {
	return send[schema.DeviceImage](ctx, c, http.MethodPost, "/api/admin/models/"+url.PathEscape(img.ModelID)+"/images", img)
}

func (c *Client) RemoveImage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/admin/images/"+url.PathEscape(id), nil, nil, nil)
}

// Audit lists audit entries, newest first. Requires the admin role.
func (c *Client) Audit(ctx context.Context, f AuditQuery) ([]schema.AuditEntry, error) {
	q := url.Values{}
	if f.AdminID != "" {
		q.Set("admin_id", string(f.AdminID))
	}
	if f.Table != "" {
		q.Set("table", string(f.Table))
	}
	if f.RecordID != "" {
		q.Set("record_id", f.RecordID)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return get[[]schema.AuditEntry](ctx, c, "/api/admin/audit", q)
}
