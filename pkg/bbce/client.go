// Package bbce is a thin client for the energy marketplace REST API: login,
// wallets, negotiable tickers and the all-deals report.
//
// Usage example:
//
//	c := bbce.New(bbce.Config{APIKey: key, CompanyCode: 1447, Email: email, Password: pw})
//	sess, err := c.Login(ctx)
//	if err != nil { return err }
//	deals, err := c.Deals(ctx, sess.IDToken, from, to)
package bbce

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

	"golang.org/x/time/rate"
)

// ---- Config & client ----

type Config struct {
	APIKey      string
	CompanyCode int
	Email       string
	Password    string

	BaseURL      string        // default: https://api-ehub.bbce.com.br/
	Timeout      time.Duration // default: 30s
	DealsTimeout time.Duration // default: 60s, the report is large
	RateLimit    float64       // requests per second, default 2
	Burst        int           // default 1
	HTTPClient   *http.Client  // optional, overrides Timeout
	Logger       *slog.Logger
}

// Client talks to the marketplace API. Safe for concurrent use.
type Client struct {
	cfg     Config
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

const (
	DefaultBaseURL = "https://api-ehub.bbce.com.br/"

	// DateLayout is the format of the report's period parameters.
	DateLayout = "2006-01-02"

	bodyPreviewLen = 500
)

var routes = map[string]string{
	"login":   "bus/v2/login",
	"wallets": "bus/v1/wallets",
	"tickers": "bus/v1/negotiable-tickers",
	"deals":   "bus/v1/all-deals/report",
}

// ErrUnauthorized is returned when the API rejects the token or credentials.
var ErrUnauthorized = errors.New("bbce: unauthorized")

// APIError is a non-2xx API response.
type APIError struct {
	Route  string
	Status int
	Body   string // truncated preview
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bbce: %s: HTTP %d: %s", e.Route, e.Status, e.Body)
}

// Unwrap maps 401/403 to ErrUnauthorized.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

// New creates a client, filling defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.DealsTimeout == 0 {
		cfg.DealsTimeout = 60 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		// Per-request deadlines come from context; the client timeout is a
		// ceiling for the slowest route.
		hc = &http.Client{Timeout: max(cfg.Timeout, cfg.DealsTimeout)}
	}
	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/") + "/",
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		logger:  cfg.Logger.With(slog.String("component", "bbce")),
	}
}

// ---- Helpers ----

func (c *Client) requestHeaders(token string) http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("apiKey", c.cfg.APIKey)
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func (c *Client) buildURL(route string, query url.Values) (string, error) {
	uri, ok := routes[route]
	if !ok {
		return "", fmt.Errorf("bbce: unknown route: %s", route)
	}
	u := c.baseURL + uri
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u, nil
}

// doRequest performs one rate-limited call and decodes a 2xx JSON body into out.
func (c *Client) doRequest(ctx context.Context, method, route, token string, query url.Values, payload, out any, timeout time.Duration) error {
	reqURL, err := c.buildURL(route, query)
	if err != nil {
		return err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("bbce: %s: rate limit wait: %w", route, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("bbce: %s: marshal: %w", route, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("bbce: %s: create request: %w", route, err)
	}
	req.Header = c.requestHeaders(token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bbce: %s: %w", route, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("bbce: %s: read body: %w", route, err)
	}

	c.logger.Debug("request done",
		slog.String("route", route),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(raw)),
		slog.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Route: route, Status: resp.StatusCode, Body: preview(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("bbce: %s: couldn't parse JSON response: %w", route, err)
	}
	return nil
}

func preview(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > bodyPreviewLen {
		return s[:bodyPreviewLen] + "..."
	}
	return s
}

// ---- Endpoints ----

// Login authenticates with the configured company code, email and password.
func (c *Client) Login(ctx context.Context) (*Session, error) {
	payload := map[string]any{
		"companyExternalCode": c.cfg.CompanyCode,
		"email":               c.cfg.Email,
		"password":            c.cfg.Password,
	}
	var s Session
	if err := c.doRequest(ctx, http.MethodPost, "login", "", nil, payload, &s, c.cfg.Timeout); err != nil {
		return nil, err
	}
	if s.IDToken == "" {
		return nil, fmt.Errorf("bbce: login: response carried no idToken")
	}
	return &s, nil
}

// Wallets lists the company's wallets.
func (c *Client) Wallets(ctx context.Context, token string) ([]Wallet, error) {
	var ws []Wallet
	if err := c.doRequest(ctx, http.MethodGet, "wallets", token, nil, nil, &ws, c.cfg.Timeout); err != nil {
		return nil, err
	}
	return ws, nil
}

// NegotiableTickers lists the products negotiable from walletID.
func (c *Client) NegotiableTickers(ctx context.Context, token string, walletID ID) ([]Ticker, error) {
	q := url.Values{}
	q.Set("walletId", walletID.String())
	var resp tickersResponse
	if err := c.doRequest(ctx, http.MethodGet, "tickers", token, q, nil, &resp, c.cfg.Timeout); err != nil {
		return nil, err
	}
	return resp.Tickers, nil
}

// Deals fetches the all-deals report for the inclusive date range.
func (c *Client) Deals(ctx context.Context, token string, from, to time.Time) ([]Deal, error) {
	q := url.Values{}
	q.Set("initialPeriod", from.Format(DateLayout))
	q.Set("finalPeriod", to.Format(DateLayout))
	var deals []Deal
	if err := c.doRequest(ctx, http.MethodGet, "deals", token, q, nil, &deals, c.cfg.DealsTimeout); err != nil {
		return nil, err
	}
	return deals, nil
}
