// Package dogsapi is the client for the external shelter dogs HTTP API.
package dogsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/puppyradar/internal/domain"
	"github.com/kailas-cloud/puppyradar/internal/domain/dog"
	"github.com/kailas-cloud/puppyradar/internal/metrics"
)

// DefaultCookieName is the cookie the dogs API issues on login.
const DefaultCookieName = "fetch-access-token"

// MaxDetailIDs is the largest id batch accepted by POST /dogs.
const MaxDetailIDs = 100

const maxErrorBody = 4 << 10

// Endpoint labels used for metrics and errors.
const (
	EndpointLogin   = "login"
	EndpointLogout  = "logout"
	EndpointBreeds  = "breeds"
	EndpointSearch  = "search"
	EndpointDetails = "details"
	EndpointMatch   = "match"
)

// Config holds the dogs API client settings.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	CookieName string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the dogs API on behalf of a logged-in user.
// Every call takes the user's access token; the client itself is stateless.
type Client struct {
	http       *http.Client
	baseURL    string
	cookieName string
	logger     *zap.Logger
}

// NewClient creates a dogs API client.
func NewClient(cfg *Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	name := cfg.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:       hc,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		cookieName: name,
		logger:     logger,
	}
}

func searchValues(p dog.SearchParams) url.Values {
	v := url.Values{}
	for _, b := range p.Breeds {
		v.Add("breeds", b)
	}
	v.Set("ageMin", strconv.Itoa(p.AgeMin))
	v.Set("ageMax", strconv.Itoa(p.AgeMax))
	if p.Size > 0 {
		v.Set("size", strconv.Itoa(p.Size))
	}
	v.Set("from", strconv.Itoa(p.From))
	if p.Sort != "" {
		v.Set("sort", p.Sort)
	}
	return v
}

// Login opens an upstream session and returns its access token.
func (c *Client) Login(ctx context.Context, name, email string) (string, error) {
	body := map[string]string{"name": name, "email": email}
	resp, err := c.do(ctx, EndpointLogin, http.MethodPost, "/auth/login", nil, "", body)
	if err != nil {
		return "", err
	}
	defer drain(resp)

	for _, ck := range resp.Cookies() {
		if ck.Name == c.cookieName && ck.Value != "" {
			return ck.Value, nil
		}
	}
	return "", fmt.Errorf("login response has no %s cookie: %w", c.cookieName, domain.ErrUpstream)
}

// Logout closes the upstream session.
func (c *Client) Logout(ctx context.Context, token string) error {
	resp, err := c.do(ctx, EndpointLogout, http.MethodPost, "/auth/logout", nil, token, nil)
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

// Breeds returns every breed name known to the API.
func (c *Client) Breeds(ctx context.Context, token string) ([]string, error) {
	var breeds []string
	if err := c.getJSON(ctx, EndpointBreeds, "/dogs/breeds", nil, token, &breeds); err != nil {
		return nil, err
	}
	return breeds, nil
}

// Search returns one page of dog ids matching p.
func (c *Client) Search(ctx context.Context, token string, p dog.SearchParams) (dog.Page, error) {
	var page dog.Page
	if err := c.getJSON(ctx, EndpointSearch, "/dogs/search", searchValues(p), token, &page); err != nil {
		return dog.Page{}, err
	}
	return page, nil
}

// Details resolves full records for ids, in the order the API returns them.
// Batches larger than MaxDetailIDs are split into sequential calls.
func (c *Client) Details(ctx context.Context, token string, ids []string) ([]dog.Dog, error) {
	out := make([]dog.Dog, 0, len(ids))
	for start := 0; start < len(ids); start += MaxDetailIDs {
		end := min(start+MaxDetailIDs, len(ids))
		var batch []dog.Dog
		if err := c.postJSON(ctx, EndpointDetails, "/dogs", token, ids[start:end], &batch); err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

// Match picks one dog id out of ids.
func (c *Client) Match(ctx context.Context, token string, ids []string) (string, error) {
	var resp struct {
		Match string `json:"match"`
	}
	if err := c.postJSON(ctx, EndpointMatch, "/dogs/match", token, ids, &resp); err != nil {
		return "", err
	}
	if resp.Match == "" {
		return "", fmt.Errorf("empty match response: %w", domain.ErrUpstream)
	}
	return resp.Match, nil
}

// HealthCheck verifies the API answers HTTP at all. Any status counts as reachable,
// since the probe carries no credentials.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/dogs/breeds", http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("dogs api unreachable: %w", err)
	}
	drain(resp)
	return nil
}

func (c *Client) getJSON(
	ctx context.Context, endpoint, path string, query url.Values, token string, out any,
) error {
	resp, err := c.do(ctx, endpoint, http.MethodGet, path, query, token, nil)
	if err != nil {
		return err
	}
	defer drain(resp)
	return decode(endpoint, resp, out)
}

func (c *Client) postJSON(ctx context.Context, endpoint, path, token string, body, out any) error {
	resp, err := c.do(ctx, endpoint, http.MethodPost, path, nil, token, body)
	if err != nil {
		return err
	}
	defer drain(resp)
	return decode(endpoint, resp, out)
}

// do sends one request and records metrics. Non-2xx responses become *StatusError
// and the body is consumed; on success the caller owns resp.Body.
func (c *Client) do(
	ctx context.Context, endpoint, method, path string, query url.Values, token string, body any,
) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: token})
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.DogsAPIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.DogsAPIRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%s request: %w", endpoint, err)
		}
		return nil, fmt.Errorf("%s request: %w: %w", endpoint, domain.ErrUpstream, err)
	}

	metrics.DogsAPIRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer drain(resp)
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("dogs api error response",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
		)
		return nil, &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}
	return resp, nil
}

func decode(endpoint string, resp *http.Response, out any) error {
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w: %w", endpoint, domain.ErrUpstream, err)
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
