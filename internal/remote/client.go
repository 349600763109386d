// Package remote fetches the personnel service's field schema and reference
// catalogs over HTTP.
//
// Availability of schema and catalogs is a session precondition: everything
// downstream (mapping, validation, correction) assumes they loaded. Fetches
// therefore retry with backoff, and a persistent failure surfaces as
// schema.ErrSchemaUnavailable so callers can retry the whole session later.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"staffimport/internal/catalog"
	"staffimport/internal/config"
	"staffimport/internal/schema"
)

const (
	defaultSchemaPath  = "/api/v1/staff/schema"
	defaultMaxAttempts = 3
	defaultBackoff     = 500 * time.Millisecond
)

// defaultCatalogPaths maps catalog domains to their service endpoints.
var defaultCatalogPaths = map[string]string{
	catalog.DomainDepartments:    "/api/v1/departments",
	catalog.DomainEmployeeGroups: "/api/v1/employee-groups",
	catalog.DomainEmployeeTypes:  "/api/v1/employee-types",
	catalog.DomainSupervisors:    "/api/v1/supervisors",
}

// Client talks to one personnel service instance.
type Client struct {
	client       *http.Client
	baseURL      string
	authHeader   string
	schemaPath   string
	catalogPaths map[string]string
	maxAttempts  int
	backoff      time.Duration

	newTimer func(d time.Duration) <-chan time.Time // test seam
}

// NewClient builds a client from session config. A nil httpClient uses
// http.DefaultClient. Unset paths and attempt counts get defaults.
func NewClient(httpClient *http.Client, rc config.Remote) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		client:       httpClient,
		baseURL:      strings.TrimRight(rc.BaseURL, "/"),
		authHeader:   rc.AuthHeader,
		schemaPath:   rc.SchemaPath,
		catalogPaths: make(map[string]string, len(defaultCatalogPaths)),
		maxAttempts:  rc.MaxAttempts,
		backoff:      defaultBackoff,
		newTimer:     func(d time.Duration) <-chan time.Time { return time.After(d) },
	}
	if c.schemaPath == "" {
		c.schemaPath = defaultSchemaPath
	}
	for domain, path := range defaultCatalogPaths {
		c.catalogPaths[domain] = path
	}
	for domain, path := range rc.CatalogPaths {
		c.catalogPaths[domain] = path
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	return c
}

// FetchSchema GETs and parses the field schema document.
//
// Errors:
//   - schema.ErrSchemaUnavailable (wrapped) when every attempt failed or the
//     document does not parse; callers may retry the session later.
//   - ctx errors pass through unwrapped.
func (c *Client) FetchSchema(ctx context.Context) (*schema.Registry, error) {
	body, err := c.get(ctx, c.schemaPath)
	if err != nil {
		return nil, err
	}
	reg, err := schema.Load(body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse schema: %v", schema.ErrSchemaUnavailable, err)
	}
	return reg, nil
}

// FetchCatalogs GETs every configured reference catalog and returns them as
// one bound Catalog. Domains are fetched sequentially; the four default
// catalogs are small.
func (c *Client) FetchCatalogs(ctx context.Context) (*catalog.Catalog, error) {
	domains := make(map[string][]catalog.Entry, len(c.catalogPaths))
	for domain, path := range c.catalogPaths {
		body, err := c.get(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", domain, err)
		}
		var entries []catalog.Entry
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, fmt.Errorf("%w: parse catalog %s: %v", schema.ErrSchemaUnavailable, domain, err)
		}
		domains[domain] = entries
	}
	return catalog.New(domains), nil
}

// get performs a GET with bounded retries.
//
// Retried: network errors, 5xx and 429. Not retried: other 4xx (the request
// itself is wrong, repeating it cannot help).
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	url := c.baseURL + path

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			wait := c.backoff * time.Duration(1<<(attempt-2))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-c.newTimer(wait):
			}
		}

		body, retryable, err := c.attempt(ctx, url)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, fmt.Errorf("%w: GET %s: %v", schema.ErrSchemaUnavailable, url, lastErr)
}

func (c *Client) attempt(ctx context.Context, url string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		retry := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retry, fmt.Errorf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	return b, false, nil
}
