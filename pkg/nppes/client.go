// Package nppes looks up pharmacy identities in the CMS NPI registry and
// reads the registry's monthly bulk extract.
package nppes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/rx-intel/internal/model"
	"github.com/sells-group/rx-intel/internal/resilience"
)

// DefaultBaseURL is the public registry API.
const DefaultBaseURL = "https://npiregistry.cms.hhs.gov/api/"

// Client resolves one NPI against the registry.
type Client interface {
	// Lookup returns the registry record for npi. A record with Found
	// false means the registry has no such identifier.
	Lookup(ctx context.Context, npi string) (model.RegistryRecord, error)
}

// Option configures the registry client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.policy = p
	}
}

// WithBreaker shares a circuit breaker across clients.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *httpClient) {
		c.breaker = b
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	policy  resilience.Policy
	breaker *resilience.Breaker
}

// NewClient creates a registry client. The public API asks callers to
// stay well under 20 requests per second.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(5, 5),
		policy:  resilience.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = resilience.NewBreaker("nppes", 5, 30*time.Second)
	}
	if c.policy.OnRetry == nil {
		c.policy.OnRetry = resilience.LogRetries("nppes")
	}
	return c
}

type apiResponse struct {
	ResultCount int         `json:"result_count"`
	Results     []apiResult `json:"results"`
	Errors      []apiError  `json:"Errors"`
}

type apiError struct {
	Description string `json:"description"`
	Field       string `json:"field"`
}

type apiResult struct {
	Number     string        `json:"number"`
	Basic      apiBasic      `json:"basic"`
	Addresses  []apiAddress  `json:"addresses"`
	Taxonomies []apiTaxonomy `json:"taxonomies"`
}

type apiBasic struct {
	OrganizationName string `json:"organization_name"`
	Status           string `json:"status"`
	LastUpdated      string `json:"last_updated"`
	OfficialFirst    string `json:"authorized_official_first_name"`
	OfficialLast     string `json:"authorized_official_last_name"`
}

type apiAddress struct {
	City           string `json:"city"`
	State          string `json:"state"`
	PostalCode     string `json:"postal_code"`
	AddressPurpose string `json:"address_purpose"`
	Phone          string `json:"telephone_number"`
}

type apiTaxonomy struct {
	Code    string `json:"code"`
	Desc    string `json:"desc"`
	Primary bool   `json:"primary"`
}

func (c *httpClient) Lookup(ctx context.Context, npi string) (model.RegistryRecord, error) {
	return resilience.DoVal(ctx, c.policy, func(ctx context.Context) (model.RegistryRecord, error) {
		return resilience.Call(ctx, c.breaker, func(ctx context.Context) (model.RegistryRecord, error) {
			return c.lookupOnce(ctx, npi)
		})
	})
}

func (c *httpClient) lookupOnce(ctx context.Context, npi string) (model.RegistryRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return model.RegistryRecord{}, eris.Wrap(err, "nppes: rate limit")
	}

	params := url.Values{"version": {"2.1"}, "number": {npi}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return model.RegistryRecord{}, eris.Wrap(err, "nppes: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.RegistryRecord{}, resilience.Transient(eris.Wrapf(err, "nppes: lookup %s", npi), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return model.RegistryRecord{}, resilience.Transient(eris.Wrap(err, "nppes: read response body"), 0)
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("nppes: unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
		if resilience.RetryableStatus(resp.StatusCode) {
			return model.RegistryRecord{}, resilience.Transient(err, resp.StatusCode)
		}
		return model.RegistryRecord{}, err
	}

	var ar apiResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return model.RegistryRecord{}, eris.Wrap(err, "nppes: unmarshal response")
	}
	if len(ar.Errors) > 0 {
		return model.RegistryRecord{}, eris.Errorf("nppes: registry rejected %s: %s", npi, ar.Errors[0].Description)
	}
	if ar.ResultCount == 0 || len(ar.Results) == 0 {
		return model.RegistryRecord{NPI: npi, Found: false}, nil
	}
	return toRecord(ar.Results[0]), nil
}

func toRecord(r apiResult) model.RegistryRecord {
	rec := model.RegistryRecord{
		NPI:         r.Number,
		Found:       true,
		Name:        strings.TrimSpace(r.Basic.OrganizationName),
		OwnerName:   strings.TrimSpace(r.Basic.OfficialFirst + " " + r.Basic.OfficialLast),
		Status:      r.Basic.Status,
		LastUpdated: r.Basic.LastUpdated,
	}
	for _, a := range r.Addresses {
		if strings.EqualFold(a.AddressPurpose, "LOCATION") {
			rec.City = a.City
			rec.State = a.State
			rec.ZIP = a.PostalCode
			rec.Phone = a.Phone
			break
		}
	}
	for _, t := range r.Taxonomies {
		if t.Primary {
			rec.Taxonomy = t.Desc
			break
		}
	}
	if rec.Taxonomy == "" && len(r.Taxonomies) > 0 {
		rec.Taxonomy = r.Taxonomies[0].Desc
	}
	return rec
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return fmt.Sprintf("%s...", b[:n])
}
