// Package docai is a client for the hosted Document Intelligence API used to
// classify filing pages and extract structured data from them. Both
// operations are asynchronous: they return a parse ID that is polled via
// GetParse (see poll.go).
package docai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Default base URL for the Document AI API.
const defaultBaseURL = "https://api.tensorlake.ai/documents/v1"

// Parse job statuses reported by GetParse.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusSuccessful = "successful"
	StatusFailure    = "failure"
)

// Client defines the Document AI operations used by the ingestion pipeline.
type Client interface {
	Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResponse, error)
	Extract(ctx context.Context, req ExtractRequest) (*ExtractResponse, error)
	GetParse(ctx context.Context, id string) (*ParseResult, error)
}

// PageClassConfig declares a named page class with a natural-language
// description the service uses to tag pages.
type PageClassConfig struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ClassifyRequest is the body for POST /classify.
type ClassifyRequest struct {
	FileURL             string            `json:"file_url"`
	PageClassifications []PageClassConfig `json:"page_classifications"`
}

// ClassifyResponse is the response from POST /classify.
type ClassifyResponse struct {
	ParseID string `json:"parse_id"`
}

// StructuredExtractionOptions names a target schema and carries its JSON
// Schema document.
type StructuredExtractionOptions struct {
	SchemaName string          `json:"schema_name"`
	JSONSchema json.RawMessage `json:"json_schema"`
}

// ExtractRequest is the body for POST /extract. PageRange is a comma-joined
// list of page numbers ("1,2,5").
type ExtractRequest struct {
	FileURL           string                        `json:"file_url"`
	PageRange         string                        `json:"page_range,omitempty"`
	ExtractionOptions []StructuredExtractionOptions `json:"structured_extraction_options"`
}

// ExtractResponse is the response from POST /extract.
type ExtractResponse struct {
	ParseID string `json:"parse_id"`
}

// PageClass is one classification entry: a class name and the ordered page
// numbers assigned to it.
type PageClass struct {
	PageClass   string `json:"page_class"`
	PageNumbers []int  `json:"page_numbers"`
}

// StructuredData is one extraction entry. Data holds whatever the service
// produced for the declared schema; callers decode it themselves.
type StructuredData struct {
	SchemaName string          `json:"schema_name"`
	Data       json.RawMessage `json:"data"`
}

// ParseResult is the response from GET /parse/{id} for both classification
// and extraction jobs.
type ParseResult struct {
	ParseID        string           `json:"parse_id"`
	Status         string           `json:"status"`
	PageClasses    []PageClass      `json:"page_classes,omitempty"`
	StructuredData []StructuredData `json:"structured_data,omitempty"`
}

// APIError is returned when the service responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("docai: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit paces requests at rps per second with the given burst.
// Zero or negative rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new Document AI client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResponse, error) {
	var resp ClassifyResponse
	if err := c.post(ctx, "/classify", req, &resp); err != nil {
		return nil, eris.Wrap(err, "docai: classify")
	}
	return &resp, nil
}

func (c *httpClient) Extract(ctx context.Context, req ExtractRequest) (*ExtractResponse, error) {
	var resp ExtractResponse
	if err := c.post(ctx, "/extract", req, &resp); err != nil {
		return nil, eris.Wrap(err, "docai: extract")
	}
	return &resp, nil
}

func (c *httpClient) GetParse(ctx context.Context, id string) (*ParseResult, error) {
	var resp ParseResult
	if err := c.get(ctx, fmt.Sprintf("/parse/%s", id), &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("docai: get parse %s", id))
	}
	return &resp, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.do(ctx, req, out)
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.do(ctx, req, out)
}

func (c *httpClient) do(ctx context.Context, req *http.Request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limit wait")
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}
