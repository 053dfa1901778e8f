package dataddo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/dataddo-puller/pkg/httpclient"
)

const (
	// DefaultBaseURL is the API host and version prefix.
	DefaultBaseURL = "https://api.dataddo.com/v1.0"
	// DefaultTimeout bounds a call made through the default transport.
	DefaultTimeout = 30 * time.Second

	endpointPath = "/get/"
	sourcePath   = "/get/source/"
	flowPath     = "/get/flow/"

	maxErrorBodyBytes = 512
)

// Logger receives request traces. Errors are returned, never logged.
type Logger interface {
	DebugObj(msg, key string, obj interface{})
}

// Client performs data calls against one API base URL. It holds no mutable state
// and is safe for concurrent use.
type Client struct {
	http    httpclient.Client
	baseURL string
	log     Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the transport. Its timeout applies to every call.
func WithHTTPClient(c httpclient.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(u string) ClientOption {
	return func(cl *Client) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			cl.baseURL = u
		}
	}
}

// WithLogger enables debug request tracing.
func WithLogger(l Logger) ClientOption {
	return func(cl *Client) { cl.log = l }
}

// NewClient builds a Client. Without WithHTTPClient it uses a resty transport
// with DefaultTimeout.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{baseURL: DefaultBaseURL}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.http == nil {
		c.http = httpclient.NewRestyClient(DefaultTimeout, httpclient.WithUserAgent(UserAgent))
	}
	return c
}

// BaseURL returns the API prefix the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// RequestOptions selects the response format of a data call. An empty
// JSONFormat or CSVDelimiter leaves the parameter out of the URL.
type RequestOptions struct {
	Format       Format
	JSONFormat   JSONFormat
	CSVDelimiter CSVDelimiter
}

// RequestOption adjusts RequestOptions.
type RequestOption func(*RequestOptions)

// DefaultRequestOptions is JSON, 2-D array, comma.
func DefaultRequestOptions() RequestOptions {
	return RequestOptions{
		Format:       FormatJSON,
		JSONFormat:   JSONFormatArray,
		CSVDelimiter: CSVDelimiterComma,
	}
}

// WithFormat selects csv or json. The empty Format means json.
func WithFormat(f Format) RequestOption {
	return func(o *RequestOptions) { o.Format = f }
}

// WithJSONFormat only has an effect when the format is JSON.
func WithJSONFormat(f JSONFormat) RequestOption {
	return func(o *RequestOptions) { o.JSONFormat = f }
}

// WithCSVDelimiter only has an effect when the format is CSV.
func WithCSVDelimiter(d CSVDelimiter) RequestOption {
	return func(o *RequestOptions) { o.CSVDelimiter = d }
}

// WithRequestOptions replaces all format options at once.
func WithRequestOptions(ro RequestOptions) RequestOption {
	return func(o *RequestOptions) { *o = ro }
}

func buildRequestOptions(opts []RequestOption) RequestOptions {
	ro := DefaultRequestOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&ro)
		}
	}
	if ro.Format == "" {
		ro.Format = FormatJSON
	}
	return ro
}

// BuildURL returns the data URL for id under baseURL. Sub-options that do not
// match the format are ignored.
func BuildURL(baseURL string, id ObjectID, ro RequestOptions) (string, error) {
	var path string
	switch id.Kind() {
	case KindSource:
		path = sourcePath
	case KindEndpoint:
		path = endpointPath
	case KindFlow:
		path = flowPath
	default:
		return "", &UnsupportedIdentifierError{Kind: id.Kind()}
	}
	if id.IsZero() {
		return "", &InvalidIdentifierError{Kind: id.Kind(), Reason: "must be specified"}
	}

	format := ro.Format
	if format == "" {
		format = FormatJSON
	}
	if !format.Valid() {
		return "", fmt.Errorf("unsupported format %q", format)
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(baseURL, "/"))
	b.WriteString(path)
	b.WriteString(id.String())
	b.WriteString("?format=")
	b.WriteString(url.QueryEscape(string(format)))

	switch {
	case format == FormatJSON && ro.JSONFormat != "":
		if !ro.JSONFormat.Valid() {
			return "", fmt.Errorf("unsupported json_format %q", ro.JSONFormat)
		}
		b.WriteString("&json_format=")
		b.WriteString(url.QueryEscape(string(ro.JSONFormat)))
	case format == FormatCSV && ro.CSVDelimiter != "":
		if !ro.CSVDelimiter.Valid() {
			return "", fmt.Errorf("unsupported csv_delimiter %q", ro.CSVDelimiter)
		}
		b.WriteString("&csv_delimiter=")
		b.WriteString(url.QueryEscape(string(ro.CSVDelimiter)))
	}
	return b.String(), nil
}

// GetSourceData fetches the table behind id. It issues exactly one GET.
func (c *Client) GetSourceData(ctx context.Context, token Token, id ObjectID, opts ...RequestOption) (*DataResponse, error) {
	if token.IsZero() {
		return nil, &InvalidTokenError{Reason: "must be specified"}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ro := buildRequestOptions(opts)
	u, err := BuildURL(c.baseURL, id, ro)
	if err != nil {
		return nil, err
	}

	if c.log != nil {
		c.log.DebugObj("dataddo request", "dataddo_request", map[string]any{
			"kind":      id.Kind().String(),
			"object_id": id.String(),
			"url":       u,
		})
	}

	resp, err := c.http.Get(ctx, u, map[string]string{
		"Authorization": "Bearer " + token.String(),
		"Accept":        "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", id.Kind(), id, err)
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return nil, &UnexpectedStatusError{StatusCode: resp.StatusCode(), Body: bodySnippet(body)}
	}

	data, err := ParseDataResponse(body)
	if err != nil {
		return nil, err
	}

	if c.log != nil {
		rows, cols := data.Shape()
		c.log.DebugObj("dataddo response", "dataddo_response", map[string]any{
			"object_id":  id.String(),
			"rows":       rows,
			"columns":    cols,
			"total_rows": data.TotalRows(),
		})
	}
	return data, nil
}

var (
	defaultClientOnce sync.Once
	defaultClient     *Client
)

// GetSourceData fetches through a shared Client built with NewClient().
func GetSourceData(ctx context.Context, token Token, id ObjectID, opts ...RequestOption) (*DataResponse, error) {
	defaultClientOnce.Do(func() { defaultClient = NewClient() })
	return defaultClient.GetSourceData(ctx, token, id, opts...)
}

func bodySnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyBytes {
		return s[:maxErrorBodyBytes] + "..."
	}
	return s
}
