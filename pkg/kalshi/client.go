package kalshi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the production trade API host.
	DefaultBaseURL = "https://api.elections.kalshi.com"

	// DefaultPageSize is the per-page limit used when a filter leaves it unset.
	DefaultPageSize = 100
	// MaxPageSize is the largest limit the server accepts.
	MaxPageSize = 1000
	// DefaultMaxPages bounds every pagination loop that does not set its own ceiling.
	DefaultMaxPages = 100
	// DefaultMarketsMaxPages keeps catalog scans conservative.
	DefaultMarketsMaxPages = 10

	defaultHTTPTimeout = 30 * time.Second
)

// Response is the raw outcome of an executed request. Status codes are not
// interpreted at this layer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// Client issues signed requests against the Kalshi trade API.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	timeout         time.Duration
	signer          Signer
	pageSize        int
	maxPageSize     int
	maxPages        int
	marketsMaxPages int
	retry           *RetryHandler
}

// ClientOption customises the client.
type ClientOption func(*Client)

// WithBaseURL overrides the API host.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient overrides the default HTTP client. The client is copied,
// never modified.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout sets the per-request timeout. It applies regardless of option
// order, including to a client supplied through WithHTTPClient.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithPageSize sets the default per-page limit.
func WithPageSize(size int) ClientOption {
	return func(c *Client) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// WithMaxPageSize sets the server-documented page size ceiling.
func WithMaxPageSize(size int) ClientOption {
	return func(c *Client) {
		if size > 0 {
			c.maxPageSize = size
		}
	}
}

// WithMaxPages sets the default pagination ceiling for trades and series.
func WithMaxPages(pages int) ClientOption {
	return func(c *Client) {
		if pages > 0 {
			c.maxPages = pages
		}
	}
}

// WithMarketsMaxPages sets the default pagination ceiling for markets.
func WithMarketsMaxPages(pages int) ClientOption {
	return func(c *Client) {
		if pages > 0 {
			c.marketsMaxPages = pages
		}
	}
}

// WithRetry enables retries of failed page fetches. Retries are off unless
// this option is supplied with MaxRetries > 0.
func WithRetry(cfg RetryConfig) ClientOption {
	return func(c *Client) {
		if cfg.MaxRetries > 0 {
			c.retry = NewRetryHandler(cfg)
		}
	}
}

// NewClient constructs a client that signs every request with signer.
func NewClient(signer Signer, opts ...ClientOption) (*Client, error) {
	if signer == nil {
		return nil, errors.New("kalshi: signer is required")
	}
	client := &Client{
		baseURL:         DefaultBaseURL,
		httpClient:      http.DefaultClient,
		signer:          signer,
		pageSize:        DefaultPageSize,
		maxPageSize:     MaxPageSize,
		maxPages:        DefaultMaxPages,
		marketsMaxPages: DefaultMarketsMaxPages,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.pageSize > client.maxPageSize {
		client.pageSize = client.maxPageSize
	}
	client.httpClient = withTimeout(client.httpClient, client.timeout)
	return client, nil
}

// withTimeout returns a shallow copy of hc carrying the effective timeout:
// the explicit one when set, else hc's own, else defaultHTTPTimeout.
func withTimeout(hc *http.Client, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = hc.Timeout
	}
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	cp := *hc
	cp.Timeout = timeout
	return &cp
}

// BaseURL returns the configured API host.
func (c *Client) BaseURL() string { return c.baseURL }

// Execute signs and dispatches a single request. GET and DELETE send query
// parameters (empty values omitted); POST and PUT send body as JSON. The
// response is returned whatever its status code.
func (c *Client) Execute(ctx context.Context, method, path string, query url.Values, body any) (*Response, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	signPath, rawQuery, _ := strings.Cut(path, "?")
	if !strings.HasPrefix(signPath, "/") {
		signPath = "/" + signPath
	}

	target := c.baseURL + signPath
	var payload io.Reader
	switch method {
	case http.MethodGet, http.MethodDelete:
		encoded, err := encodeQuery(rawQuery, query)
		if err != nil {
			return nil, fmt.Errorf("kalshi: parse query: %w", err)
		}
		if encoded != "" {
			target += "?" + encoded
		}
	case http.MethodPost, http.MethodPut:
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("kalshi: encode request body: %w", err)
			}
			payload = bytes.NewReader(data)
		}
	default:
		return nil, &UnsupportedMethodError{Method: method}
	}

	// Sign per call: the timestamp must be fresh at send time.
	auth, err := c.signer.Sign(method, signPath)
	if err != nil {
		var signErr *SigningError
		if errors.As(err, &signErr) {
			return nil, err
		}
		return nil, &SigningError{Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return nil, fmt.Errorf("kalshi: build request: %w", err)
	}
	auth.Apply(httpReq.Header)
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &HTTPTransportError{Method: method, Path: signPath, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &HTTPTransportError{Method: method, Path: signPath, Err: fmt.Errorf("read body: %w", err)}
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// fetchPage executes a GET and decodes one page of the named records field.
func (c *Client) fetchPage(ctx context.Context, path, field string, query url.Values) (*Page, error) {
	var page *Page
	attempt := func() error {
		resp, err := c.Execute(ctx, http.MethodGet, path, query, nil)
		if err != nil {
			return err
		}
		if !resp.OK() {
			return &APIError{StatusCode: resp.StatusCode, Body: resp.Body}
		}
		page, err = decodePage(resp.Body, field)
		return err
	}
	var err error
	if c.retry == nil {
		err = attempt()
	} else {
		err = c.retry.Do(ctx, attempt)
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}

// paginate drives fetchPage across cursors, cloning query for every page.
func (c *Client) paginate(ctx context.Context, path, field string, query url.Values, opts PaginateOptions) (*Result, error) {
	if opts.Label == "" {
		opts.Label = field
	}
	res := Paginate(ctx, func(ctx context.Context, cursor string) (*Page, error) {
		q := cloneValues(query)
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		return c.fetchPage(ctx, path, field, q)
	}, opts)
	return res, res.Err
}

// encodeQuery merges an inline query from the request path with query,
// dropping empty values.
func encodeQuery(rawQuery string, query url.Values) (string, error) {
	merged := url.Values{}
	if rawQuery != "" {
		parsed, err := url.ParseQuery(rawQuery)
		if err != nil {
			return "", err
		}
		addNonEmpty(merged, parsed)
	}
	addNonEmpty(merged, query)
	return merged.Encode(), nil
}

func addNonEmpty(dst, src url.Values) {
	for k, vs := range src {
		for _, v := range vs {
			if v != "" {
				dst.Add(k, v)
			}
		}
	}
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+1)
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
