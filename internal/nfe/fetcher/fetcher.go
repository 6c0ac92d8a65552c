// Package fetcher retrieves NFe XML documents from the document service.
//
// The service materializes documents lazily: the first read of a document it
// has not cached answers 400 (sometimes 500). The fetch protocol answers that
// by calling the data endpoint once to prime the cache and reading the XML
// again. The second read is final.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"frota/pkg/domain"
)

const (
	xmlPathPrefix  = "api/v1/get/nfe/xml/"
	dataPathPrefix = "api/v1/get/nfe/data/MEUDANFE/"

	// The upstream rejects empty POST bodies; the content is ignored.
	placeholderPayload = "empty"

	defaultMaxBodyBytes = 10 << 20
	defaultTimeout      = 30 * time.Second
)

// DefaultPrimeStatuses are the xml-endpoint statuses that trigger priming.
var DefaultPrimeStatuses = []int{http.StatusBadRequest, http.StatusInternalServerError}

// Observer is notified after every upstream round trip. Status is 0 when the
// round trip failed before a response arrived.
type Observer interface {
	ObserveUpstream(endpoint string, status int, d time.Duration)
}

// Fetcher implements the fetch-and-prime protocol. It holds no per-document
// state and is safe for concurrent use.
type Fetcher struct {
	client       *http.Client
	baseURL      *url.URL
	primeOn      map[int]struct{}
	maxBodyBytes int64
	observer     Observer
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithPrimeStatuses replaces the set of xml-endpoint statuses that trigger
// the priming step.
func WithPrimeStatuses(statuses ...int) Option {
	return func(f *Fetcher) {
		f.primeOn = make(map[int]struct{}, len(statuses))
		for _, s := range statuses {
			f.primeOn[s] = struct{}{}
		}
	}
}

// WithMaxBodyBytes caps the size of a document body.
func WithMaxBodyBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodyBytes = n
		}
	}
}

// WithObserver registers a round-trip observer (metrics).
func WithObserver(o Observer) Option {
	return func(f *Fetcher) {
		f.observer = o
	}
}

// NewHTTPClient returns an http.Client whose transport is traced with otelhttp.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// New builds a Fetcher for the document service rooted at baseURL.
func New(baseURL string, opts ...Option) (*Fetcher, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL %q has no host", baseURL)
	}

	f := &Fetcher{
		client:       NewHTTPClient(defaultTimeout),
		baseURL:      EnforceTrailingSlash(u),
		maxBodyBytes: defaultMaxBodyBytes,
	}
	WithPrimeStatuses(DefaultPrimeStatuses...)(f)
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// EnforceTrailingSlash returns a copy of u whose path ends with "/".
// Applying it twice is the same as applying it once.
func EnforceTrailingSlash(u *url.URL) *url.URL {
	out := *u
	if strings.HasSuffix(out.Path, "/") {
		return &out
	}
	out.Path += "/"
	if out.RawPath != "" {
		out.RawPath += "/"
	}
	return &out
}

// BaseURL returns the normalized base URL.
func (f *Fetcher) BaseURL() string {
	return f.baseURL.String()
}

// Fetch returns the raw XML of the document identified by accessKey.
//
// The key is validated before any request is made. A 2xx from the xml
// endpoint is returned verbatim. A priming status leads to exactly one
// prime-and-retry; any other status fails with *UpstreamError.
func (f *Fetcher) Fetch(ctx context.Context, accessKey string) ([]byte, error) {
	key, err := domain.ParseAccessKey(accessKey)
	if err != nil {
		return nil, err
	}
	xmlURL, dataURL := f.endpoints(key)

	body, err := f.post(ctx, EndpointXML, xmlURL)
	if err == nil {
		return body, nil
	}
	if !f.needsPriming(err) {
		return nil, err
	}
	return f.primeAndRetry(ctx, xmlURL, dataURL)
}

// primeAndRetry asks the data endpoint to materialize the document, then
// reads the xml endpoint one last time.
func (f *Fetcher) primeAndRetry(ctx context.Context, xmlURL, dataURL string) ([]byte, error) {
	if _, err := f.post(ctx, EndpointData, dataURL); err != nil {
		return nil, markPrimed(err)
	}
	body, err := f.post(ctx, EndpointXML, xmlURL)
	if err != nil {
		return nil, markPrimed(err)
	}
	return body, nil
}

func (f *Fetcher) needsPriming(err error) bool {
	status := UpstreamStatus(err)
	if status == 0 {
		return false
	}
	_, ok := f.primeOn[status]
	return ok
}

func (f *Fetcher) endpoints(key domain.AccessKey) (xmlURL, dataURL string) {
	xmlURL = f.baseURL.ResolveReference(&url.URL{Path: xmlPathPrefix + key.String()}).String()
	dataURL = f.baseURL.ResolveReference(&url.URL{Path: dataPathPrefix + key.String()}).String()
	return xmlURL, dataURL
}

func (f *Fetcher) post(ctx context.Context, endpoint Endpoint, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(placeholderPayload))
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Accept", "application/xml, text/xml, */*")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.observe(endpoint, 0, start)
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()
	f.observe(endpoint, resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, f.maxBodyBytes))
		return nil, &UpstreamError{Endpoint: endpoint, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, &TransportError{Endpoint: endpoint, Err: ErrBodyTooLarge}
	}
	return body, nil
}

func (f *Fetcher) observe(endpoint Endpoint, status int, start time.Time) {
	if f.observer != nil {
		f.observer.ObserveUpstream(string(endpoint), status, time.Since(start))
	}
}

func markPrimed(err error) error {
	if ue, ok := err.(*UpstreamError); ok {
		primed := *ue
		primed.Primed = true
		return &primed
	}
	return err
}
