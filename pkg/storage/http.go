package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultHTTPAttempts = 3
	defaultHTTPBackoff  = 500 * time.Millisecond
	defaultHTTPTimeout  = 60 * time.Second
)

// HTTPBackend talks to a hosting wrapper that exposes a repository's files
// over HTTP:
//
//	GET    <base>/files/<path>   file bytes, 404 when absent
//	PUT    <base>/files/<path>   replace file bytes
//	DELETE <base>/files/<path>   remove file
//	GET    <base>/list/<dir>     JSON array of child names
//
// Bodies may be zstd encoded in both directions (Content-Encoding: zstd).
type HTTPBackend struct {
	base        *url.URL
	client      *http.Client
	token       string
	maxAttempts int
	backoff     time.Duration
	compress    bool
}

var _ Backend = (*HTTPBackend)(nil)

// HTTPOption configures an HTTPBackend.
type HTTPOption func(*HTTPBackend)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(b *HTTPBackend) {
		if c != nil {
			b.client = c
		}
	}
}

// WithMaxAttempts sets how many times a request is tried when the server
// returns 429/5xx or the connection fails. 1 disables retries.
func WithMaxAttempts(n int) HTTPOption {
	return func(b *HTTPBackend) {
		if n > 0 {
			b.maxAttempts = n
		}
	}
}

// WithRetryBackoff sets the delay before the first retry; it doubles after
// every attempt.
func WithRetryBackoff(d time.Duration) HTTPOption {
	return func(b *HTTPBackend) { b.backoff = d }
}

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) HTTPOption {
	return func(b *HTTPBackend) { b.token = strings.TrimSpace(token) }
}

// WithUploadCompression toggles zstd request bodies for writes.
func WithUploadCompression(enabled bool) HTTPOption {
	return func(b *HTTPBackend) { b.compress = enabled }
}

// NewHTTP returns a backend for the file API rooted at baseURL.
func NewHTTP(baseURL string, opts ...HTTPOption) (*HTTPBackend, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("http backend: base URL is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("http backend: parse base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("http backend: base URL must include scheme and host")
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""

	b := &HTTPBackend{
		base:        u,
		client:      &http.Client{Timeout: defaultHTTPTimeout},
		maxAttempts: defaultHTTPAttempts,
		backoff:     defaultHTTPBackoff,
		compress:    true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *HTTPBackend) endpoint(kind, p string) string {
	u := *b.base
	if p == "" {
		return u.JoinPath(kind).String() + "/"
	}
	segments := append([]string{kind}, strings.Split(p, "/")...)
	return u.JoinPath(segments...).String()
}

func (b *HTTPBackend) newRequest(ctx context.Context, method, target string, body []byte) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Encoding", zstdEncoding)
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
	return req, nil
}

func (b *HTTPBackend) do(req *http.Request) (*http.Response, error) {
	return retryDo(b.client, req, b.maxAttempts, b.backoff)
}

func (b *HTTPBackend) ReadFile(ctx context.Context, p string) ([]byte, error) {
	p, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	req, err := b.newRequest(ctx, http.MethodGet, b.endpoint("files", p), nil)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", p, err)
	}
	resp, err := b.do(req)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", p, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, notFound("read", p)
	default:
		return nil, fmt.Errorf("read %q: %w", p, statusError(resp))
	}
	data, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", p, err)
	}
	return data, nil
}

func (b *HTTPBackend) WriteFile(ctx context.Context, p string, data []byte) error {
	p, err := CleanPath(p)
	if err != nil {
		return err
	}
	if p == "" {
		return fmt.Errorf("write: empty path: %w", ErrInvalidPath)
	}
	body := data
	if b.compress {
		body, err = compressZstd(data)
		if err != nil {
			return fmt.Errorf("write %q: compress: %w", p, err)
		}
	}
	if body == nil {
		body = []byte{}
	}
	req, err := b.newRequest(ctx, http.MethodPut, b.endpoint("files", p), body)
	if err != nil {
		return fmt.Errorf("write %q: %w", p, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if b.compress {
		req.Header.Set("Content-Encoding", zstdEncoding)
	}
	resp, err := b.do(req)
	if err != nil {
		return fmt.Errorf("write %q: %w", p, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("write %q: %w", p, statusError(resp))
	}
	return nil
}

func (b *HTTPBackend) DeleteFile(ctx context.Context, p string) error {
	p, err := CleanPath(p)
	if err != nil {
		return err
	}
	req, err := b.newRequest(ctx, http.MethodDelete, b.endpoint("files", p), nil)
	if err != nil {
		return fmt.Errorf("delete %q: %w", p, err)
	}
	resp, err := b.do(req)
	if err != nil {
		return fmt.Errorf("delete %q: %w", p, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete %q: %w", p, statusError(resp))
	}
	return nil
}

func (b *HTTPBackend) ListDirectory(ctx context.Context, dir string) ([]string, error) {
	dir, err := CleanPath(dir)
	if err != nil {
		return nil, err
	}
	req, err := b.newRequest(ctx, http.MethodGet, b.endpoint("list", dir), nil)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", dir, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := b.do(req)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", dir, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return []string{}, nil
	default:
		return nil, fmt.Errorf("list %q: %w", dir, statusError(resp))
	}
	data, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", dir, err)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("list %q: decode: %w", dir, err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if isZstdEncoded(resp.Header.Get("Content-Encoding")) {
		return decompressZstd(data, maxBodyBytes)
	}
	return data, nil
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	text := strings.TrimSpace(string(msg))
	if text == "" {
		return fmt.Errorf("unexpected HTTP status %s", resp.Status)
	}
	return fmt.Errorf("unexpected HTTP status %s: %s", resp.Status, text)
}
