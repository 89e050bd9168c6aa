// Package transport sends authenticated requests to an IPFS cluster. Upload
// bodies are streamed as multipart/form-data, so file contents are read only
// while the request is being written.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/ubitquityx/constellation"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultProbeTimeout bounds a connectivity probe.
	DefaultProbeTimeout = 5 * time.Second

	// DefaultUserAgent is sent when no other user agent is configured.
	DefaultUserAgent = "constellation-go"

	maxProbeBody = 64 << 10
)

// Part is one multipart form part.
type Part = constellation.Part

// Response is a 2xx response with its body read in full.
type Response = constellation.Response

var _ constellation.Transport = (*Client)(nil)

// Client issues requests against a cluster. It is immutable once created and
// safe for concurrent use.
type Client struct {
	auth         Auth
	httpClient   *http.Client
	timeout      time.Duration
	probeTimeout time.Duration
	userAgent    string
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout bounds every request including the upload body. Zero, the
// default, means no limit.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithProbeTimeout sets the timeout of Probe.
func WithProbeTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.probeTimeout = timeout
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithLogger sets the logger for request lifecycle messages.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client sending auth with every request.
func New(auth Auth, opts ...Option) *Client {
	c := &Client{
		auth:         auth,
		httpClient:   &http.Client{},
		probeTimeout: DefaultProbeTimeout,
		userAgent:    DefaultUserAgent,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}

	return c
}

// Auth returns the credentials variant of the client.
func (c *Client) Auth() Auth {
	return c.auth
}

// Post sends parts as a multipart/form-data body to rawURL with query merged
// into its query string.
//
// The body is produced by a goroutine writing into a pipe, so the content of
// a part is read only when the HTTP transport consumes it. Parts whose content
// implements io.Closer are closed once written, and on failure.
//
// Errors:
//   - *constellation.HTTPError when the cluster answers with a non-2xx status
//   - *constellation.ConnectionError when no complete response was received
//   - a wrapped read error when a part's content fails to read
func (c *Client) Post(ctx context.Context, rawURL string, query url.Values, parts []Part) (*Response, error) {
	target, err := withQuery(rawURL, query)
	if err != nil {
		closeParts(c.logger, parts)
		return nil, fmt.Errorf("post: %w", err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, pr)
	if err != nil {
		closeParts(c.logger, parts)
		return nil, fmt.Errorf("post: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.prepare(req)

	written := 0
	g := new(errgroup.Group)
	g.Go(func() error {
		writeErr := writeParts(mw, parts, &written, c.logger)
		if writeErr == nil {
			writeErr = mw.Close()
		}
		_ = pw.CloseWithError(writeErr)
		return writeErr
	})

	start := time.Now()
	c.logger.Debug("sending request", "method", http.MethodPost, "url", target, "auth", c.auth.Scheme(), "parts", len(parts))

	resp, doErr := c.httpClient.Do(req)

	_ = pr.Close()
	writeErr := g.Wait()
	closeParts(c.logger, parts[written:])

	if writeErr != nil && !errors.Is(writeErr, io.ErrClosedPipe) {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return nil, fmt.Errorf("post: write request body: %w", writeErr)
	}

	if doErr != nil {
		c.logger.Debug("request failed", "url", target, "err", doErr)
		return nil, &constellation.ConnectionError{Method: http.MethodPost, URL: target, Err: doErr}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &constellation.ConnectionError{Method: http.MethodPost, URL: target, Err: fmt.Errorf("read response body: %w", err)}
	}

	c.logger.Debug("received response", "url", target, "status", resp.StatusCode, "bytes", len(body), "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &constellation.HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return &Response{StatusCode: resp.StatusCode, Body: string(body)}, nil
}

// Probe posts an empty request to rawURL and reports whether it answered 200
// within the probe timeout. It never returns an error.
func (c *Client) Probe(ctx context.Context, rawURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, nil)
	if err != nil {
		c.logger.Debug("probe failed", "url", rawURL, "err", err)
		return false
	}
	c.prepare(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("probe failed", "url", rawURL, "err", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProbeBody))

	c.logger.Debug("probe response", "url", rawURL, "status", resp.StatusCode)
	return resp.StatusCode == http.StatusOK
}

func (c *Client) prepare(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	c.auth.apply(req)
}

func writeParts(mw *multipart.Writer, parts []Part, written *int, logger *slog.Logger) error {
	for _, p := range parts {
		w, err := mw.CreateFormFile(p.FieldName, p.FileName)
		if err != nil {
			return err
		}

		_, copyErr := io.Copy(w, p.Content)
		closePart(logger, p)
		*written++

		if copyErr != nil {
			return fmt.Errorf("copy %s: %w", p.FileName, copyErr)
		}
	}
	return nil
}

func closeParts(logger *slog.Logger, parts []Part) {
	for _, p := range parts {
		closePart(logger, p)
	}
}

func closePart(logger *slog.Logger, p Part) {
	closer, ok := p.Content.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn("failed to close part", "filename", p.FileName, "err", err)
	}
}

func withQuery(rawURL string, query url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if len(query) == 0 {
		return u.String(), nil
	}

	q := u.Query()
	for k, vs := range query {
		q[k] = vs
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
