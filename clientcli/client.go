package clientcli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ubitquityx/constellation"
)

// DefaultGateway is the public gateway used for display links.
const DefaultGateway = "https://gateway.ubitquityx.com"

// Client runs uploads for a host program and records them in the history ledger.
type Client struct {
	uploader *constellation.Uploader
	history  constellation.HistoryRepo
	gateway  string
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHistory records every successful upload in repo.
func WithHistory(repo constellation.HistoryRepo) Option {
	return func(c *Client) {
		c.history = repo
	}
}

// WithGateway sets the gateway used for display links.
func WithGateway(gateway string) Option {
	return func(c *Client) {
		if gateway != "" {
			c.gateway = strings.TrimRight(gateway, "/")
		}
	}
}

// WithLogger sets the logger used for non-fatal warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a new Client around uploader.
func New(uploader *constellation.Uploader, opts ...Option) (*Client, error) {
	if uploader == nil {
		return nil, ErrUploaderRequired
	}

	c := &Client{
		uploader: uploader,
		gateway:  DefaultGateway,
		logger:   slog.Default(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Endpoint returns the cluster API base URL.
func (c *Client) Endpoint() string {
	return c.uploader.BaseURL()
}

// CheckConnection reports whether the cluster answered its liveness probe.
func (c *Client) CheckConnection(ctx context.Context) CheckResult {
	return CheckResult{Endpoint: c.Endpoint(), Reachable: c.uploader.CheckConnection(ctx)}
}

// Upload uploads opts.Path and records the result in history when enabled.
// A history failure never fails the upload; it is logged and kept in
// UploadReport.HistoryErr.
func (c *Client) Upload(ctx context.Context, opts UploadOptions) (*UploadReport, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("upload: %w", ErrEmptyPath)
	}

	start := c.now()
	result, err := c.uploader.Upload(ctx, opts.Path, constellation.UploadOptions{
		Pin:               opts.Pin,
		WrapWithDirectory: opts.Wrap,
		Exclude:           opts.Exclude,
	})
	if err != nil {
		return nil, err
	}

	report := &UploadReport{
		UploadResult: result,
		SourcePath:   absPath(opts.Path),
		Endpoint:     c.Endpoint(),
		Pinned:       opts.Pin,
		Wrapped:      opts.Wrap,
		GatewayURL:   GatewayURL(c.gateway, result.CID),
		IPFSURI:      IPFSURI(result.CID),
		Duration:     c.now().Sub(start),
	}

	if c.history != nil {
		rec, histErr := c.history.Add(ctx, constellation.HistoryEntry{
			CID:        result.CID,
			Name:       result.Name,
			Size:       result.Size,
			SourcePath: report.SourcePath,
			Endpoint:   report.Endpoint,
			Pinned:     opts.Pin,
			Wrapped:    opts.Wrap,
		})
		if histErr != nil {
			c.logger.Warn("failed to record upload history", "cid", result.CID, "error", histErr)
			report.HistoryErr = histErr
		} else {
			report.HistoryID = &rec.ID
		}
	}

	return report, nil
}

// History lists recorded uploads, newest first.
func (c *Client) History(ctx context.Context, opts ListOptions) (*constellation.HistoryPage, error) {
	if c.history == nil {
		return nil, ErrHistoryDisabled
	}
	if opts.All {
		return c.historyAll(ctx, opts)
	}
	return c.historyPage(ctx, opts)
}

// Lookup returns the most recent history record for cid.
func (c *Client) Lookup(ctx context.Context, cid string) (constellation.HistoryRecord, error) {
	if c.history == nil {
		return constellation.HistoryRecord{}, ErrHistoryDisabled
	}
	return c.history.Get(ctx, cid)
}

func (c *Client) historyPage(ctx context.Context, opts ListOptions) (*constellation.HistoryPage, error) {
	page, err := c.history.List(ctx, constellation.HistoryQuery{
		CID:        opts.CID,
		NamePrefix: opts.NamePrefix,
		Limit:      opts.Limit,
		Cursor:     opts.Cursor,
	})
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return &page, nil
}

// historyAll follows cursors until the ledger is exhausted.
func (c *Client) historyAll(ctx context.Context, opts ListOptions) (*constellation.HistoryPage, error) {
	all := &constellation.HistoryPage{Items: []constellation.HistoryRecord{}}
	cursor := opts.Cursor

	for {
		page, err := c.historyPage(ctx, ListOptions{
			CID:        opts.CID,
			NamePrefix: opts.NamePrefix,
			Limit:      opts.Limit,
			Cursor:     cursor,
		})
		if err != nil {
			return nil, err
		}

		all.Items = append(all.Items, page.Items...)

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	return all, nil
}

// GatewayURL returns the gateway link for cid.
func GatewayURL(gateway, cid string) string {
	return strings.TrimRight(gateway, "/") + "/ipfs/" + cid
}

// IPFSURI returns the ipfs:// URI for cid.
func IPFSURI(cid string) string {
	return "ipfs://" + cid
}

// PinStatusCommand returns the command that shows the pin status of cid.
func PinStatusCommand(cid string) string {
	return "constellation-cli pin ls " + cid
}

// ReadSecretFile returns the trimmed contents of a secret file such as an
// API token file.
func ReadSecretFile(path string) (string, error) {
	data, err := os.ReadFile(filepath.Clean(path)) //#nosec G304 -- path is user-provided secret file
	if err != nil {
		return "", fmt.Errorf("read secret file: %w", err)
	}

	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptySecret, path)
	}
	return secret, nil
}

// ResolveToken returns key, or the contents of keyFile when key is empty.
func ResolveToken(key, keyFile string) (string, error) {
	if key != "" || keyFile == "" {
		return key, nil
	}
	return ReadSecretFile(keyFile)
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
