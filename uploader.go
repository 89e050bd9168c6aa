package constellation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ubitquityx/constellation/filesystem"
)

const (
	addPath = "/api/v0/add"
	idPath  = "/api/v0/id"

	// formField is the multipart field name the cluster reads files from.
	formField = "file"
)

// Uploader adds files and directories to an IPFS cluster through a Transport.
// It holds no per-call state and is safe for concurrent use.
type Uploader struct {
	baseURL    string
	transport  Transport
	logger     *slog.Logger
	wrapSource func(Source) Source
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithLogger sets the logger used for upload lifecycle messages.
func WithLogger(logger *slog.Logger) Option {
	return func(u *Uploader) {
		u.logger = logger
	}
}

// WithSourceWrapper wraps every Source the uploader reads files through.
// Tests use it to observe handle lifetimes.
func WithSourceWrapper(wrap func(Source) Source) Option {
	return func(u *Uploader) {
		u.wrapSource = wrap
	}
}

// NewUploader returns an Uploader for the cluster API at baseURL, which must
// be an absolute http or https URL. A trailing slash is ignored.
func NewUploader(baseURL string, transport Transport, opts ...Option) (*Uploader, error) {
	if transport == nil {
		return nil, errors.New("new uploader: transport is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("new uploader: %w: %w", ErrInvalidEndpoint, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("new uploader: %w: %q", ErrInvalidEndpoint, baseURL)
	}

	u := &Uploader{
		baseURL:    strings.TrimRight(baseURL, "/"),
		transport:  transport,
		logger:     slog.Default(),
		wrapSource: func(s Source) Source { return s },
	}

	for _, opt := range opts {
		opt(u)
	}

	return u, nil
}

// BaseURL returns the normalized cluster base URL.
func (u *Uploader) BaseURL() string {
	return u.baseURL
}

// Upload adds the file or directory at path to the cluster.
//
// A missing path fails with ErrNotFound and a path that is neither a regular
// file nor a directory (including a broken symlink) fails with
// ErrInvalidTarget; neither issues a request. Transport failures surface as
// *ConnectionError or *HTTPError, and an undecodable response as *ParseError.
func (u *Uploader) Upload(ctx context.Context, path string, opts UploadOptions) (UploadResult, error) {
	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return UploadResult{}, fmt.Errorf("upload %s: %w", path, ErrNotFound)
		}
		return UploadResult{}, fmt.Errorf("upload %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload %s: %w: %w", path, ErrInvalidTarget, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload %s: %w", path, err)
	}

	switch {
	case info.IsDir():
		return u.uploadDirectory(ctx, abs, opts)
	case info.Mode().IsRegular():
		return u.uploadFile(ctx, abs, opts)
	default:
		return UploadResult{}, fmt.Errorf("upload %s: %w: mode %s", path, ErrInvalidTarget, info.Mode().Type())
	}
}

func (u *Uploader) uploadFile(ctx context.Context, abs string, opts UploadOptions) (UploadResult, error) {
	name := filepath.Base(abs)
	src := u.wrapSource(osSource{dir: filepath.Dir(abs)})

	entry := NewFileEntry(name, src, name)
	defer u.closeEntries([]*FileEntry{entry})

	query := url.Values{}
	query.Set("pin", strconv.FormatBool(opts.Pin))

	return u.post(ctx, query, []*FileEntry{entry}, name)
}

func (u *Uploader) uploadDirectory(ctx context.Context, abs string, opts UploadOptions) (UploadResult, error) {
	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return UploadResult{}, fmt.Errorf("upload %s: invalid exclude pattern %q", abs, pattern)
		}
	}

	rootName := filepath.Base(abs)

	tree, err := filesystem.OpenTree(abs, u.logger)
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload %s: %w", abs, err)
	}
	defer func() {
		if closeErr := tree.Close(); closeErr != nil {
			u.logger.Warn("failed to close upload tree", "path", abs, "err", closeErr)
		}
	}()

	files, err := tree.Files(ctx)
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload %s: %w", abs, err)
	}

	src := u.wrapSource(tree)

	entries := make([]*FileEntry, 0, len(files))
	defer func() { u.closeEntries(entries) }()

	for _, rel := range files {
		excluded, err := isExcluded(opts.Exclude, rel)
		if err != nil {
			return UploadResult{}, fmt.Errorf("upload %s: %w", abs, err)
		}
		if excluded {
			u.logger.Debug("excluding file", "path", rel)
			continue
		}
		entries = append(entries, NewFileEntry(rootName+"/"+rel, src, rel))
	}

	query := url.Values{}
	query.Set("pin", strconv.FormatBool(opts.Pin))
	query.Set("recursive", "true")
	query.Set("wrap-with-directory", strconv.FormatBool(opts.WrapWithDirectory))

	return u.post(ctx, query, entries, rootName)
}

func (u *Uploader) post(ctx context.Context, query url.Values, entries []*FileEntry, name string) (UploadResult, error) {
	parts := make([]Part, len(entries))
	for i, e := range entries {
		parts[i] = Part{FieldName: formField, FileName: e.RelativePath, Content: e}
	}

	endpoint := u.baseURL + addPath
	u.logger.Debug("uploading", "url", endpoint, "name", name, "parts", len(parts), "query", query.Encode())

	resp, err := u.transport.Post(ctx, endpoint, query, parts)
	if err != nil {
		return UploadResult{}, err
	}

	result, err := ParseAddResponse(strings.NewReader(resp.Body), name)
	if err != nil {
		return UploadResult{}, err
	}

	u.logger.Debug("upload complete", "cid", result.CID, "name", result.Name, "size", result.Size)
	return result, nil
}

func (u *Uploader) closeEntries(entries []*FileEntry) {
	for _, e := range entries {
		if err := e.Close(); err != nil {
			u.logger.Warn("failed to close file", "path", e.RelativePath, "err", err)
		}
	}
}

// CheckConnection reports whether the cluster answers its identity endpoint.
// It is advisory only: a false result never prevents an upload.
func (u *Uploader) CheckConnection(ctx context.Context) bool {
	return u.transport.Probe(ctx, u.baseURL+idPath)
}

func isExcluded(patterns []string, rel string) (bool, error) {
	for _, pattern := range patterns {
		match, err := doublestar.Match(pattern, rel)
		if err != nil {
			return false, fmt.Errorf("match exclude pattern %q: %w", pattern, err)
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}
