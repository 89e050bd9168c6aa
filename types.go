package constellation

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// UploadOptions configures a single upload call.
type UploadOptions struct {
	Pin               bool
	WrapWithDirectory bool
	// Exclude holds doublestar patterns matched against slash paths relative
	// to the upload root. Only directory uploads consult it.
	Exclude []string
}

// UploadResult is the normalized outcome of an upload.
type UploadResult struct {
	CID  string `json:"cid"`
	Size uint64 `json:"size_bytes"`
	Name string `json:"name"`
}

// Part is one multipart form part handed to a Transport.
// If Content also implements io.Closer the transport closes it once the
// part has been written.
type Part struct {
	FieldName string
	FileName  string
	Content   io.Reader
}

// Response is a response received from the cluster.
type Response struct {
	StatusCode int
	Body       string
}

// Transport issues requests against the cluster.
//
// Post returns *HTTPError for non-2xx responses and *ConnectionError when no
// response was received. Probe never fails; it reports reachability only.
type Transport interface {
	Post(ctx context.Context, rawURL string, query url.Values, parts []Part) (*Response, error)
	Probe(ctx context.Context, rawURL string) bool
}

// Source opens the files of an upload.
type Source interface {
	Open(name string) (io.ReadCloser, error)
}

// HistoryRecord is one successful upload in the local history ledger.
type HistoryRecord struct {
	ID         uuid.UUID `json:"id"`
	CID        string    `json:"cid"`
	Name       string    `json:"name"`
	Size       uint64    `json:"size_bytes"`
	SourcePath string    `json:"source_path"`
	Endpoint   string    `json:"endpoint"`
	Pinned     bool      `json:"pinned"`
	Wrapped    bool      `json:"wrapped"`
	CreatedAt  time.Time `json:"created_at"`
}

// HistoryEntry is the data recorded for a new history record.
type HistoryEntry struct {
	CID        string
	Name       string
	Size       uint64
	SourcePath string
	Endpoint   string
	Pinned     bool
	Wrapped    bool
}

// DefaultHistoryLimit is the page size used when HistoryQuery.Limit is not positive.
const DefaultHistoryLimit = 20

// HistoryQuery selects a page of history, newest first.
type HistoryQuery struct {
	CID        string
	NamePrefix string
	Limit      int
	Cursor     string
}

// PageSize returns the effective page size of q.
func (q HistoryQuery) PageSize() int {
	if q.Limit <= 0 {
		return DefaultHistoryLimit
	}
	return q.Limit
}

// HistoryPage is one page of history records.
type HistoryPage struct {
	Items      []HistoryRecord `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}
