package clientcli

import (
	"time"

	"github.com/google/uuid"
	"github.com/ubitquityx/constellation"
)

// UploadOptions configures an upload operation.
type UploadOptions struct {
	Path    string
	Pin     bool
	Wrap    bool
	Exclude []string
}

// UploadReport is a successful upload together with the links derived from it.
type UploadReport struct {
	constellation.UploadResult
	SourcePath string        `json:"source_path"`
	Endpoint   string        `json:"endpoint"`
	Pinned     bool          `json:"pinned"`
	Wrapped    bool          `json:"wrapped"`
	GatewayURL string        `json:"gateway_url"`
	IPFSURI    string        `json:"ipfs_uri"`
	Duration   time.Duration `json:"-"`
	// HistoryID is set when the upload was recorded in the history ledger.
	HistoryID *uuid.UUID `json:"history_id,omitempty"`
	// HistoryErr is the non-fatal error from recording the upload, if any.
	HistoryErr error `json:"-"`
}

// ListOptions configures a history listing.
type ListOptions struct {
	CID        string
	NamePrefix string
	Limit      int
	Cursor     string
	All        bool // auto-paginate through all results
}

// CheckResult is the outcome of a connectivity check.
type CheckResult struct {
	Endpoint  string `json:"endpoint"`
	Reachable bool   `json:"reachable"`
}
