package clientcli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/docker/go-units"
	"github.com/ubitquityx/constellation"
)

// Formatter formats results for output.
type Formatter interface {
	FormatUploadStart(w io.Writer, endpoint, path string, pin bool) error
	FormatUpload(w io.Writer, report *UploadReport) error
	FormatCheck(w io.Writer, result CheckResult) error
	FormatHistory(w io.Writer, page *constellation.HistoryPage) error
	FormatError(w io.Writer, err error) error
	FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error
	FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error
}

// NewFormatter returns the appropriate formatter based on flags.
func NewFormatter(jsonOutput, quiet bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{Quiet: quiet}
}

// HumanFormatter outputs human-readable text.
type HumanFormatter struct {
	Quiet bool
}

const rule = "========================================"

// FormatUploadStart prints the upload banner.
func (f *HumanFormatter) FormatUploadStart(w io.Writer, endpoint, path string, pin bool) error {
	if f.Quiet {
		return nil
	}
	_, _ = fmt.Fprintln(w, "IPFS Constellation Upload")
	_, _ = fmt.Fprintln(w, rule)
	_, _ = fmt.Fprintf(w, "API URL: %s\n", endpoint)
	_, _ = fmt.Fprintf(w, "Path:    %s\n", path)
	_, _ = fmt.Fprintf(w, "Pin:     %t\n", pin)
	_, _ = fmt.Fprintln(w)
	return nil
}

// FormatUpload prints the CID and the links derived from it. Quiet mode
// prints only the CID.
func (f *HumanFormatter) FormatUpload(w io.Writer, report *UploadReport) error {
	if f.Quiet {
		_, _ = fmt.Fprintln(w, report.CID)
		return nil
	}

	_, _ = fmt.Fprintln(w, "Upload successful!")
	_, _ = fmt.Fprintln(w, rule)
	_, _ = fmt.Fprintf(w, "CID:  %s\n", report.CID)
	_, _ = fmt.Fprintf(w, "Name: %s\n", report.Name)
	_, _ = fmt.Fprintf(w, "Size: %s (%d bytes)\n", formatSize(report.Size), report.Size)
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Access your content:")
	_, _ = fmt.Fprintf(w, "  Gateway: %s\n", report.GatewayURL)
	_, _ = fmt.Fprintf(w, "  IPFS:    %s\n", report.IPFSURI)
	if report.Pinned {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "Verify pin status:")
		_, _ = fmt.Fprintf(w, "  %s\n", PinStatusCommand(report.CID))
	}
	return nil
}

// FormatCheck prints the outcome of a connectivity check.
func (f *HumanFormatter) FormatCheck(w io.Writer, result CheckResult) error {
	if f.Quiet {
		return nil
	}
	if result.Reachable {
		_, _ = fmt.Fprintf(w, "Connected: %s\n", result.Endpoint)
	} else {
		_, _ = fmt.Fprintf(w, "Unreachable: %s\n", result.Endpoint)
	}
	return nil
}

// FormatHistory prints history records as a table.
func (f *HumanFormatter) FormatHistory(w io.Writer, page *constellation.HistoryPage) error {
	if len(page.Items) == 0 {
		_, _ = fmt.Fprintln(w, "No uploads recorded")
		return nil
	}

	if f.Quiet {
		for i := range page.Items {
			_, _ = fmt.Fprintln(w, page.Items[i].CID)
		}
		return nil
	}

	maxCIDLen := 3 // "CID"
	maxNameLen := 4
	for i := range page.Items {
		maxCIDLen = max(maxCIDLen, len(page.Items[i].CID))
		maxNameLen = max(maxNameLen, len(page.Items[i].Name))
	}
	maxNameLen = min(maxNameLen, 40)

	_, _ = fmt.Fprintf(w, "%-19s  %-*s  %10s  %s\n", "UPLOADED", maxCIDLen, "CID", "SIZE", "NAME")
	_, _ = fmt.Fprintf(w, "%s  %s  %s  %s\n",
		strings.Repeat("-", 19), strings.Repeat("-", maxCIDLen), strings.Repeat("-", 10), strings.Repeat("-", maxNameLen))

	var total uint64
	for i := range page.Items {
		item := &page.Items[i]
		total += item.Size

		name := item.Name
		if len(name) > maxNameLen {
			name = name[:maxNameLen-3] + "..."
		}
		_, _ = fmt.Fprintf(w, "%-19s  %-*s  %10s  %s\n",
			item.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			maxCIDLen, item.CID,
			formatSize(item.Size),
			name,
		)
	}

	_, _ = fmt.Fprintf(w, "\n%d upload(s) (%s total)\n", len(page.Items), formatSize(total))

	if page.NextCursor != "" {
		_, _ = fmt.Fprintf(w, "Next page: use --cursor %q\n", page.NextCursor)
	}

	return nil
}

// FormatError prints err with the hints that fit its kind.
func (f *HumanFormatter) FormatError(w io.Writer, err error) error {
	var connErr *constellation.ConnectionError
	var httpErr *constellation.HTTPError
	var parseErr *constellation.ParseError

	switch {
	case errors.As(err, &connErr):
		_, _ = fmt.Fprintln(w, "Upload failed!")
		_, _ = fmt.Fprintln(w, "Could not connect to the API endpoint.")
		_, _ = fmt.Fprintf(w, "  %v\n", connErr.Err)
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "Troubleshooting:")
		_, _ = fmt.Fprintln(w, "  1. Check if the API URL is correct")
		_, _ = fmt.Fprintln(w, "  2. Verify the Constellation service is running")
		_, _ = fmt.Fprintln(w, "  3. Check your network connection")
	case errors.As(err, &httpErr):
		_, _ = fmt.Fprintln(w, "Upload failed!")
		_, _ = fmt.Fprintf(w, "HTTP Error: %d %s\n", httpErr.StatusCode, http.StatusText(httpErr.StatusCode))
		if pretty, ok := prettyJSON(httpErr.Body); ok {
			_, _ = fmt.Fprintf(w, "Details: %s\n", pretty)
		} else if httpErr.Body != "" {
			_, _ = fmt.Fprintf(w, "Response: %s\n", httpErr.Body)
		}
	case errors.As(err, &parseErr):
		_, _ = fmt.Fprintf(w, "Upload failed: %v\n", parseErr)
	default:
		_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	}
	return nil
}

// FormatProfileList formats a list of profiles as human-readable text.
func (f *HumanFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error {
	if len(profiles) == 0 {
		_, _ = fmt.Fprintln(w, "No profiles configured")
		return nil
	}

	maxNameLen := 4 // "NAME"
	maxURLLen := 3  // "URL"
	for i := range profiles {
		maxNameLen = max(maxNameLen, len(profiles[i].Name))
		maxURLLen = max(maxURLLen, len(profiles[i].URL))
	}
	maxNameLen = min(maxNameLen, 20)
	maxURLLen = min(maxURLLen, 50)

	_, _ = fmt.Fprintf(w, "  %-*s  %-*s  %s\n", maxNameLen, "NAME", maxURLLen, "URL", "AUTH")
	_, _ = fmt.Fprintf(w, "  %s  %s  %s\n", strings.Repeat("-", maxNameLen), strings.Repeat("-", maxURLLen), strings.Repeat("-", 20))

	for i := range profiles {
		p := &profiles[i]
		marker := " "
		if p.Name == defaultName {
			marker = "*"
		}

		name := p.Name
		if len(name) > maxNameLen {
			name = name[:maxNameLen-3] + "..."
		}

		endpoint := p.URL
		if len(endpoint) > maxURLLen {
			endpoint = endpoint[:maxURLLen-3] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s %-*s  %-*s  %s\n", marker, maxNameLen, name, maxURLLen, endpoint, describeAuth(p, showSecrets))
	}

	return nil
}

// FormatProfileShow formats a single profile as human-readable text.
func (f *HumanFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error {
	_, _ = fmt.Fprintf(w, "Name:     %s", profile.Name)
	if isDefault {
		_, _ = fmt.Fprintf(w, " (default)")
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "URL:      %s\n", profile.URL)
	_, _ = fmt.Fprintf(w, "Gateway:  %s\n", orNotSet(profile.Gateway))
	_, _ = fmt.Fprintf(w, "Key:      %s\n", maskSecret(profile.Key, showSecrets))
	_, _ = fmt.Fprintf(w, "Key file: %s\n", orNotSet(profile.KeyFile))
	_, _ = fmt.Fprintf(w, "Username: %s\n", orNotSet(profile.Username))
	_, _ = fmt.Fprintf(w, "Password: %s\n", maskSecret(profile.Password, showSecrets))
	return nil
}

// JSONFormatter outputs JSON.
type JSONFormatter struct{}

// FormatUploadStart writes nothing; JSON output is a single document.
func (f *JSONFormatter) FormatUploadStart(io.Writer, string, string, bool) error {
	return nil
}

// FormatUpload formats an upload report as JSON.
func (f *JSONFormatter) FormatUpload(w io.Writer, report *UploadReport) error {
	output := struct {
		*UploadReport
		DurationMS int64 `json:"duration_ms"`
	}{
		UploadReport: report,
		DurationMS:   report.Duration.Milliseconds(),
	}
	return writeJSON(w, output)
}

// FormatCheck formats a connectivity check as JSON.
func (f *JSONFormatter) FormatCheck(w io.Writer, result CheckResult) error {
	return writeJSON(w, result)
}

// FormatHistory formats history records as JSON.
func (f *JSONFormatter) FormatHistory(w io.Writer, page *constellation.HistoryPage) error {
	if page.Items == nil {
		page = &constellation.HistoryPage{Items: []constellation.HistoryRecord{}, NextCursor: page.NextCursor}
	}
	return writeJSON(w, page)
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	output := struct {
		Error      string          `json:"error"`
		Kind       string          `json:"kind"`
		StatusCode int             `json:"status_code,omitempty"`
		Details    json.RawMessage `json:"details,omitempty"`
		Response   string          `json:"response,omitempty"`
	}{
		Error: err.Error(),
		Kind:  ErrorKind(err),
	}

	var httpErr *constellation.HTTPError
	if errors.As(err, &httpErr) {
		output.StatusCode = httpErr.StatusCode
		if json.Valid([]byte(httpErr.Body)) {
			output.Details = json.RawMessage(httpErr.Body)
		} else {
			output.Response = httpErr.Body
		}
	}

	return writeJSON(w, output)
}

// FormatProfileList formats a list of profiles as JSON.
func (f *JSONFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error {
	output := struct {
		Profiles []jsonProfile `json:"profiles"`
	}{
		Profiles: make([]jsonProfile, len(profiles)),
	}

	for i := range profiles {
		output.Profiles[i] = newJSONProfile(profiles[i], profiles[i].Name == defaultName, showSecrets)
	}

	return writeJSON(w, output)
}

// FormatProfileShow formats a single profile as JSON.
func (f *JSONFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error {
	return writeJSON(w, newJSONProfile(profile, isDefault, showSecrets))
}

type jsonProfile struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Gateway  string `json:"gateway,omitempty"`
	Key      string `json:"key,omitempty"`
	KeyFile  string `json:"key_file,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Default  bool   `json:"default"`
}

func newJSONProfile(p Profile, isDefault, showSecrets bool) jsonProfile {
	jp := jsonProfile{
		Name:     p.Name,
		URL:      p.URL,
		Gateway:  p.Gateway,
		KeyFile:  p.KeyFile,
		Username: p.Username,
		Default:  isDefault,
	}
	if p.Key != "" {
		jp.Key = maskSecret(p.Key, showSecrets)
	}
	if p.Password != "" {
		jp.Password = maskSecret(p.Password, showSecrets)
	}
	return jp
}

// ErrorKind names the error taxonomy class of err.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, constellation.ErrNotFound):
		return "not_found"
	case errors.Is(err, constellation.ErrInvalidTarget):
		return "invalid_target"
	case errors.Is(err, constellation.ErrConnection):
		return "connection"
	case errors.As(err, new(*constellation.HTTPError)):
		return "http"
	case errors.Is(err, constellation.ErrParse):
		return "parse"
	default:
		return "error"
	}
}

// writeJSON writes a value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func prettyJSON(body string) (string, bool) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" || !json.Valid([]byte(trimmed)) {
		return "", false
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(trimmed), "", "  "); err != nil {
		return "", false
	}
	return buf.String(), true
}

// formatSize formats bytes with binary units, e.g. 1.5KiB.
func formatSize(size uint64) string {
	return units.BytesSize(float64(size))
}

func describeAuth(p *Profile, showSecrets bool) string {
	switch {
	case p.Key != "":
		return "token " + maskSecret(p.Key, showSecrets)
	case p.KeyFile != "":
		return "token file " + p.KeyFile
	case p.Username != "":
		return "basic " + p.Username
	default:
		return "(none)"
	}
}

func orNotSet(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

// maskSecret masks a secret string, showing only first 4 and last 4 characters.
// If showSecrets is true, returns the original value.
// If the secret is too short, returns all asterisks.
func maskSecret(secret string, showSecrets bool) string {
	if showSecrets {
		return secret
	}
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
