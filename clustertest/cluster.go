// Package clustertest provides an in-process fake of the IPFS cluster HTTP
// API for tests.
//
// The fake implements the two endpoints the uploader talks to:
//
//   - POST /api/v0/add: reads a multipart/form-data body of "file" parts and
//     answers with an NDJSON stream, one line per file, then one line per
//     directory (deepest first), then the optional wrapping directory
//   - POST /api/v0/id: answers 200 with a fake peer identity
//
// Every request is recorded, including the raw filename of each part, so tests
// can assert on exactly what went over the wire.
package clustertest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// PeerID is the identity reported by the fake /api/v0/id endpoint.
const PeerID = "12D3KooWFakeClusterPeer"

// Config controls the behavior of a Cluster.
type Config struct {
	// Prefix is the path the API is mounted under, for example "/IPFS_Constellation/api".
	Prefix string

	// Token, when set, is the only accepted bearer token.
	Token string
	// Username and Password, when set, are the only accepted basic credentials.
	Username string
	Password string

	// FailStatus makes /api/v0/add answer with this status and FailBody.
	FailStatus int
	FailBody   string

	// RawResponse replaces the generated NDJSON body of a successful add.
	RawResponse string

	// NumericSize emits Size as a JSON number instead of a string.
	NumericSize bool
	// CIDField emits the content identifier as "cid" instead of "Hash".
	CIDField bool

	// Unhealthy makes /api/v0/id answer 503.
	Unhealthy bool
}

// Part is one multipart part received by the fake.
type Part struct {
	FieldName string
	FileName  string
	Content   []byte
}

// Request is a request received by the fake.
type Request struct {
	Method        string
	Path          string
	Query         url.Values
	Authorization string
	ContentType   string
	Parts         []Part
}

// AddEvent is one NDJSON line of an add response.
type AddEvent struct {
	Name string `json:"Name"`
	Hash string `json:"Hash,omitempty"`
	CID  string `json:"cid,omitempty"`
	Size any    `json:"Size"`
}

// Cluster is a fake cluster API.
type Cluster struct {
	cfg Config

	mu       sync.Mutex
	requests []Request
}

// New creates a Cluster with cfg.
func New(cfg Config) *Cluster {
	cfg.Prefix = strings.TrimRight(cfg.Prefix, "/")
	return &Cluster{cfg: cfg}
}

// NewServer starts an httptest server for a Cluster and closes it when the
// test ends. The returned URL is the API base URL, prefix included.
func NewServer(t testing.TB, cfg Config) (*Cluster, string) {
	t.Helper()

	c := New(cfg)
	srv := httptest.NewServer(c.Router())
	t.Cleanup(srv.Close)

	return c, srv.URL + c.cfg.Prefix
}

// Router returns the http.Handler serving the fake API.
func (c *Cluster) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(c.authMiddleware)

	api := func(r chi.Router) {
		r.Post("/api/v0/add", c.handleAdd)
		r.Post("/api/v0/id", c.handleID)
	}

	if c.cfg.Prefix == "" {
		api(r)
	} else {
		r.Route(c.cfg.Prefix, api)
	}

	return r
}

// Requests returns a copy of every request received so far.
func (c *Cluster) Requests() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Request, len(c.requests))
	copy(out, c.requests)
	return out
}

// AddRequests returns the recorded requests to /api/v0/add.
func (c *Cluster) AddRequests() []Request {
	var out []Request
	for _, req := range c.Requests() {
		if strings.HasSuffix(req.Path, "/api/v0/add") {
			out = append(out, req)
		}
	}
	return out
}

// Reset forgets all recorded requests.
func (c *Cluster) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = nil
}

func (c *Cluster) record(req Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
}

func (c *Cluster) handleID(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	c.record(newRequest(r, nil))

	if c.cfg.Unhealthy {
		WriteError(w, http.StatusServiceUnavailable, "cluster peer is not ready")
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]any{
		"id":        PeerID,
		"addresses": []string{},
		"version":   "1.1.0",
	})
}

func (c *Cluster) handleAdd(w http.ResponseWriter, r *http.Request) {
	parts, err := readParts(r)
	c.record(newRequest(r, parts))

	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	for _, p := range parts {
		if !IsValidFileName(p.FileName) {
			WriteError(w, http.StatusBadRequest, "invalid file name: "+strconv.Quote(p.FileName))
			return
		}
	}

	if c.cfg.FailStatus != 0 {
		w.WriteHeader(c.cfg.FailStatus)
		_, _ = io.WriteString(w, c.cfg.FailBody)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	if c.cfg.RawResponse != "" {
		_, _ = io.WriteString(w, c.cfg.RawResponse)
		return
	}

	query := r.URL.Query()
	events := AddEvents(parts, query.Get("recursive") == "true", query.Get("wrap-with-directory") == "true")

	enc := json.NewEncoder(w)
	for _, ev := range events {
		_ = enc.Encode(c.format(ev))
	}
}

func (c *Cluster) format(ev AddEvent) AddEvent {
	if c.cfg.CIDField {
		ev.CID, ev.Hash = ev.Hash, ""
	}
	if !c.cfg.NumericSize {
		ev.Size = strconv.FormatUint(ev.Size.(uint64), 10)
	}
	return ev
}

func newRequest(r *http.Request, parts []Part) Request {
	return Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.Query(),
		Authorization: r.Header.Get("Authorization"),
		ContentType:   r.Header.Get("Content-Type"),
		Parts:         parts,
	}
}

// readParts reads every multipart part. The filename is taken from the raw
// Content-Disposition header because multipart.Part.FileName drops directories.
func readParts(r *http.Request) ([]Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		_, _ = io.Copy(io.Discard, r.Body)
		return nil, err
	}

	parts := []Part{}
	for {
		p, err := mr.NextRawPart()
		if errors.Is(err, io.EOF) {
			return parts, nil
		}
		if err != nil {
			return parts, err
		}

		_, params, err := mime.ParseMediaType(p.Header.Get("Content-Disposition"))
		if err != nil {
			return parts, err
		}

		content, err := io.ReadAll(p)
		if err != nil {
			return parts, err
		}

		parts = append(parts, Part{
			FieldName: params["name"],
			FileName:  params["filename"],
			Content:   content,
		})
	}
}

// CID returns the fake content identifier the cluster assigns to data.
func CID(data []byte) string {
	sum := sha256.Sum256(data)
	return "Qm" + hex.EncodeToString(sum[:16])
}

// EmptyDirCID is the identifier of a directory with no entries.
var EmptyDirCID = CID([]byte("dir:"))

// AddEvents computes the add response lines for parts. Size is a uint64.
//
// Non-recursive adds produce one line per part. Recursive adds additionally
// produce one line per directory implied by the part filenames, deepest first,
// so the uploaded root comes last. When wrap is set a nameless wrapping
// directory follows. A recursive add with no parts yields a single empty
// directory line.
func AddEvents(parts []Part, recursive, wrap bool) []AddEvent {
	events := make([]AddEvent, 0, len(parts))

	type dirInfo struct {
		size   uint64
		hashes bytes.Buffer
	}
	dirs := map[string]*dirInfo{}

	var total uint64
	var all bytes.Buffer

	for _, p := range parts {
		hash := CID(p.Content)
		size := uint64(len(p.Content))
		events = append(events, AddEvent{Name: p.FileName, Hash: hash, Size: size})

		total += size
		all.WriteString(hash)

		segments := strings.Split(p.FileName, "/")
		for i := 1; i < len(segments); i++ {
			name := strings.Join(segments[:i], "/")
			d, ok := dirs[name]
			if !ok {
				d = &dirInfo{}
				dirs[name] = d
			}
			d.size += size
			d.hashes.WriteString(hash)
		}
	}

	if !recursive {
		return events
	}

	names := make([]string, 0, len(dirs))
	for name := range dirs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		di, dj := strings.Count(names[i], "/"), strings.Count(names[j], "/")
		if di != dj {
			return di > dj
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		d := dirs[name]
		events = append(events, AddEvent{
			Name: name,
			Hash: CID([]byte("dir:" + name + ":" + d.hashes.String())),
			Size: d.size,
		})
	}

	switch {
	case wrap:
		events = append(events, AddEvent{Name: "", Hash: CID([]byte("wrap:" + all.String())), Size: total})
	case len(parts) == 0:
		events = append(events, AddEvent{Name: "", Hash: EmptyDirCID, Size: uint64(0)})
	}

	return events
}
