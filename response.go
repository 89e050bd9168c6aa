package constellation

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxLineSize bounds a single NDJSON line of an add response.
const maxLineSize = 16 << 20

// addEvent mirrors one line of the cluster's add response.
type addEvent struct {
	Name *string     `json:"Name"`
	Hash string      `json:"Hash"`
	CID  string      `json:"cid"`
	Size *flexUint64 `json:"Size"`
}

// flexUint64 decodes a JSON number or a decimal numeric string.
// The cluster reports sizes as strings while some proxies rewrite them as numbers.
type flexUint64 uint64

func (f *flexUint64) UnmarshalJSON(data []byte) error {
	raw := string(bytes.TrimSpace(data))
	if raw == "null" {
		*f = 0
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("size %s is not a non-negative integer", string(data))
	}
	*f = flexUint64(n)
	return nil
}

// ParseAddResponse reads an NDJSON add response and decodes its last non-empty
// line. Earlier lines describe the individual entries of a directory upload and
// are skipped without being decoded.
func ParseAddResponse(r io.Reader, fallbackName string) (UploadResult, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var last []byte
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		last = append(last[:0], line...)
	}
	if err := scanner.Err(); err != nil {
		return UploadResult{}, &ParseError{Err: fmt.Errorf("read response: %w", err)}
	}

	if last == nil {
		return UploadResult{}, &ParseError{Err: errors.New("empty response body")}
	}

	return DecodeAddEvent(last, fallbackName)
}

// DecodeAddEvent decodes a single add response line into an UploadResult.
//
// Field precedence:
//   - CID: "Hash", then "cid"; a line with neither is a ParseError
//   - Size: "Size" as a JSON number or numeric string, 0 when absent
//   - Name: "Name", or fallbackName when absent or empty
//
// A wrap-with-directory upload ends with the wrapper, whose Name is empty, so
// its result carries fallbackName rather than "".
func DecodeAddEvent(line []byte, fallbackName string) (UploadResult, error) {
	var ev addEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		return UploadResult{}, &ParseError{Line: string(line), Err: err}
	}

	result := UploadResult{
		CID:  ev.Hash,
		Name: fallbackName,
	}
	if result.CID == "" {
		result.CID = ev.CID
	}
	if result.CID == "" {
		return UploadResult{}, &ParseError{Line: string(line), Err: errors.New("missing Hash and cid")}
	}
	if ev.Size != nil {
		result.Size = uint64(*ev.Size)
	}
	if ev.Name != nil && *ev.Name != "" {
		result.Name = *ev.Name
	}

	return result, nil
}
