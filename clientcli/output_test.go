package clientcli_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ubitquityx/constellation"
	"github.com/ubitquityx/constellation/clientcli"
)

func sampleReport() *clientcli.UploadReport {
	return &clientcli.UploadReport{
		UploadResult: constellation.UploadResult{CID: "QmABC", Size: 1536, Name: "photo.jpg"},
		SourcePath:   "/home/u/photo.jpg",
		Endpoint:     "http://cluster",
		Pinned:       true,
		GatewayURL:   "https://gateway.ubitquityx.com/ipfs/QmABC",
		IPFSURI:      "ipfs://QmABC",
		Duration:     1500 * time.Millisecond,
	}
}

func TestNewFormatter(t *testing.T) {
	t.Run("json formatter", func(t *testing.T) {
		_, ok := clientcli.NewFormatter(true, false).(*clientcli.JSONFormatter)
		assert.True(t, ok)
	})

	t.Run("human formatter quiet", func(t *testing.T) {
		hf, ok := clientcli.NewFormatter(false, true).(*clientcli.HumanFormatter)
		require.True(t, ok)
		assert.True(t, hf.Quiet)
	})
}

func TestHumanFormatter_FormatUpload(t *testing.T) {
	t.Run("full", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatUpload(&buf, sampleReport()))

		output := buf.String()
		assert.Contains(t, output, "Upload successful!")
		assert.Contains(t, output, "CID:  QmABC")
		assert.Contains(t, output, "1.5KiB (1536 bytes)")
		assert.Contains(t, output, "Gateway: https://gateway.ubitquityx.com/ipfs/QmABC")
		assert.Contains(t, output, "IPFS:    ipfs://QmABC")
		assert.Contains(t, output, "constellation-cli pin ls QmABC")
	})

	t.Run("unpinned has no pin hint", func(t *testing.T) {
		report := sampleReport()
		report.Pinned = false

		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatUpload(&buf, report))
		assert.NotContains(t, buf.String(), "pin ls")
	})

	t.Run("quiet prints only the cid", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{Quiet: true}).FormatUpload(&buf, sampleReport()))
		assert.Equal(t, "QmABC\n", buf.String())
	})
}

func TestHumanFormatter_FormatUploadStart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&clientcli.HumanFormatter{}).FormatUploadStart(&buf, "http://cluster", "./dir", false))
	assert.Contains(t, buf.String(), "API URL: http://cluster")
	assert.Contains(t, buf.String(), "Pin:     false")

	buf.Reset()
	require.NoError(t, (&clientcli.HumanFormatter{Quiet: true}).FormatUploadStart(&buf, "http://cluster", "./dir", false))
	assert.Empty(t, buf.String())
}

func TestHumanFormatter_FormatError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains []string
	}{
		{
			name:     "connection",
			err:      &constellation.ConnectionError{Method: "POST", URL: "http://x", Err: errors.New("connection refused")},
			contains: []string{"Could not connect to the API endpoint.", "Troubleshooting:", "3. Check your network connection"},
		},
		{
			name:     "http with json body",
			err:      &constellation.HTTPError{StatusCode: 500, Body: `{"Message":"disk full","Code":0}`},
			contains: []string{"HTTP Error: 500 Internal Server Error", "Details: {\n  \"Message\": \"disk full\""},
		},
		{
			name:     "http with text body",
			err:      &constellation.HTTPError{StatusCode: 502, Body: "bad gateway"},
			contains: []string{"HTTP Error: 502 Bad Gateway", "Response: bad gateway"},
		},
		{
			name:     "parse",
			err:      &constellation.ParseError{Err: errors.New("empty response")},
			contains: []string{"Upload failed: could not parse add response: empty response"},
		},
		{
			name:     "not found",
			err:      fmt.Errorf("upload %s: %w", "/x", constellation.ErrNotFound),
			contains: []string{"Error: upload /x: path not found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, (&clientcli.HumanFormatter{}).FormatError(&buf, tt.err))
			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
		})
	}
}

func TestHumanFormatter_FormatHistory(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatHistory(&buf, &constellation.HistoryPage{}))
		assert.Equal(t, "No uploads recorded\n", buf.String())
	})

	t.Run("table", func(t *testing.T) {
		page := &constellation.HistoryPage{
			Items: []constellation.HistoryRecord{
				{CID: "QmA", Name: "a.txt", Size: 2048, CreatedAt: time.Now()},
				{CID: "QmB", Name: "b", Size: 0, CreatedAt: time.Now()},
			},
			NextCursor: "next",
		}

		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatHistory(&buf, page))

		output := buf.String()
		assert.Contains(t, output, "CID")
		assert.Contains(t, output, "QmA")
		assert.Contains(t, output, "2KiB")
		assert.Contains(t, output, "2 upload(s)")
		assert.Contains(t, output, `--cursor "next"`)
	})

	t.Run("quiet", func(t *testing.T) {
		page := &constellation.HistoryPage{Items: []constellation.HistoryRecord{{CID: "QmA"}, {CID: "QmB"}}}

		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{Quiet: true}).FormatHistory(&buf, page))
		assert.Equal(t, "QmA\nQmB\n", buf.String())
	})
}

func TestJSONFormatter_FormatUpload(t *testing.T) {
	id := uuid.New()
	report := sampleReport()
	report.HistoryID = &id

	var buf bytes.Buffer
	require.NoError(t, (&clientcli.JSONFormatter{}).FormatUpload(&buf, report))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "QmABC", got["cid"])
	assert.Equal(t, "photo.jpg", got["name"])
	assert.InDelta(t, 1536, got["size_bytes"], 0)
	assert.Equal(t, "ipfs://QmABC", got["ipfs_uri"])
	assert.Equal(t, id.String(), got["history_id"])
	assert.InDelta(t, 1500, got["duration_ms"], 0)
}

func TestJSONFormatter_FormatError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   string
		wantStatus float64
		wantDetail bool
	}{
		{name: "http json", err: &constellation.HTTPError{StatusCode: 500, Body: `{"Message":"x"}`}, wantKind: "http", wantStatus: 500, wantDetail: true},
		{name: "http text", err: &constellation.HTTPError{StatusCode: 401, Body: "nope"}, wantKind: "http", wantStatus: 401},
		{name: "connection", err: &constellation.ConnectionError{Method: "POST", URL: "u", Err: errors.New("refused")}, wantKind: "connection"},
		{name: "parse", err: &constellation.ParseError{Err: errors.New("bad")}, wantKind: "parse"},
		{name: "invalid target", err: constellation.ErrInvalidTarget, wantKind: "invalid_target"},
		{name: "generic", err: errors.New("boom"), wantKind: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, (&clientcli.JSONFormatter{}).FormatError(&buf, tt.err))

			var got map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
			assert.Equal(t, tt.err.Error(), got["error"])
			assert.Equal(t, tt.wantKind, got["kind"])
			if tt.wantStatus != 0 {
				assert.InDelta(t, tt.wantStatus, got["status_code"], 0)
			}
			_, hasDetails := got["details"]
			assert.Equal(t, tt.wantDetail, hasDetails)
		})
	}
}

func TestJSONFormatter_FormatHistoryEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&clientcli.JSONFormatter{}).FormatHistory(&buf, &constellation.HistoryPage{}))
	assert.JSONEq(t, `{"items":[]}`, buf.String())
}

func TestFormatProfiles(t *testing.T) {
	profiles := []clientcli.Profile{
		{Name: "prod", URL: "https://cluster", Key: "abcdefghijklmnop", Password: "pw"},
		{Name: "local", URL: "http://localhost:9094", Username: "alice"},
	}

	t.Run("human list masks secrets", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatProfileList(&buf, profiles, "prod", false))

		output := buf.String()
		assert.Contains(t, output, "* prod")
		assert.Contains(t, output, "token abcd...mnop")
		assert.Contains(t, output, "basic alice")
		assert.NotContains(t, output, "abcdefghijklmnop")
	})

	t.Run("human show", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatProfileShow(&buf, profiles[0], true, false))

		output := buf.String()
		assert.Contains(t, output, "prod (default)")
		assert.Contains(t, output, "Password: ********")
		assert.Contains(t, output, "Username: (not set)")
	})

	t.Run("json show secrets", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.JSONFormatter{}).FormatProfileShow(&buf, profiles[0], true, true))

		var got map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "abcdefghijklmnop", got["key"])
		assert.Equal(t, true, got["default"])
	})

	t.Run("json list", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.JSONFormatter{}).FormatProfileList(&buf, profiles, "local", false))

		var got struct {
			Profiles []map[string]any `json:"profiles"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got.Profiles, 2)
		assert.Equal(t, "abcd...mnop", got.Profiles[0]["key"])
		assert.Equal(t, true, got.Profiles[1]["default"])
	})
}
