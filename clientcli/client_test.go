package clientcli_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ubitquityx/constellation"
	"github.com/ubitquityx/constellation/clientcli"
	"github.com/ubitquityx/constellation/clustertest"
	"github.com/ubitquityx/constellation/database"
	"github.com/ubitquityx/constellation/transport"
)

type MockHistoryRepo struct {
	mock.Mock
}

func (m *MockHistoryRepo) Add(ctx context.Context, entry constellation.HistoryEntry) (constellation.HistoryRecord, error) {
	args := m.Called(ctx, entry)
	rec, _ := args.Get(0).(constellation.HistoryRecord)
	return rec, args.Error(1)
}

func (m *MockHistoryRepo) Get(ctx context.Context, cid string) (constellation.HistoryRecord, error) {
	args := m.Called(ctx, cid)
	rec, _ := args.Get(0).(constellation.HistoryRecord)
	return rec, args.Error(1)
}

func (m *MockHistoryRepo) List(ctx context.Context, q constellation.HistoryQuery) (constellation.HistoryPage, error) {
	args := m.Called(ctx, q)
	page, _ := args.Get(0).(constellation.HistoryPage)
	return page, args.Error(1)
}

func newUploader(t *testing.T, baseURL string) *constellation.Uploader {
	t.Helper()
	u, err := constellation.NewUploader(baseURL, transport.New(transport.BearerToken("secret")))
	require.NoError(t, err)
	return u
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNew(t *testing.T) {
	t.Run("nil uploader", func(t *testing.T) {
		_, err := clientcli.New(nil)
		require.ErrorIs(t, err, clientcli.ErrUploaderRequired)
	})

	t.Run("endpoint", func(t *testing.T) {
		client, err := clientcli.New(newUploader(t, "http://localhost:9094/"))
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:9094", client.Endpoint())
	})
}

func TestClient_Upload(t *testing.T) {
	t.Run("report carries links", func(t *testing.T) {
		_, baseURL := clustertest.NewServer(t, clustertest.Config{Token: "secret"})
		path := writeTemp(t, "hello.txt", "hello")

		client, err := clientcli.New(newUploader(t, baseURL), clientcli.WithGateway("http://gw.local/"))
		require.NoError(t, err)

		report, err := client.Upload(context.Background(), clientcli.UploadOptions{Path: path, Pin: true})
		require.NoError(t, err)

		cid := clustertest.CID([]byte("hello"))
		assert.Equal(t, cid, report.CID)
		assert.Equal(t, "hello.txt", report.Name)
		assert.Equal(t, uint64(5), report.Size)
		assert.Equal(t, path, report.SourcePath)
		assert.Equal(t, baseURL, report.Endpoint)
		assert.True(t, report.Pinned)
		assert.Equal(t, "http://gw.local/ipfs/"+cid, report.GatewayURL)
		assert.Equal(t, "ipfs://"+cid, report.IPFSURI)
		assert.Nil(t, report.HistoryID)
	})

	t.Run("empty path", func(t *testing.T) {
		client, err := clientcli.New(newUploader(t, "http://localhost:1"))
		require.NoError(t, err)

		_, err = client.Upload(context.Background(), clientcli.UploadOptions{})
		require.ErrorIs(t, err, clientcli.ErrEmptyPath)
	})

	t.Run("upload error is returned and not recorded", func(t *testing.T) {
		repo := &MockHistoryRepo{}
		client, err := clientcli.New(newUploader(t, "http://localhost:1"), clientcli.WithHistory(repo))
		require.NoError(t, err)

		_, err = client.Upload(context.Background(), clientcli.UploadOptions{Path: filepath.Join(t.TempDir(), "missing")})
		require.ErrorIs(t, err, constellation.ErrNotFound)
		repo.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
	})

	t.Run("records history", func(t *testing.T) {
		_, baseURL := clustertest.NewServer(t, clustertest.Config{})
		path := writeTemp(t, "a.txt", "abc")

		id := uuid.New()
		repo := &MockHistoryRepo{}
		repo.On("Add", mock.Anything, constellation.HistoryEntry{
			CID:        clustertest.CID([]byte("abc")),
			Name:       "a.txt",
			Size:       3,
			SourcePath: path,
			Endpoint:   baseURL,
			Pinned:     false,
			Wrapped:    true,
		}).Return(constellation.HistoryRecord{ID: id}, nil)

		client, err := clientcli.New(newUploader(t, baseURL), clientcli.WithHistory(repo))
		require.NoError(t, err)

		report, err := client.Upload(context.Background(), clientcli.UploadOptions{Path: path, Wrap: true})
		require.NoError(t, err)

		require.NotNil(t, report.HistoryID)
		assert.Equal(t, id, *report.HistoryID)
		repo.AssertExpectations(t)
	})

	t.Run("history failure does not fail upload", func(t *testing.T) {
		_, baseURL := clustertest.NewServer(t, clustertest.Config{})
		path := writeTemp(t, "a.txt", "abc")

		repo := &MockHistoryRepo{}
		repo.On("Add", mock.Anything, mock.Anything).Return(nil, errors.New("disk full"))

		client, err := clientcli.New(newUploader(t, baseURL), clientcli.WithHistory(repo))
		require.NoError(t, err)

		report, err := client.Upload(context.Background(), clientcli.UploadOptions{Path: path})
		require.NoError(t, err)

		assert.Nil(t, report.HistoryID)
		require.Error(t, report.HistoryErr)
		assert.Contains(t, report.HistoryErr.Error(), "disk full")
	})
}

func TestClient_UploadWithSQLiteHistory(t *testing.T) {
	_, baseURL := clustertest.NewServer(t, clustertest.Config{})
	ctx := context.Background()

	repo, cleanup, err := database.Connect(ctx, database.Config{
		Type:  "sqlite",
		DSN:   filepath.Join(t.TempDir(), "nested", "history.db"),
		Table: "upload_history",
	})
	require.NoError(t, err)
	t.Cleanup(cleanup)

	client, err := clientcli.New(newUploader(t, baseURL), clientcli.WithHistory(repo))
	require.NoError(t, err)

	for _, content := range []string{"one", "two", "three"} {
		_, err := client.Upload(ctx, clientcli.UploadOptions{Path: writeTemp(t, content+".txt", content), Pin: true})
		require.NoError(t, err)
	}

	page, err := client.History(ctx, clientcli.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "three.txt", page.Items[0].Name)
	assert.NotEmpty(t, page.NextCursor)

	all, err := client.History(ctx, clientcli.ListOptions{Limit: 2, All: true})
	require.NoError(t, err)
	require.Len(t, all.Items, 3)
	assert.Empty(t, all.NextCursor)
	assert.Equal(t, "one.txt", all.Items[2].Name)

	rec, err := client.Lookup(ctx, clustertest.CID([]byte("two")))
	require.NoError(t, err)
	assert.Equal(t, "two.txt", rec.Name)
	assert.True(t, rec.Pinned)
}

func TestClient_HistoryDisabled(t *testing.T) {
	client, err := clientcli.New(newUploader(t, "http://localhost:1"))
	require.NoError(t, err)

	_, err = client.History(context.Background(), clientcli.ListOptions{})
	require.ErrorIs(t, err, clientcli.ErrHistoryDisabled)

	_, err = client.Lookup(context.Background(), "Qm")
	require.ErrorIs(t, err, clientcli.ErrHistoryDisabled)
}

func TestClient_HistoryAllFollowsCursors(t *testing.T) {
	repo := &MockHistoryRepo{}
	first := constellation.HistoryRecord{ID: uuid.New(), CID: "Qm1", CreatedAt: time.Now()}
	second := constellation.HistoryRecord{ID: uuid.New(), CID: "Qm2", CreatedAt: time.Now()}

	repo.On("List", mock.Anything, constellation.HistoryQuery{Limit: 1}).
		Return(constellation.HistoryPage{Items: []constellation.HistoryRecord{first}, NextCursor: "c1"}, nil)
	repo.On("List", mock.Anything, constellation.HistoryQuery{Limit: 1, Cursor: "c1"}).
		Return(constellation.HistoryPage{Items: []constellation.HistoryRecord{second}}, nil)

	client, err := clientcli.New(newUploader(t, "http://localhost:1"), clientcli.WithHistory(repo))
	require.NoError(t, err)

	page, err := client.History(context.Background(), clientcli.ListOptions{Limit: 1, All: true})
	require.NoError(t, err)

	assert.Equal(t, []constellation.HistoryRecord{first, second}, page.Items)
	repo.AssertExpectations(t)
}

func TestClient_CheckConnection(t *testing.T) {
	_, baseURL := clustertest.NewServer(t, clustertest.Config{})
	client, err := clientcli.New(newUploader(t, baseURL))
	require.NoError(t, err)

	assert.Equal(t, clientcli.CheckResult{Endpoint: baseURL, Reachable: true}, client.CheckConnection(context.Background()))

	_, unhealthyURL := clustertest.NewServer(t, clustertest.Config{Unhealthy: true})
	client, err = clientcli.New(newUploader(t, unhealthyURL))
	require.NoError(t, err)

	assert.False(t, client.CheckConnection(context.Background()).Reachable)
}

func TestResolveToken(t *testing.T) {
	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "token")
	require.NoError(t, os.WriteFile(tokenFile, []byte("  file-token\n"), 0o600))
	emptyFile := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(emptyFile, []byte("\n"), 0o600))

	tests := []struct {
		name    string
		key     string
		keyFile string
		want    string
		wantErr error
	}{
		{name: "key wins", key: "flag-token", keyFile: tokenFile, want: "flag-token"},
		{name: "file is trimmed", keyFile: tokenFile, want: "file-token"},
		{name: "neither", want: ""},
		{name: "empty file", keyFile: emptyFile, wantErr: clientcli.ErrEmptySecret},
		{name: "missing file", keyFile: filepath.Join(dir, "missing"), wantErr: os.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := clientcli.ResolveToken(tt.key, tt.keyFile)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLinks(t *testing.T) {
	assert.Equal(t, "https://gw/ipfs/QmX", clientcli.GatewayURL("https://gw/", "QmX"))
	assert.Equal(t, "ipfs://QmX", clientcli.IPFSURI("QmX"))
	assert.Equal(t, "constellation-cli pin ls QmX", clientcli.PinStatusCommand("QmX"))
}
