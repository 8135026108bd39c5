package repo

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalObjectStorePut(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalObjectStore(dir, "https://plant.example/reports/")
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "2025/report.pdf", "application/pdf", []byte("%PDF-1.3"))
	require.NoError(t, err)
	assert.Equal(t, "https://plant.example/reports/2025/report.pdf", url)

	data, err := os.ReadFile(filepath.Join(dir, "2025", "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(data))
}

func TestLocalObjectStoreStaysInsideDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalObjectStore(dir, "")
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "../../escape.pdf", "", []byte("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"))
	_, err = os.Stat(filepath.Join(dir, "escape.pdf"))
	assert.NoError(t, err)

	_, err = store.Put(context.Background(), "", "", []byte("x"))
	assert.Error(t, err)
}

func TestHTTPObjectStorePut(t *testing.T) {
	store := NewHTTPObjectStore("https://storage.test/", "reports", "secret", time.Second)
	store.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "/storage/v1/object/reports/r1.pdf", req.URL.Path)
		assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
		assert.Equal(t, "application/pdf", req.Header.Get("Content-Type"))
		assert.Equal(t, "true", req.Header.Get("x-upsert"))
		body, _ := io.ReadAll(req.Body)
		assert.Equal(t, "pdf-bytes", string(body))
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader([]byte(`{"Key":"reports/r1.pdf"}`))),
			Header:     make(http.Header),
		}, nil
	}))

	url, err := store.Put(context.Background(), "r1.pdf", "application/pdf", []byte("pdf-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://storage.test/storage/v1/object/public/reports/r1.pdf", url)
}

func TestHTTPObjectStoreFailure(t *testing.T) {
	store := NewHTTPObjectStore("https://storage.test", "reports", "", time.Second)
	store.httpClient = newTestClient(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusForbidden,
			Body:       io.NopCloser(strings.NewReader("bucket policy denied")),
			Header:     make(http.Header),
		}, nil
	}))

	_, err := store.Put(context.Background(), "r1.pdf", "application/pdf", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket policy denied")

	_, err = NewHTTPObjectStore("", "reports", "", 0).Put(context.Background(), "r1.pdf", "", nil)
	assert.Error(t, err)
}
