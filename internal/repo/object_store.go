package repo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ObjectStore uploads rendered artifacts and returns a URL they can be fetched from.
type ObjectStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// LocalObjectStore writes objects beneath a directory.
type LocalObjectStore struct {
	dir       string
	publicURL string
}

// NewLocalObjectStore creates dir when needed. When publicURL is empty the
// returned URL is a file:// URL.
func NewLocalObjectStore(dir, publicURL string) (*LocalObjectStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("object store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create object store dir: %w", err)
	}
	return &LocalObjectStore{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Put writes data to dir/name.
func (s *LocalObjectStore) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	clean, err := objectName(name)
	if err != nil {
		return "", err
	}
	target := filepath.Join(s.dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("write object %s: %w", clean, err)
	}
	if s.publicURL != "" {
		return s.publicURL + "/" + clean, nil
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		abs = target
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

// HTTPObjectStore uploads to a Supabase-style storage REST API.
type HTTPObjectStore struct {
	endpoint   string
	bucket     string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPObjectStore constructs an uploader for bucket at endpoint.
func NewHTTPObjectStore(endpoint, bucket, apiKey string, timeout time.Duration) *HTTPObjectStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPObjectStore{
		endpoint:   strings.TrimRight(endpoint, "/"),
		bucket:     bucket,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Put uploads data, overwriting any existing object, and returns its public URL.
func (s *HTTPObjectStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if s == nil || s.endpoint == "" {
		return "", fmt.Errorf("object store endpoint not configured")
	}
	clean, err := objectName(name)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/storage/v1/object/%s/%s", s.endpoint, s.bucket, clean), bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
		req.Header.Set("apikey", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("upload %s failed (%d): %s", clean, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.endpoint, s.bucket, clean), nil
}

func objectName(name string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean == "." {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return clean, nil
}
