package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
)

// Save uploads the object with a simple media upload, replacing any existing
// generation at key.
func (s *Store) Save(ctx context.Context, key string, contentType string, src io.Reader) error {
	u := fmt.Sprintf(
		"https://storage.googleapis.com/upload/storage/v1/b/%s/o?uploadType=media&name=%s",
		url.PathEscape(s.bucket),
		url.QueryEscape(key),
	)
	resp, err := s.do(ctx, http.MethodPost, u, contentType, src)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return statusError("gcs upload failed", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Open streams the object bytes.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	u := fmt.Sprintf(
		"https://storage.googleapis.com/storage/v1/b/%s/o/%s?alt=media",
		url.PathEscape(s.bucket),
		url.PathEscape(key),
	)
	resp, err := s.do(ctx, http.MethodGet, u, "", nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		defer func() { _ = resp.Body.Close() }()
		return nil, fmt.Errorf("gcs object %q: %w", key, os.ErrNotExist)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, statusError("gcs download failed", resp)
	}
	return resp.Body, nil
}

// Delete removes the object; a missing object is treated as already deleted.
func (s *Store) Delete(ctx context.Context, key string) error {
	u := fmt.Sprintf(
		"https://storage.googleapis.com/storage/v1/b/%s/o/%s",
		url.PathEscape(s.bucket),
		url.PathEscape(key),
	)
	resp, err := s.do(ctx, http.MethodDelete, u, "", nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK, http.StatusNotFound:
		return nil
	default:
		return statusError("gcs delete failed", resp)
	}
}

// URL returns the public locator recorded in upload metadata.
func (s *Store) URL(key string) string {
	if s.publicBase != "" {
		return s.publicBase + "/" + key
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key)
}
