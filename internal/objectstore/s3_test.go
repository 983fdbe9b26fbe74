package objectstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method      string
	Path        string
	ContentType string
}

func fakeS3(t *testing.T, status int) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var reqs []recordedRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqs = append(reqs, recordedRequest{Method: r.Method, Path: r.URL.Path, ContentType: r.Header.Get("Content-Type")})
		mu.Unlock()
		if status >= 400 {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(status)
			w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`))
			return
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(ts.Close)
	return ts, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), reqs...)
	}
}

func newTestStore(t *testing.T, endpoint string) *S3Store {
	t.Helper()
	s, err := NewS3Store(context.Background(), Config{
		Endpoint:     endpoint,
		Bucket:       "photos",
		AccessKey:    "key",
		SecretKey:    "secret",
		UsePathStyle: true,
	})
	require.NoError(t, err)
	return s
}

func TestNewS3Store_Validation(t *testing.T) {
	_, err := NewS3Store(context.Background(), Config{AccessKey: "k", SecretKey: "s", Endpoint: "http://x"})
	assert.ErrorContains(t, err, "bucket is required")

	_, err = NewS3Store(context.Background(), Config{Bucket: "b", Endpoint: "http://x"})
	assert.ErrorContains(t, err, "credentials are required")

	_, err = NewS3Store(context.Background(), Config{Bucket: "b", AccessKey: "k", SecretKey: "s"})
	assert.ErrorContains(t, err, "endpoint is required")
}

func TestPut(t *testing.T) {
	ts, requests := fakeS3(t, http.StatusOK)
	s := newTestStore(t, ts.URL)

	err := s.Put(context.Background(), "u1/abc.jpg", "image/jpeg", []byte("jpeg"))
	require.NoError(t, err)

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPut, reqs[0].Method)
	assert.Equal(t, "/photos/u1/abc.jpg", reqs[0].Path)
	assert.Equal(t, "image/jpeg", reqs[0].ContentType)
}

func TestPut_Denied(t *testing.T) {
	ts, _ := fakeS3(t, http.StatusForbidden)
	s := newTestStore(t, ts.URL)

	err := s.Put(context.Background(), "u1/abc.jpg", "image/jpeg", []byte("jpeg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload object")
}

func TestDelete(t *testing.T) {
	ts, requests := fakeS3(t, http.StatusNoContent)
	s := newTestStore(t, ts.URL)

	require.NoError(t, s.Delete(context.Background(), "u1/abc.jpg"))
	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodDelete, reqs[0].Method)
	assert.Equal(t, "/photos/u1/abc.jpg", reqs[0].Path)

	assert.Error(t, s.Delete(context.Background(), ""))
}

func TestPublicURLRoundTrip(t *testing.T) {
	s := newTestStore(t, "https://storage.example.com")

	u := s.PublicURL("u1/my photo.jpg")
	assert.Equal(t, "https://storage.example.com/photos/u1/my%20photo.jpg", u)

	key, ok := s.KeyFromURL(u)
	assert.True(t, ok)
	assert.Equal(t, "u1/my photo.jpg", key)

	key, ok = s.KeyFromURL(u + "?v=2")
	assert.True(t, ok)
	assert.Equal(t, "u1/my photo.jpg", key)

	_, ok = s.KeyFromURL("https://elsewhere.example.com/photos/u1/a.jpg")
	assert.False(t, ok)
}

func TestPublicBaseURLOverride(t *testing.T) {
	s, err := NewS3Store(context.Background(), Config{
		Endpoint:      "https://s3.example.com",
		Bucket:        "photos",
		AccessKey:     "k",
		SecretKey:     "s",
		PublicBaseURL: "https://cdn.example.com/wardrobe/",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/wardrobe/u1/a.jpg", s.PublicURL("u1/a.jpg"))
	key, ok := s.KeyFromURL("https://cdn.example.com/wardrobe/u1/a.jpg")
	assert.True(t, ok)
	assert.Equal(t, "u1/a.jpg", key)
}
