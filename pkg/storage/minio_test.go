package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, handler http.HandlerFunc) *MinIOStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := minio.New(strings.TrimPrefix(srv.URL, "http://"), &minio.Options{
		Creds:  credentials.NewStaticV4("access", "secret", ""),
		Secure: false,
		// 指定 region 后 presign 不需要查询 bucket location
		Region: "us-east-1",
	})
	require.NoError(t, err)
	return NewMinIOStore(client, "exports")
}

func TestMinIOStore_PutObject(t *testing.T) {
	var gotMethod, gotPath, gotContentType string
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		gotMethod, gotPath, gotContentType = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, store.PutObject(context.Background(), "exports/tree.json", []byte(`{}`), "application/json"))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/exports/exports/tree.json", gotPath)
	assert.Equal(t, "application/json", gotContentType)
}

func TestMinIOStore_PresignedURL(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("presign should not reach the server: %s %s", r.Method, r.URL)
	})

	raw, err := store.PresignedURL(context.Background(), "exports/tree.json", time.Hour)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/exports/exports/tree.json", u.Path)
	assert.Equal(t, "3600", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}
