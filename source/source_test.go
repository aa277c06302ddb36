package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGitHubFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"name":"a.png","download_url":"u1","type":"file"},
			{"name":"b.txt","download_url":"u2","type":"file"},
			{"name":"nested","download_url":null,"type":"dir"}
		]`))
	}))
	defer srv.Close()

	f := NewGitHubFetcher(srv.URL, "secret", srv.Client())
	entries, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, Entry{Name: "a.png", DownloadURL: "u1", Type: "file"}, entries[0])
	assert.Equal(t, "", entries[2].DownloadURL)
	assert.Equal(t, "dir", entries[2].Type)
}

func TestGitHubFetcher_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"API rate limit exceeded"}`))
	}))
	defer srv.Close()

	_, err := NewGitHubFetcher(srv.URL, "", srv.Client()).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API rate limit exceeded")
	assert.Contains(t, err.Error(), "403")
}

func TestGitHubFetcher_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"`))
	}))
	defer srv.Close()

	_, err := NewGitHubFetcher(srv.URL, "", srv.Client()).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse listing")
}

func TestGitHubFetcher_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewGitHubFetcher(url, "", http.DefaultClient).Fetch(context.Background())
	require.Error(t, err)
}

func TestLocalFetcher_Fetch(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "b_c.jpg"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.png"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub.png"), 0o755))

	entries, err := NewLocalFetcher(root).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "a.png", entries[0].Name)
	assert.Equal(t, "file://"+filepath.ToSlash(filepath.Join(root, "a.png")), entries[0].DownloadURL)
	assert.Equal(t, "b_c.jpg", entries[1].Name)
	assert.Equal(t, "dir", entries[2].Type)
	assert.Empty(t, entries[2].DownloadURL)
}

func TestLocalFetcher_MissingDir(t *testing.T) {
	_, err := NewLocalFetcher(filepath.Join(t.TempDir(), "missing")).Fetch(context.Background())
	require.Error(t, err)
}

func TestNew_PicksFetcherByScheme(t *testing.T) {
	f, err := New(Options{Source: "https://api.github.com/repos/o/r/contents/gallery"})
	require.NoError(t, err)
	assert.IsType(t, &GitHubFetcher{}, f)

	f, err = New(Options{Source: "file:///tmp/photos"})
	require.NoError(t, err)
	assert.IsType(t, &LocalFetcher{}, f)

	f, err = New(Options{Source: "./photos"})
	require.NoError(t, err)
	assert.IsType(t, &LocalFetcher{}, f)

	_, err = New(Options{Source: "s3://bucket/prefix"})
	require.Error(t, err)

	_, err = New(Options{Source: "ftp://host/dir"})
	require.Error(t, err)

	_, err = New(Options{Source: "  "})
	require.Error(t, err)
}

func TestObjectEntry(t *testing.T) {
	e := objectEntry("garden", s3types.Object{Key: aws.String("gallery/sunset_lake.png")})
	assert.Equal(t, "sunset_lake.png", e.Name)
	assert.Equal(t, "s3://garden/gallery/sunset_lake.png", e.DownloadURL)
	assert.True(t, IsS3(e.DownloadURL))
}
