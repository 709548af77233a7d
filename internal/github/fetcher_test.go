package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/inovacc/trafficr/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubFetcher(t *testing.T, handler http.HandlerFunc) *Fetcher {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	f := NewFetcherWithClient(func(ctx context.Context, token string) *gh.Client {
		client := gh.NewClient(nil)
		base, err := url.Parse(srv.URL + "/")
		require.NoError(t, err)
		client.BaseURL = base

		return client
	})
	f.now = func() time.Time {
		return time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC)
	}

	return f
}

func repoConfig() model.RepositoryConfig {
	return model.RepositoryConfig{Username: "octocat", Repository: "hello-world", Token: "ghp_test"}
}

func TestFetcher_NormalizesWindow(t *testing.T) {
	f := stubFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octocat/hello-world/traffic/clones", r.URL.Path)
		assert.Equal(t, "day", r.URL.Query().Get("per"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"count": 14,
			"uniques": 8,
			"clones": [
				{"timestamp": "2024-01-13T00:00:00Z", "count": 5, "uniques": 3},
				{"timestamp": "2024-01-14T00:00:00Z", "count": 9, "uniques": 5},
				{"timestamp": "2024-01-15T00:00:00Z", "count": 2, "uniques": 1}
			]
		}`)
	})

	records, err := f.Fetch(context.Background(), repoConfig())
	require.NoError(t, err)
	require.Len(t, records, 2, "the current UTC day must be excluded")

	assert.Equal(t, "octocat/hello-world", records[0].Repository)
	assert.Equal(t, "2024-01-13", records[0].Day())
	assert.Equal(t, 5, records[0].Clones)
	assert.Equal(t, 3, records[0].Uniques)
	assert.False(t, records[0].Synced)

	assert.Equal(t, "2024-01-14", records[1].Day())
	assert.Equal(t, 9, records[1].Clones)
}

func TestFetcher_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   FetchKind
	}{
		{name: "bad token", status: http.StatusUnauthorized, want: FetchAuth},
		{name: "token without scope", status: http.StatusForbidden, want: FetchAuth},
		{name: "unknown repository", status: http.StatusNotFound, want: FetchNotFound},
		{name: "server error", status: http.StatusBadGateway, want: FetchTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := stubFetcher(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"message": "nope"}`)
			})

			_, err := f.Fetch(context.Background(), repoConfig())
			require.Error(t, err)

			var ferr *FetchError
			require.True(t, errors.As(err, &ferr), "error must be a *FetchError, got %T", err)
			assert.Equal(t, tt.want, ferr.Kind)
			assert.Equal(t, "octocat/hello-world", ferr.Repository)
		})
	}
}
