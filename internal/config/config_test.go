package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/inovacc/trafficr/internal/application"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
repo_metadata:
  - username: octocat
    repository: hello-world
    token: ghp_one
  - username: octocat
    repository: other
    token: ghp_two
remote_database_metadata:
  url: https://nocodb.example.com
  table_id: tbl123
  token: xc_secret
  min_call_spacing: 5s
local_database_metadata:
  path: /var/lib/trafficr
archiver_period: 3
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	require.Len(t, cfg.Repositories, 2)
	assert.Equal(t, "octocat/hello-world", cfg.Repositories[0].UID())
	assert.Equal(t, "ghp_one", cfg.Repositories[0].Token)

	assert.Equal(t, "https://nocodb.example.com", cfg.Remote.URL)
	assert.Equal(t, "tbl123", cfg.Remote.TableID)
	assert.Equal(t, 5*time.Second, cfg.Remote.MinCallSpacing.Std())

	assert.Equal(t, "/var/lib/trafficr", cfg.Storage.Path)
	assert.Equal(t, 3, cfg.ArchiverPeriod)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
repo_metadata:
  - username: octocat
    repository: hello-world
    token: ghp_one
remote_database_metadata:
  url: https://nocodb.example.com
  table_id: tbl123
  token: xc_secret
`))
	require.NoError(t, err)

	assert.Equal(t, "traffic_data", cfg.Storage.Path)
	assert.Equal(t, 7, cfg.ArchiverPeriod)
	assert.Equal(t, 2*time.Second, cfg.Remote.MinCallSpacing.Std())
}

func TestLoad_MissingFileIsFatal(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	var cerr *ConfigError
	assert.True(t, errors.As(err, &cerr))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name:    "malformed yaml",
			content: "repo_metadata: [",
			wantMsg: "",
		},
		{
			name: "no repositories",
			content: `
remote_database_metadata:
  url: https://nocodb.example.com
  table_id: tbl123
  token: xc_secret
`,
			wantMsg: "repo_metadata",
		},
		{
			name: "repository without token",
			content: `
repo_metadata:
  - username: octocat
    repository: hello-world
remote_database_metadata:
  url: https://nocodb.example.com
  table_id: tbl123
  token: xc_secret
`,
			wantMsg: "token is required",
		},
		{
			name: "missing remote url",
			content: `
repo_metadata:
  - username: octocat
    repository: hello-world
    token: ghp_one
remote_database_metadata:
  table_id: tbl123
  token: xc_secret
`,
			wantMsg: "url is required",
		},
		{
			name: "missing table id",
			content: `
repo_metadata:
  - username: octocat
    repository: hello-world
    token: ghp_one
remote_database_metadata:
  url: https://nocodb.example.com
  token: xc_secret
`,
			wantMsg: "table_id is required",
		},
		{
			name: "zero period",
			content: `
repo_metadata:
  - username: octocat
    repository: hello-world
    token: ghp_one
remote_database_metadata:
  url: https://nocodb.example.com
  table_id: tbl123
  token: xc_secret
archiver_period: 0
`,
			wantMsg: "archiver_period",
		},
		{
			name: "bad duration",
			content: `
repo_metadata:
  - username: octocat
    repository: hello-world
    token: ghp_one
remote_database_metadata:
  url: https://nocodb.example.com
  table_id: tbl123
  token: xc_secret
  min_call_spacing: soon
`,
			wantMsg: "invalid duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)

			var cerr *ConfigError
			require.True(t, errors.As(err, &cerr), "error must be a *ConfigError, got %T", err)

			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestLocate(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	appDir, err := application.GetApplicationDirectory()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(appDir, 0o755))

	t.Run("existing path is used as-is", func(t *testing.T) {
		path := writeConfig(t, validYAML)
		assert.Equal(t, path, Locate(path))
	})

	t.Run("falls back to the application directory", func(t *testing.T) {
		installed := filepath.Join(appDir, "config.yaml")
		require.NoError(t, os.WriteFile(installed, []byte(validYAML), 0o600))

		got := Locate(filepath.Join(t.TempDir(), "config.yaml"))
		assert.Equal(t, installed, got)
	})

	t.Run("missing everywhere returns the input", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "absent.yaml")
		assert.Equal(t, path, Locate(path))
	})
}
