package model

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "2s" or "500ms" decode
// directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}

	*d = Duration(parsed)

	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// RepositoryConfig identifies one repository to track. Immutable for the
// process lifetime; loaded once at startup.
type RepositoryConfig struct {
	// Username is the owning account
	Username string `yaml:"username"`

	// Repository is the repository name without the owner
	Repository string `yaml:"repository"`

	// Token is the API token used to read traffic for this repository
	Token string `yaml:"token"`
}

// UID returns the owner-qualified identifier used as the record key.
func (r RepositoryConfig) UID() string {
	return r.Username + "/" + r.Repository
}

// RemoteConfig describes the remote tabular store uploads go to.
type RemoteConfig struct {
	// URL is the base URL of the remote database
	URL string `yaml:"url"`

	// TableID identifies the table records are created in
	TableID string `yaml:"table_id"`

	// Token is the API token for the remote database
	Token string `yaml:"token"`

	// MinCallSpacing is the minimum time between any two upload calls.
	// The remote limit is account-wide, so the spacing applies process-wide,
	// across repositories.
	MinCallSpacing Duration `yaml:"min_call_spacing"`
}

// StorageConfig locates the local record store.
type StorageConfig struct {
	// Path is the storage root directory
	Path string `yaml:"path"`
}

// Config is the full startup configuration.
type Config struct {
	// Repositories lists the repositories to archive traffic for
	Repositories []RepositoryConfig `yaml:"repo_metadata"`

	// Remote is the remote database the records are forwarded to
	Remote RemoteConfig `yaml:"remote_database_metadata"`

	// Storage is the local record store location
	Storage StorageConfig `yaml:"local_database_metadata"`

	// ArchiverPeriod is the number of days between archiving cycles
	ArchiverPeriod int `yaml:"archiver_period"`
}

// DefaultConfig returns a Config with sensible defaults. Repository and
// remote database settings have no defaults; they must come from the
// configuration file.
func DefaultConfig() Config {
	return Config{
		Storage:        StorageConfig{Path: "traffic_data"},
		Remote:         RemoteConfig{MinCallSpacing: Duration(2 * time.Second)},
		ArchiverPeriod: 7,
	}
}
