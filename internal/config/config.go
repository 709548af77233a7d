// Package config loads and validates the startup configuration.
//
// Configuration is read exactly once, at startup, and passed by value to
// the archiver and its collaborators. A missing or malformed file is a
// fatal condition; the process must not start half-configured.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/inovacc/trafficr/internal/application"
	"github.com/inovacc/trafficr/internal/model"
	"gopkg.in/yaml.v3"
)

// ConfigError reports missing or malformed startup configuration.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Locate resolves the configuration file path. An existing path is used
// as-is; otherwise the same file name is looked up in the application's
// per-user directory, so the daemon can run from anywhere once its
// config has been installed there. A path that exists nowhere is
// returned unchanged and left for Load to report.
func Locate(path string) string {
	if _, err := os.Stat(path); err == nil {
		return path
	}

	appDir, err := application.GetApplicationDirectory()
	if err != nil {
		return path
	}

	candidate := filepath.Join(appDir, filepath.Base(path))
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}

	return path
}

// Load reads the YAML configuration at path, applies defaults for the
// optional fields, and validates the result. Every failure is returned as
// a *ConfigError.
func Load(path string) (*model.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	cfg := model.DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	if err := validate(&cfg); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	return &cfg, nil
}

func validate(cfg *model.Config) error {
	if len(cfg.Repositories) == 0 {
		return errors.New("repo_metadata is required and must list at least one repository")
	}

	for i, repo := range cfg.Repositories {
		if repo.Username == "" {
			return fmt.Errorf("repo_metadata[%d]: username is required", i)
		}
		if repo.Repository == "" {
			return fmt.Errorf("repo_metadata[%d]: repository is required", i)
		}
		if repo.Token == "" {
			return fmt.Errorf("repo_metadata[%d] (%s): token is required", i, repo.UID())
		}
	}

	if cfg.Remote.URL == "" {
		return errors.New("remote_database_metadata.url is required")
	}
	if cfg.Remote.TableID == "" {
		return errors.New("remote_database_metadata.table_id is required")
	}
	if cfg.Remote.Token == "" {
		return errors.New("remote_database_metadata.token is required")
	}
	if cfg.Remote.MinCallSpacing < 0 {
		return errors.New("remote_database_metadata.min_call_spacing must not be negative")
	}

	if cfg.Storage.Path == "" {
		return errors.New("local_database_metadata.path must not be empty")
	}

	if cfg.ArchiverPeriod < 1 {
		return errors.New("archiver_period must be at least 1 day")
	}

	return nil
}
