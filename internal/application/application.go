// Package application holds process-level identity shared by the CLI
// commands and the service wrapper.
package application

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const (
	// AppName names the per-user configuration directory and the
	// system-service identity.
	AppName = "trafficr"

	// AppExeName is the executable name looked up on PATH when the
	// service wrapper cannot resolve its own binary.
	AppExeName = "trafficr"

	// AppExeNameWindows is the Windows executable name.
	AppExeNameWindows = "trafficr.exe"
)

var (
	once   sync.Once
	appDir string
	errDir error
)

// GetApplicationDirectory returns the per-user directory where trafficr
// looks for its configuration file when --config does not name an
// existing path. Linux resolves under ~/.config, Windows under
// AppData\Local. The result is cached for the life of the process.
func GetApplicationDirectory() (string, error) {
	once.Do(func() {
		var (
			base string
			err  error
		)

		switch runtime.GOOS {
		case "windows":
			base, err = os.UserCacheDir()
		default:
			base, err = os.UserConfigDir()
		}

		if err != nil {
			errDir = fmt.Errorf("resolve user config directory: %w", err)

			return
		}

		appDir = filepath.Join(base, AppName)
	})

	return appDir, errDir
}
