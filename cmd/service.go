package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/inovacc/trafficr/internal/application"
	"github.com/inovacc/trafficr/internal/config"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

var (
	serviceStart     bool
	serviceStop      bool
	serviceInstall   bool
	serviceUninstall bool
	serviceStatus    bool
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the archiver as a system service",
	Long: `Install, uninstall, start, stop, or check the status of the archiver
as a system service.

On Windows, this creates/manages a Windows Service.
On Linux/macOS, this creates/manages a systemd/launchd service.

The service runs 'trafficr start' with the configuration file given via
--config, so pass an absolute path when installing.`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(serviceCmd)
	serviceCmd.Flags().BoolVar(&serviceStart, "start", false, "Start the archiver service")
	serviceCmd.Flags().BoolVar(&serviceStop, "stop", false, "Stop the archiver service")
	serviceCmd.Flags().BoolVar(&serviceInstall, "install", false, "Install the archiver as a system service")
	serviceCmd.Flags().BoolVar(&serviceUninstall, "uninstall", false, "Uninstall the archiver system service")
	serviceCmd.Flags().BoolVar(&serviceStatus, "status", false, "Check the archiver service status")
}

// program implements service.Interface by running the archiver executable.
type program struct {
	configPath string
}

func (p *program) Start(s service.Service) error {
	_ = s

	// Start must not block; the archiver runs async.
	go p.run()

	return nil
}

func (p *program) run() {
	exe, err := archiverExecutable()
	if err != nil {
		_ = service.ConsoleLogger.Errorf("Failed to locate executable: %v", err)

		return
	}

	cmd := exec.Command(exe, "start", "--config", p.configPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		_ = service.ConsoleLogger.Errorf("Archiver exited with error: %v", err)
	}
}

func (p *program) Stop(s service.Service) error {
	_ = s

	// The wrapped process receives the termination signal from the service
	// manager and finishes its in-flight write before exiting.
	return nil
}

// archiverExecutable resolves the binary the service wrapper re-execs.
// When the running process cannot name its own executable, the archiver
// is looked up on PATH by its installed name.
func archiverExecutable() (string, error) {
	exe, err := os.Executable()
	if err == nil {
		return exe, nil
	}

	name := application.AppExeName
	if runtime.GOOS == "windows" {
		name = application.AppExeNameWindows
	}

	return exec.LookPath(name)
}

func runService(cmd *cobra.Command, args []string) error {
	_, _ = cmd, args

	flagCount := 0

	for _, set := range []bool{serviceStart, serviceStop, serviceInstall, serviceUninstall, serviceStatus} {
		if set {
			flagCount++
		}
	}

	if flagCount == 0 {
		return fmt.Errorf("please specify one of: --start, --stop, --install, --uninstall, --status")
	}

	if flagCount > 1 {
		return fmt.Errorf("please specify only one operation at a time")
	}

	resolved := config.Locate(cfgPath)

	svcConfig := &service.Config{
		Name:        "TrafficrArchiver",
		DisplayName: "Trafficr Traffic Archiver",
		Description: "Archives GitHub clone-traffic statistics to a local store and a remote table",
		Arguments:   []string{"start", "--config", resolved},
	}

	prg := &program{configPath: resolved}

	s, err := service.New(prg, svcConfig)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	switch {
	case serviceInstall:
		return installService(s, resolved)
	case serviceUninstall:
		return uninstallService(s)
	case serviceStart:
		return startService(s)
	case serviceStop:
		return stopService(s)
	case serviceStatus:
		return statusService(s)
	}

	return nil
}

func installService(s service.Service, configPath string) error {
	fmt.Println("Installing trafficr service...")
	fmt.Printf("Configuration: %s\n", configPath)

	if err := s.Install(); err != nil {
		return fmt.Errorf("failed to install service: %w", err)
	}

	fmt.Println("✓ Service installed successfully!")
	fmt.Println("\nTo start the service, run:")
	fmt.Println("  trafficr service --start")

	return nil
}

func uninstallService(s service.Service) error {
	fmt.Println("Uninstalling trafficr service...")

	// Try to stop first
	_ = s.Stop()

	if err := s.Uninstall(); err != nil {
		return fmt.Errorf("failed to uninstall service: %w", err)
	}

	fmt.Println("✓ Service uninstalled successfully!")

	return nil
}

func startService(s service.Service) error {
	fmt.Println("Starting trafficr service...")

	if err := s.Start(); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	fmt.Println("✓ Service started successfully!")

	return nil
}

func stopService(s service.Service) error {
	fmt.Println("Stopping trafficr service...")

	if err := s.Stop(); err != nil {
		return fmt.Errorf("failed to stop service: %w", err)
	}

	fmt.Println("✓ Service stopped successfully!")

	return nil
}

func statusService(s service.Service) error {
	status, err := s.Status()
	if err != nil {
		return fmt.Errorf("failed to get service status: %w", err)
	}

	switch status {
	case service.StatusRunning:
		fmt.Println("Service status: running")
	case service.StatusStopped:
		fmt.Println("Service status: stopped")
	default:
		fmt.Println("Service status: unknown")
	}

	return nil
}
