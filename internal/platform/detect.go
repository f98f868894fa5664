package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const appName = "silkconv"

type Runtime struct {
	OS   string
	Arch string
}

func CurrentRuntime() Runtime {
	return Runtime{
		OS:   runtime.GOOS,
		Arch: NormalizeArch(runtime.GOARCH),
	}
}

func NormalizeArch(arch string) string {
	switch arch {
	case "x86_64":
		return "amd64"
	case "aarch64":
		return "arm64"
	default:
		return arch
	}
}

// ExecutableName returns the on-disk file name of a tool for goos. Windows
// executables carry an .exe suffix; POSIX ones carry none.
func ExecutableName(goos, name string) string {
	if goos != "windows" {
		return name
	}
	if strings.EqualFold(filepath.Ext(name), ".exe") {
		return name
	}
	return name + ".exe"
}

// ToolDirCandidates lists the directories searched for bundled tools,
// relative to the running silkconv binary.
func ToolDirCandidates(selfExecutable string) []string {
	binDir := filepath.Dir(selfExecutable)
	return []string{
		binDir,
		filepath.Join(binDir, "..", "libexec", appName),
		filepath.Join(binDir, "libexec", appName),
	}
}

func DefaultConfigPathFor(goos, homeDir, xdgConfigHome, appData string) (string, error) {
	dir, err := configDirFor(goos, homeDir, xdgConfigHome, appData)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func ResolveConfigPath(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	return DefaultConfigPathFor(runtime.GOOS, homeDir, os.Getenv("XDG_CONFIG_HOME"), os.Getenv("AppData"))
}

func configDirFor(goos, homeDir, xdgConfigHome, appData string) (string, error) {
	if homeDir == "" {
		return "", errors.New("home directory is empty")
	}

	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		if xdgConfigHome != "" {
			return filepath.Join(xdgConfigHome, appName), nil
		}
		return filepath.Join(homeDir, ".config", appName), nil
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support", appName), nil
	case "windows":
		if appData != "" {
			return filepath.Join(appData, appName), nil
		}
		return filepath.Join(homeDir, "AppData", "Roaming", appName), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", goos)
	}
}
