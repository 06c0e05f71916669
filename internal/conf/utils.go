package conf

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/vigil-cam/vigil/internal/errors"
)

const osWindows = "windows"

// GetDefaultConfigPaths returns the configuration search paths for the current OS.
// When a config.yaml already exists in one of them, only that path is returned.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	var configPaths []string
	switch runtime.GOOS {
	case osWindows:
		configPaths = []string{
			".",
			filepath.Join(homeDir, "AppData", "Roaming", "vigil"),
		}
	default:
		configPaths = []string{
			".",
			filepath.Join(homeDir, ".config", "vigil"),
			"/etc/vigil",
		}
	}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}

	// The default config is created in the user directory, not the working directory
	return configPaths[1:], nil
}

// GetFfmpegBinaryName returns the binary name for ffmpeg based on the current OS.
func GetFfmpegBinaryName() string {
	if runtime.GOOS == osWindows {
		return "ffmpeg.exe"
	}
	return "ffmpeg"
}

// GetFfprobeBinaryName returns the binary name for ffprobe based on the current OS.
func GetFfprobeBinaryName() string {
	if runtime.GOOS == osWindows {
		return "ffprobe.exe"
	}
	return "ffprobe"
}

// ValidateToolPath returns a usable path for a tool, preferring the configured path
// and falling back to the system PATH.
func ValidateToolPath(configuredPath, toolName string) (string, error) {
	if configuredPath != "" {
		if info, err := os.Stat(configuredPath); err == nil && !info.IsDir() {
			return configuredPath, nil
		}
		GetLogger().Warn("Configured tool path invalid or not found, checking system PATH",
			"configured_path", configuredPath,
			"tool", toolName)
	}

	if found, err := exec.LookPath(toolName); err == nil {
		return found, nil
	}

	if configuredPath != "" {
		return "", fmt.Errorf("tool '%s' not found at configured path '%s' or in system PATH", toolName, configuredPath)
	}
	return "", fmt.Errorf("tool '%s' not found in system PATH and no path configured", toolName)
}

// moveFile moves a file from src to dst, working across devices
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("error opening source file: %w", err)
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("error creating destination file: %w", err)
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return fmt.Errorf("error copying file contents: %w", err)
	}
	if err := dstFile.Close(); err != nil {
		return fmt.Errorf("error closing destination file: %w", err)
	}

	if err := os.Remove(src); err != nil {
		return fmt.Errorf("error removing source file after copy: %w", err)
	}

	return nil
}
