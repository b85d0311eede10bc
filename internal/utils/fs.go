package utils

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// MaxTextFileSize is the largest file ReadTextFile accepts.
const MaxTextFileSize = 8 << 20

// sniffLen is how much of a file is checked for NUL bytes.
const sniffLen = 8000

var (
	ErrBinaryFile   = errors.New("binary file")
	ErrFileTooLarge = errors.New("file too large")
)

// DirCheckResult represents the result of dir checks
type DirCheckResult struct {
	Exists   bool
	Writable bool
	Error    error
}

// FileExists reports whether path is an existing regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// EnsureDir creates directory if it doesn't exist
func EnsureDir(dirPath string) error {
	return os.MkdirAll(dirPath, 0o755)
}

// SaveTOMLFile encodes data next to filePath and renames it into place, so
// readers never see a half written config.
func SaveTOMLFile(data any, filePath string) error {
	tmp, err := os.CreateTemp(filepath.Dir(filePath), "."+filepath.Base(filePath)+".*")
	if err != nil {
		log.Errorf("Failed to create file: %v", err)
		return err
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(data); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding %s: %w", filePath, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filePath)
}

// ReadTextFile reads a file meant to become a buffer. Directories, files
// over MaxTextFileSize and files with NUL bytes near the start are refused.
func ReadTextFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s: not a regular file", path)
	}
	if info.Size() > MaxTextFileSize {
		return "", fmt.Errorf("%s: %w (%d bytes)", path, ErrFileTooLarge, info.Size())
	}

	data, err := io.ReadAll(io.LimitReader(f, MaxTextFileSize+1))
	if err != nil {
		return "", err
	}
	if len(data) > MaxTextFileSize {
		return "", fmt.Errorf("%s: %w", path, ErrFileTooLarge)
	}
	if bytes.IndexByte(data[:min(len(data), sniffLen)], 0) >= 0 {
		return "", fmt.Errorf("%s: %w", path, ErrBinaryFile)
	}
	return string(data), nil
}

// GetAbsolutePath returns the absolute path of a file, "unknown" for none.
func GetAbsolutePath(path string) string {
	if path == "" {
		return "unknown"
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// GetExecutableDir returns the directory of the running binary, the last
// place a config dir can live.
func GetExecutableDir() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(execPath), nil
}

// CheckDirStatus creates dirPath when missing and probes it for writes.
func CheckDirStatus(dirPath string) DirCheckResult {
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		log.Warnf("Cannot create directory %s: %v", dirPath, err)
		return DirCheckResult{Error: err}
	}
	result := DirCheckResult{Exists: true}

	probe, err := os.CreateTemp(dirPath, ".write_test*")
	if err != nil {
		log.Warnf("Cannot write to directory %s: %v", dirPath, err)
		result.Error = err
		return result
	}
	probe.Close()
	os.Remove(probe.Name())
	result.Writable = true
	return result
}
