// Package secrets resolves channel credentials from literal values,
// ${VAR} environment references or mounted secret files
// (Docker /run/secrets, Kubernetes volumes). Secret values are never logged.
package secrets

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vigil-cam/vigil/internal/errors"
	"github.com/vigil-cam/vigil/internal/logging"
)

// maxFileSize caps secret file reads; credentials are tokens, not documents.
const maxFileSize = 64 * 1024

var refPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func logger() *slog.Logger {
	if l := logging.ForService("secrets"); l != nil {
		return l
	}
	return slog.Default().With("service", "secrets")
}

// Expand substitutes ${VAR} and ${VAR:-fallback} references with environment values.
// A reference without fallback to an unset variable is an error naming the variable.
func Expand(value string) (string, error) {
	if !strings.Contains(value, "${") {
		return value, nil
	}

	var missing []string
	expanded := refPattern.ReplaceAllStringFunc(value, func(ref string) string {
		name := ref[2 : len(ref)-1]
		fallback, hasFallback := "", false
		if idx := strings.Index(name, ":-"); idx != -1 {
			name, fallback, hasFallback = name[:idx], name[idx+2:], true
		}

		if v := os.Getenv(name); v != "" {
			return v
		}
		if !hasFallback {
			missing = append(missing, name)
		}
		return fallback
	})

	if len(missing) > 0 {
		return "", errors.Newf("missing environment variable(s): %s", strings.Join(missing, ", ")).
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return expanded, nil
}

// ReadFile reads a mounted secret file, dropping trailing newlines.
// Files readable by group or other are accepted with a warning.
func ReadFile(path string) (string, error) {
	if path == "" {
		return "", errors.NewStd("secret file path is empty")
	}
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return "", errors.New(err).
			Component("secrets").
			Category(errors.CategoryFileIO).
			Context("operation", "stat_secret").
			Build()
	}
	if !info.Mode().IsRegular() {
		return "", errors.Newf("secret path is not a regular file: %s", path).
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if info.Size() > maxFileSize {
		return "", errors.Newf("secret file exceeds %d bytes: %s", maxFileSize, path).
			Component("secrets").
			Category(errors.CategoryConfiguration).
			FileContext(path, info.Size()).
			Build()
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger().Warn("secret file is readable by group or other",
			"path", path,
			"mode", perm.String())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.New(err).
			Component("secrets").
			Category(errors.CategoryFileIO).
			Context("operation", "read_secret").
			Build()
	}

	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", errors.Newf("secret file is empty: %s", path).
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return secret, nil
}

// Resolve returns the credential for field. A file takes precedence over value;
// value is expanded for environment references. Both empty yields "".
func Resolve(field, file, value string) (string, error) {
	if file != "" {
		secret, err := ReadFile(file)
		if err != nil {
			return "", errors.New(err).
				Component("secrets").
				Category(errors.CategoryConfiguration).
				Context("field", field).
				Build()
		}
		return secret, nil
	}

	secret, err := Expand(value)
	if err != nil {
		return "", errors.New(err).
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Context("field", field).
			Build()
	}
	return secret, nil
}
