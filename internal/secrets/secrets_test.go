package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-cam/vigil/internal/errors"
)

func TestExpand(t *testing.T) {
	t.Setenv("VIGIL_TEST_TOKEN", "abc123")
	t.Setenv("VIGIL_TEST_USER", "admin")
	t.Setenv("VIGIL_TEST_EMPTY", "")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{name: "empty", input: "", want: ""},
		{name: "literal", input: "hunter2", want: "hunter2"},
		{name: "single reference", input: "${VIGIL_TEST_TOKEN}", want: "abc123"},
		{name: "embedded reference", input: "Bearer ${VIGIL_TEST_TOKEN}", want: "Bearer abc123"},
		{name: "multiple references", input: "${VIGIL_TEST_USER}:${VIGIL_TEST_TOKEN}", want: "admin:abc123"},
		{name: "fallback unused", input: "${VIGIL_TEST_TOKEN:-other}", want: "abc123"},
		{name: "fallback used", input: "${VIGIL_TEST_UNSET:-other}", want: "other"},
		{name: "empty fallback", input: "${VIGIL_TEST_UNSET:-}", want: ""},
		{name: "empty variable counts as unset", input: "${VIGIL_TEST_EMPTY:-x}", want: "x"},
		{name: "dollar without braces", input: "$VIGIL_TEST_TOKEN", want: "$VIGIL_TEST_TOKEN"},
		{name: "missing variable", input: "${VIGIL_TEST_UNSET}", wantErr: "VIGIL_TEST_UNSET"},
		{name: "all missing variables named", input: "${VIGIL_TEST_A}-${VIGIL_TEST_B}", wantErr: "VIGIL_TEST_A, VIGIL_TEST_B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func writeSecret(t *testing.T, name, content string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
	return path
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	t.Run("trailing newlines trimmed", func(t *testing.T) {
		t.Parallel()
		got, err := ReadFile(writeSecret(t, "token", "secret123\r\n\n", 0o400))
		require.NoError(t, err)
		assert.Equal(t, "secret123", got)
	})

	t.Run("surrounding spaces kept", func(t *testing.T) {
		t.Parallel()
		got, err := ReadFile(writeSecret(t, "token", "  token  \n", 0o600))
		require.NoError(t, err)
		assert.Equal(t, "  token  ", got)
	})

	t.Run("permissive mode still read", func(t *testing.T) {
		t.Parallel()
		got, err := ReadFile(writeSecret(t, "token", "open", 0o644))
		require.NoError(t, err)
		assert.Equal(t, "open", got)
	})

	t.Run("empty path", func(t *testing.T) {
		t.Parallel()
		_, err := ReadFile("")
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := ReadFile(filepath.Join(t.TempDir(), "absent"))
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
	})

	t.Run("directory rejected", func(t *testing.T) {
		t.Parallel()
		_, err := ReadFile(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a regular file")
	})

	t.Run("empty file rejected", func(t *testing.T) {
		t.Parallel()
		_, err := ReadFile(writeSecret(t, "token", "\n", 0o400))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty")
	})

	t.Run("oversized file rejected", func(t *testing.T) {
		t.Parallel()
		_, err := ReadFile(writeSecret(t, "token", strings.Repeat("x", maxFileSize+1), 0o400))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds")
	})
}

func TestResolve(t *testing.T) {
	t.Setenv("VIGIL_TEST_SMTP", "from-env")

	t.Run("file wins over value", func(t *testing.T) {
		path := writeSecret(t, "smtp", "from-file\n", 0o400)
		got, err := Resolve("email.password", path, "${VIGIL_TEST_SMTP}")
		require.NoError(t, err)
		assert.Equal(t, "from-file", got)
	})

	t.Run("value expanded", func(t *testing.T) {
		got, err := Resolve("email.password", "", "${VIGIL_TEST_SMTP}")
		require.NoError(t, err)
		assert.Equal(t, "from-env", got)
	})

	t.Run("nothing configured", func(t *testing.T) {
		got, err := Resolve("email.password", "", "")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("unreadable file names the field", func(t *testing.T) {
		_, err := Resolve("sms.authtoken", filepath.Join(t.TempDir(), "absent"), "literal")
		require.Error(t, err)

		var ee *errors.EnhancedError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, "sms.authtoken", ee.GetContext()["field"])
	})
}
