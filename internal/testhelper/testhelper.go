// Package testhelper contains helpers to simplify tests
package testhelper

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TempDir creates a temp dir that is removed when the test ends
func TempDir(t *testing.T) string {
	t.Helper()

	out, err := os.MkdirTemp("", strings.ReplaceAll(t.Name(), "/", "_")+"_")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, os.RemoveAll(out))
	})
	return out
}

// TempFile creates a temp file that is removed when the test ends
func TempFile(t *testing.T) *os.File {
	t.Helper()

	out, err := os.CreateTemp("", strings.ReplaceAll(t.Name(), "/", "_")+"_")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, os.RemoveAll(out.Name()))
	})
	return out
}
