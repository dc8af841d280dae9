package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetters(t *testing.T) {
	t.Setenv("HS_STRING", "value")
	t.Setenv("HS_BOOL", "true")
	t.Setenv("HS_INT", "42")
	t.Setenv("HS_BAD_INT", "forty")
	t.Setenv("HS_UINT", "698983191")
	t.Setenv("HS_DURATION", "12h")

	require.Equal(t, "value", GetString("HS_STRING", "default"))
	require.Equal(t, "default", GetString("HS_MISSING", "default"))
	require.True(t, GetBool("HS_BOOL", false))
	require.True(t, GetBool("HS_MISSING", true))
	require.Equal(t, 42, GetInt("HS_INT", 1))
	require.Equal(t, 1, GetInt("HS_BAD_INT", 1))
	require.Equal(t, uint64(698983191), GetUint64("HS_UINT", 0))
	require.Equal(t, 12*time.Hour, GetDuration("HS_DURATION", time.Second))
	require.Equal(t, time.Second, GetDuration("HS_MISSING", time.Second))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("HS_FROM_FILE=loaded\n"), 0o600))

	t.Setenv("HS_FROM_FILE", "")
	os.Unsetenv("HS_FROM_FILE")

	Load(file, filepath.Join(dir, "missing.env"))
	require.Equal(t, "loaded", GetString("HS_FROM_FILE", ""))

	os.Unsetenv("HS_FROM_FILE")
}
