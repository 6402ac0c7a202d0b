package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSV(t *testing.T) {
	assert.Nil(t, CSV(""))
	assert.Equal(t, []string{"kafka:9092", "kafka2:9092"}, CSV(" kafka:9092, ,kafka2:9092 "))
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("CFG_STR", "value")
	t.Setenv("CFG_INT", "17")
	t.Setenv("CFG_BAD_INT", "x")
	t.Setenv("CFG_BOOL", "true")
	t.Setenv("CFG_DUR", "15m")
	t.Setenv("CFG_BAD_DUR", "-1s")

	assert.Equal(t, "value", EnvDefault("CFG_STR", "def"))
	assert.Equal(t, "def", EnvDefault("CFG_MISSING", "def"))
	assert.Equal(t, 17, EnvIntDefault("CFG_INT", 1))
	assert.Equal(t, 1, EnvIntDefault("CFG_BAD_INT", 1))
	assert.True(t, EnvBoolDefault("CFG_BOOL", false))
	assert.False(t, EnvBoolDefault("CFG_MISSING", false))
	assert.Equal(t, 15*time.Minute, EnvDurationDefault("CFG_DUR", time.Hour))
	assert.Equal(t, time.Hour, EnvDurationDefault("CFG_BAD_DUR", time.Hour))
}

func TestLoadDotEnv_DoesNotOverrideProcessEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("DOTENV_ONLY=from-file\nDOTENV_BOTH=from-file\n"), 0o600))
	t.Setenv("DOTENV_BOTH", "from-process")
	t.Cleanup(func() { os.Unsetenv("DOTENV_ONLY") })

	LoadDotEnv(path)

	assert.Equal(t, "from-file", os.Getenv("DOTENV_ONLY"))
	assert.Equal(t, "from-process", os.Getenv("DOTENV_BOTH"))
}
