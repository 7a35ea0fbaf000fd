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
	t.Parallel()

	assert.Nil(t, CSV(""))
	assert.Equal(t, []string{"a:9092", "b:9092"}, CSV(" a:9092, ,b:9092 "))
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("FC_TEST_STR", "value")
	t.Setenv("FC_TEST_INT", "42")
	t.Setenv("FC_TEST_BAD_INT", "nope")
	t.Setenv("FC_TEST_DUR", "90s")

	assert.Equal(t, "value", EnvDefault("FC_TEST_STR", "def"))
	assert.Equal(t, "def", EnvDefault("FC_TEST_UNSET", "def"))
	assert.Equal(t, 42, EnvIntDefault("FC_TEST_INT", 1))
	assert.Equal(t, 1, EnvIntDefault("FC_TEST_BAD_INT", 1))
	assert.Equal(t, 90*time.Second, EnvDurationDefault("FC_TEST_DUR", time.Second))
	assert.Equal(t, time.Second, EnvDurationDefault("FC_TEST_UNSET", time.Second))
	assert.Equal(t, []string{"x"}, EnvCSVDefault("FC_TEST_UNSET", []string{"x"}))
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	type sample struct {
		Port int           `yaml:"port"`
		TTL  time.Duration `yaml:"ttl"`
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "farmconnect.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 7000\nttl: 10m\n"), 0o600))

	var s sample
	require.NoError(t, LoadYAML(path, &s))
	assert.Equal(t, 7000, s.Port)
	assert.Equal(t, 10*time.Minute, s.TTL)

	require.NoError(t, LoadYAML(filepath.Join(dir, "missing.yaml"), &s))
	require.NoError(t, LoadYAML("", &s))

	require.NoError(t, os.WriteFile(path, []byte("port: [oops"), 0o600))
	require.Error(t, LoadYAML(path, &s))
}

func TestMustHelpers(t *testing.T) {
	t.Parallel()

	require.NoError(t, MustNonEmpty("x", "X"))
	require.EqualError(t, MustNonEmpty("", "JWT_SECRET"), "missing required env JWT_SECRET")
	require.NoError(t, MustOneOf("hide", "OWNERSHIP_POLICY", "hide", "reveal"))
	require.Error(t, MustOneOf("maybe", "OWNERSHIP_POLICY", "hide", "reveal"))
}
