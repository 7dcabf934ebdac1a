package confkit_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kalshi-explorer/pkg/confkit"
)

func TestResolvePath(t *testing.T) {
	t.Setenv("CONFKIT_TEST_DIR", "keys")
	t.Setenv("CONFKIT_TEST_ABS", "/secrets")

	tests := []struct {
		name string
		base string
		file string
		want string
	}{
		{name: "absolute path", base: "/base/dir", file: "/abs/kalshi.pem", want: "/abs/kalshi.pem"},
		{name: "relative path", base: "/base/dir", file: "etc/kalshi.yaml", want: "/base/dir/etc/kalshi.yaml"},
		{name: "relative with env", base: "/base/dir", file: "${CONFKIT_TEST_DIR}/kalshi.pem", want: "/base/dir/keys/kalshi.pem"},
		{name: "env expands to absolute", base: "/base", file: "$CONFKIT_TEST_ABS/kalshi.pem", want: "/secrets/kalshi.pem"},
		{name: "unset env resolves empty", base: "/base", file: " ${CONFKIT_TEST_UNSET} ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, confkit.ResolvePath(tt.base, tt.file))
		})
	}
}

func TestBaseDir(t *testing.T) {
	assert.Equal(t, "/etc/config", confkit.BaseDir("/etc/config/app.yaml"))
	assert.Equal(t, "/", confkit.BaseDir("/app.yaml"))
	assert.Equal(t, "config", confkit.BaseDir("config/app.yaml"))
}

func TestSectionHydrate(t *testing.T) {
	t.Run("empty file", func(t *testing.T) {
		section := &confkit.Section[string]{}
		err := section.Hydrate("/base", func(string) (*string, error) {
			t.Error("loader should not be called for empty file")
			return nil, nil
		})
		require.NoError(t, err)
		assert.False(t, section.Loaded())
	})

	t.Run("successful hydration", func(t *testing.T) {
		section := &confkit.Section[string]{File: "kalshi.yaml"}
		value := "loaded"
		err := section.Hydrate("/base", func(path string) (*string, error) {
			assert.Equal(t, "/base/kalshi.yaml", path)
			return &value, nil
		})
		require.NoError(t, err)
		assert.True(t, section.Loaded())
		assert.Equal(t, "/base/kalshi.yaml", section.File)
	})

	t.Run("file from unset env", func(t *testing.T) {
		section := &confkit.Section[string]{File: "${CONFKIT_TEST_UNSET}"}
		err := section.Hydrate("/base", func(string) (*string, error) {
			t.Error("loader should not be called for unset file")
			return nil, nil
		})
		require.NoError(t, err)
		assert.False(t, section.Loaded())
	})

	t.Run("loader error", func(t *testing.T) {
		section := &confkit.Section[string]{File: "kalshi.yaml"}
		boom := errors.New("boom")
		err := section.Hydrate("/base", func(string) (*string, error) {
			return nil, boom
		})
		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "/base/kalshi.yaml")
		assert.Equal(t, "kalshi.yaml", section.File)
		assert.False(t, section.Loaded())
	})
}

func TestLoadFile(t *testing.T) {
	type sample struct {
		Name  string
		Pages int `json:",default=10"`
	}
	t.Setenv("CONFKIT_TEST_NAME", "explorer")
	path := filepath.Join(t.TempDir(), "sample.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Name: ${CONFKIT_TEST_NAME}\n"), 0o600))

	cfg, err := confkit.LoadFile[sample](path, true)
	require.NoError(t, err)
	assert.Equal(t, "explorer", cfg.Name)
	assert.Equal(t, 10, cfg.Pages)

	_, err = confkit.LoadFile[sample](filepath.Join(t.TempDir(), "missing.yaml"), false)
	require.Error(t, err)

	_, err = confkit.LoadFile[sample]("  ", false)
	require.Error(t, err)
}

func TestProjectRootHasGoMod(t *testing.T) {
	root, err := confkit.ProjectRoot()
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(root, "go.mod"))
	assert.NoError(t, statErr)
	assert.Equal(t, filepath.Join(root, "etc", "kalshi.yaml"), confkit.MustProjectPath("etc/kalshi.yaml"))
}
