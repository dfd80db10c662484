package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/lcs/internal/protocol"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// isolatedRoot points HOME at an empty directory so a developer's own
// global config cannot leak into the test.
func isolatedRoot(t *testing.T) (root, home string) {
	t.Helper()
	home = t.TempDir()
	t.Setenv("HOME", home)
	return t.TempDir(), home
}

func TestLoadWithRoot_Defaults(t *testing.T) {
	root, _ := isolatedRoot(t)

	cfg, err := LoadWithRoot("", root)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Project.Root)
	assert.Equal(t, protocol.DefaultExtensions, cfg.Search.Extensions)
	assert.Equal(t, int64(protocol.DefaultMaxFileSize), cfg.Search.MaxFileSize)
	assert.Equal(t, DefaultSearchDebounceMs, cfg.Search.DebounceMs)
	assert.Equal(t, DefaultWatchDebounceMs, cfg.Watch.DebounceMs)
	assert.False(t, cfg.Watch.Enabled)
	assert.Empty(t, cfg.Search.Exclude)
	assert.NoError(t, ValidateConfig(cfg))
}

func TestLoadWithRoot_KDL(t *testing.T) {
	root, _ := isolatedRoot(t)
	writeConfig(t, root, KDLFileName, `
search {
    extensions ".go" ".md"
    include "src/**" "*.go"
    exclude "dist" "*.min.js"
    max_file_size "2MB"
    debounce_ms 250
}
server {
    socket "/tmp/custom.sock"
}
watch {
    enabled true
    debounce_ms 100
}
`)

	cfg, err := LoadWithRoot("", root)
	require.NoError(t, err)

	assert.Equal(t, []string{".go", ".md"}, cfg.Search.Extensions)
	assert.Equal(t, "src/**,*.go", cfg.IncludePattern())
	assert.Equal(t, "dist,*.min.js", cfg.ExcludePattern())
	assert.Equal(t, int64(2*1024*1024), cfg.Search.MaxFileSize)
	assert.Equal(t, 250, cfg.Search.DebounceMs)
	assert.Equal(t, "/tmp/custom.sock", cfg.Server.Socket)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 100, cfg.Watch.DebounceMs)
}

func TestLoadWithRoot_KDLIntegerSize(t *testing.T) {
	root, _ := isolatedRoot(t)
	writeConfig(t, root, KDLFileName, "search {\n    max_file_size 4096\n}\n")

	cfg, err := LoadWithRoot("", root)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), cfg.Search.MaxFileSize)
}

func TestLoadWithRoot_TOML(t *testing.T) {
	root, _ := isolatedRoot(t)
	writeConfig(t, root, TOMLFileName, `
[search]
extensions = [".rs"]
exclude = ["target"]
max_file_size = "512KB"

[watch]
enabled = true
`)

	cfg, err := LoadWithRoot("", root)
	require.NoError(t, err)

	assert.Equal(t, []string{".rs"}, cfg.Search.Extensions)
	assert.Equal(t, []string{"target"}, cfg.Search.Exclude)
	assert.Equal(t, int64(512*1024), cfg.Search.MaxFileSize)
	assert.True(t, cfg.Watch.Enabled)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, DefaultSearchDebounceMs, cfg.Search.DebounceMs)
}

func TestLoadWithRoot_KDLWinsOverTOML(t *testing.T) {
	root, _ := isolatedRoot(t)
	writeConfig(t, root, KDLFileName, "search {\n    exclude \"from-kdl\"\n}\n")
	writeConfig(t, root, TOMLFileName, "[search]\nexclude = [\"from-toml\"]\n")

	cfg, err := LoadWithRoot("", root)
	require.NoError(t, err)
	assert.Equal(t, []string{"from-kdl"}, cfg.Search.Exclude)
}

func TestLoadWithRoot_GlobalLayer(t *testing.T) {
	root, home := isolatedRoot(t)
	writeConfig(t, home, KDLFileName, `
project {
    root "/somewhere/else"
}
search {
    exclude "vendor" "dist"
    debounce_ms 900
}
`)
	writeConfig(t, root, KDLFileName, "search {\n    exclude \"dist\" \"build\"\n}\n")

	cfg, err := LoadWithRoot("", root)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Project.Root, "the global file cannot move the project")
	assert.Equal(t, []string{"vendor", "dist", "build"}, cfg.Search.Exclude)
	assert.Equal(t, 900, cfg.Search.DebounceMs)
}

func TestLoad_ExplicitPathResolvesRelativeRoot(t *testing.T) {
	_, _ = isolatedRoot(t)
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "project"), 0o755))
	path := writeConfig(t, dir, "custom.kdl", "project {\n    root \"project\"\n}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "project"), cfg.Project.Root)
}

func TestLoad_ExplicitTOMLPath(t *testing.T) {
	_, _ = isolatedRoot(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, "custom.toml", "[server]\nsocket = \"/tmp/x.sock\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.sock", cfg.Server.Socket)
}

func TestLoad_MissingExplicitPath(t *testing.T) {
	_, _ = isolatedRoot(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.kdl"))
	assert.Error(t, err)
}

func TestLoadWithRoot_ParseErrors(t *testing.T) {
	t.Run("kdl", func(t *testing.T) {
		root, _ := isolatedRoot(t)
		writeConfig(t, root, KDLFileName, "search {\n")
		_, err := LoadWithRoot("", root)
		assert.Error(t, err)
	})
	t.Run("toml", func(t *testing.T) {
		root, _ := isolatedRoot(t)
		writeConfig(t, root, TOMLFileName, "[search\n")
		_, err := LoadWithRoot("", root)
		assert.Error(t, err)
	})
	t.Run("toml size", func(t *testing.T) {
		root, _ := isolatedRoot(t)
		writeConfig(t, root, TOMLFileName, "[search]\nmax_file_size = \"lots\"\n")
		_, err := LoadWithRoot("", root)
		assert.Error(t, err)
	})
}

func TestLoadWithRoot_BrokenGlobalIsIgnored(t *testing.T) {
	root, home := isolatedRoot(t)
	writeConfig(t, home, KDLFileName, "search {\n")

	cfg, err := LoadWithRoot("", root)
	require.NoError(t, err)
	assert.Equal(t, root, cfg.Project.Root)
}

func TestLoadWithRoot_DetectsBuildOutput(t *testing.T) {
	root, _ := isolatedRoot(t)
	writeConfig(t, root, "tsconfig.json", `{"compilerOptions": {"outDir": "./out/"}}`)
	writeConfig(t, root, KDLFileName, "search {\n    exclude \"out\" \"tmp\"\n}\n")

	cfg, err := LoadWithRoot("", root)
	require.NoError(t, err)
	assert.Equal(t, []string{"out", "tmp"}, cfg.Search.Exclude)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"100", 100, false},
		{"100B", 100, false},
		{"10KB", 10 * 1024, false},
		{"1mb", 1024 * 1024, false},
		{" 2 MB ", 2 * 1024 * 1024, false},
		{"1GB", 1024 * 1024 * 1024, false},
		{"big", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
