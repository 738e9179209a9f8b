package diagnostics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry/internal/types"
)

func TestSiblingAssemblyFilePaths(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "drain")
	writeFile(t, exe, 0o755)
	writeFile(t, filepath.Join(dir, "helper"), 0o755)
	writeFile(t, filepath.Join(dir, "libzstd.so"), 0o644)
	writeFile(t, filepath.Join(dir, "native.DLL"), 0o644)
	writeFile(t, filepath.Join(dir, "config.env"), 0o644)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "bin.so"), 0o755))

	paths, err := SiblingAssemblyFilePaths(exe)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "helper"),
		filepath.Join(dir, "libzstd.so"),
		filepath.Join(dir, "native.DLL"),
	}, paths)
}

func TestSiblingAssemblyFilePaths_MissingDir(t *testing.T) {
	_, err := SiblingAssemblyFilePaths(filepath.Join(t.TempDir(), "gone", "agent"))
	assert.Error(t, err)
}

func TestDescribeAssembly_ShellScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.sh")
	writeFile(t, path, 0o755)

	d := DescribeAssembly(path)
	assert.Equal(t, "run.sh", d.Name)
	assert.Equal(t, path, d.FilePath)
	assert.Equal(t, types.AssemblyVersion{}, d.Version)
	assert.Empty(t, d.FrameworkVersion)
}

func TestDescribeAssembly_GoBinary(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)

	d := DescribeAssembly(exe)
	assert.Contains(t, d.FrameworkVersion, "go")
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in   string
		want types.AssemblyVersion
	}{
		{"v1.2.3", types.AssemblyVersion{Major: 1, Minor: 2, Build: 3}},
		{"1.2.3.4", types.AssemblyVersion{Major: 1, Minor: 2, Build: 3, Revision: 4}},
		{".5.16", types.AssemblyVersion{Major: 5, Minor: 16}},
		{"v0.4.1-0.20240101120000-abcdef123456", types.AssemblyVersion{Minor: 4, Build: 1}},
		{"v2.0.0+incompatible", types.AssemblyVersion{Major: 2}},
		{"(devel)", types.AssemblyVersion{}},
		{"", types.AssemblyVersion{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseVersion(tt.in), tt.in)
	}
}
