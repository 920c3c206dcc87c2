package scripts

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("scripts", 0755))
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, "scripts/"+name, []byte(content), 0644))
	}
	return fs
}

func TestRegistry_LoadAndGet(t *testing.T) {
	fs := newTestFs(t, map[string]string{
		"deploy.tengo": `output := "deploying"`,
		"notes.txt":    "not a script",
	})
	registry := NewRegistry(fs, "scripts")
	require.NoError(t, registry.Load())

	s, ok := registry.Get("deploy")
	require.True(t, ok)
	assert.Equal(t, "deploy", s.Name)
	assert.Equal(t, `output := "deploying"`, s.Content)
	assert.NotEmpty(t, s.Checksum)

	_, ok = registry.Get("notes")
	assert.False(t, ok, "non-script files are ignored")
}

func TestRegistry_LoadMissingDirectoryIsEmpty(t *testing.T) {
	registry := NewRegistry(afero.NewMemMapFs(), "does-not-exist")
	require.NoError(t, registry.Load())
	assert.Empty(t, registry.List())
}

func TestRegistry_ListIsSortedMetadata(t *testing.T) {
	fs := newTestFs(t, map[string]string{
		"zeta.tengo":  `output := 1`,
		"alpha.tengo": `output := 2`,
	})
	registry := NewRegistry(fs, "scripts")
	require.NoError(t, registry.Load())

	list := registry.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "zeta", list[1].Name)
	assert.Equal(t, len(`output := 2`), list[0].Size)
}

func TestRegistry_ReloadPicksUpChanges(t *testing.T) {
	fs := newTestFs(t, map[string]string{
		"deploy.tengo": `output := "v1"`,
	})
	registry := NewRegistry(fs, "scripts")
	require.NoError(t, registry.Load())

	require.NoError(t, afero.WriteFile(fs, "scripts/deploy.tengo", []byte(`output := "v2"`), 0644))
	require.NoError(t, registry.Reload("deploy"))

	s, ok := registry.Get("deploy")
	require.True(t, ok)
	assert.Equal(t, `output := "v2"`, s.Content)
}

func TestRegistry_ReloadDropsDeletedScript(t *testing.T) {
	fs := newTestFs(t, map[string]string{
		"deploy.tengo": `output := 1`,
	})
	registry := NewRegistry(fs, "scripts")
	require.NoError(t, registry.Load())

	require.NoError(t, fs.Remove("scripts/deploy.tengo"))
	require.NoError(t, registry.Reload("deploy"))

	_, ok := registry.Get("deploy")
	assert.False(t, ok)
}
