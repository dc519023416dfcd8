package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_DefaultDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot determine home directory")
	}

	store, err := NewConfigStore("")

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(home, ".knowledge-engine", "config.toml"), store.Path())
}

func TestConfigStore_LoadsEngineTables(t *testing.T) {
	tmpDir := t.TempDir()
	content := `workspace = "legal"

[index]
backend = "postgres"
postgres_dsn = "postgres://localhost:5432/knowledge"

[openai]
api_key = "sk-test"
requests_per_minute = 30

[limits]
max_entities_per_workspace = 2500
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "legal", store.GetString("workspace"))
	assert.Equal(t, "postgres", store.GetString("index.backend"))
	assert.Equal(t, "postgres://localhost:5432/knowledge", store.GetString("index.postgres_dsn"))
	assert.Equal(t, "sk-test", store.GetString("openai.api_key"))
	assert.Equal(t, 30, store.GetInt("openai.requests_per_minute"))
	assert.Equal(t, 2500, store.GetInt("limits.max_entities_per_workspace"))
}

func TestConfigStore_MissingSettingsDefaultToZeroValues(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	// An empty config means: sqlite backend, no composer, default limits.
	assert.Equal(t, "", store.GetString("index.backend"))
	assert.Equal(t, "", store.GetString("openai.api_key"))
	assert.Equal(t, 0, store.GetInt("limits.max_entities_per_workspace"))
	assert.False(t, store.GetBool("index.verbose"))

	val, ok := store.Get("index.backend")
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestConfigStore_TypeMismatchDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("openai.requests_per_minute", "sixty"))
	require.NoError(t, store.Set("index.backend", 3))

	assert.Equal(t, 0, store.GetInt("openai.requests_per_minute"))
	assert.Equal(t, "", store.GetString("index.backend"))
	assert.False(t, store.GetBool("openai.requests_per_minute"))
}

func TestConfigStore_SetPersistsAsTables(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("index.backend", "postgres"))
	require.NoError(t, store.Set("openai.api_key", "sk-test"))

	// Dotted keys round-trip as TOML tables, not quoted composite keys.
	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[index]")
	assert.Contains(t, string(raw), "backend = 'postgres'")
	assert.NotContains(t, string(raw), "'index.backend'")

	reloaded, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "postgres", reloaded.GetString("index.backend"))
	assert.Equal(t, "sk-test", reloaded.GetString("openai.api_key"))
}

func TestConfigStore_OverwriteBackend(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("index.backend", "sqlite"))
	assert.Equal(t, "sqlite", store.GetString("index.backend"))

	require.NoError(t, store.Set("index.backend", "postgres"))
	assert.Equal(t, "postgres", store.GetString("index.backend"))
}

func TestConfigStore_FilePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	// The file may carry the OpenAI key, so it must stay owner-only.
	require.NoError(t, store.Set("openai.api_key", "sk-secret"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_CommentOnlyFile(t *testing.T) {
	tmpDir := t.TempDir()
	content := "# knowledge engine configuration\n\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	val, ok := store.Get("index.backend")
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestNewConfigStore_CorruptedFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("[index\nbackend ="), 0600))

	store, err := NewConfigStore(tmpDir)

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestConfigStore_ReloadPicksUpExternalEdit(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, store.Set("index.backend", "sqlite"))

	// Simulate an operator editing the file by hand.
	content := "[index]\nbackend = \"postgres\"\n"
	require.NoError(t, os.WriteFile(store.Path(), []byte(content), 0600))

	require.NoError(t, store.Load())
	assert.Equal(t, "postgres", store.GetString("index.backend"))
}

func TestConfigStore_SaveExplicit(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	store.mu.Lock()
	store.data["limits.max_entities_per_workspace"] = int64(500)
	store.mu.Unlock()

	require.NoError(t, store.Save())

	reloaded, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 500, reloaded.GetInt("limits.max_entities_per_workspace"))
}

func TestConfigStore_ConcurrentAccess(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			_ = store.Set("openai.requests_per_minute", id)
			_ = store.GetInt("openai.requests_per_minute")
			_ = store.GetString("index.backend")
			_, _ = store.Get("openai.api_key")
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
