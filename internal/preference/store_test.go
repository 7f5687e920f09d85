package preference

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyview/internal/types"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.Load(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, "a", types.LanguageTurkish))

	lang, ok, err := s.Load(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.LanguageTurkish, lang)

	_, ok, _ = s.Load(ctx, "b")
	assert.False(t, ok, "preferences are per client")
}

func TestFileStore_MissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "nested", "prefs.json"), "preferredLanguage")

	lang, ok, err := s.Load(context.Background(), "local")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, lang)
}

func TestFileStore_SurvivesReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "prefs.json")

	first := NewFileStore(path, "preferredLanguage")
	require.NoError(t, first.Save(ctx, "local", types.LanguageEnglish))
	require.NoError(t, first.Save(ctx, "local", types.LanguageTurkish))

	// A new store over the same file stands in for a restarted process.
	second := NewFileStore(path, "preferredLanguage")
	lang, ok, err := second.Load(ctx, "local")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.LanguageTurkish, lang)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"preferredLanguage": "tr"`)
}

func TestFileStore_KeepsOtherClients(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "prefs.json"), "preferredLanguage")

	require.NoError(t, s.Save(ctx, "a", types.LanguageTurkish))
	require.NoError(t, s.Save(ctx, "b", types.LanguageEnglish))

	a, _, _ := s.Load(ctx, "a")
	b, _, _ := s.Load(ctx, "b")
	assert.Equal(t, types.LanguageTurkish, a)
	assert.Equal(t, types.LanguageEnglish, b)
}

func TestFileStore_ReturnsUnknownValuesAsStored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"local":{"preferredLanguage":"de"}}`), 0o600))

	lang, ok, err := NewFileStore(path, "preferredLanguage").Load(context.Background(), "local")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.Language("de"), lang)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	_, _, err := NewFileStore(path, "preferredLanguage").Load(context.Background(), "local")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalPreferenceStore, appErr.Code)
}

func TestFileStore_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "prefs.json"), "preferredLanguage")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lang := types.LanguageEnglish
			if i%2 == 0 {
				lang = types.LanguageTurkish
			}
			assert.NoError(t, s.Save(ctx, "local", lang))
		}(i)
	}
	wg.Wait()

	lang, ok, err := s.Load(ctx, "local")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, lang.Valid())
}
