package preference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"skyview/internal/types"
)

// FileStore keeps preferences in a JSON document on local disk, keyed first
// by client ID and then by preference key:
//
//	{"local": {"preferredLanguage": "tr"}}
//
// Saves rewrite the whole document through a temp file and rename.
type FileStore struct {
	mu   sync.Mutex
	path string
	key  string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore at path. The file and its directory are
// created on first save.
func NewFileStore(path, key string) *FileStore {
	return &FileStore{path: path, key: key}
}

type document map[string]map[string]string

func (s *FileStore) Load(_ context.Context, clientID string) (types.Language, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return "", false, err
	}
	raw, ok := doc[clientID][s.key]
	return types.Language(raw), ok, nil
}

func (s *FileStore) Save(_ context.Context, clientID string, lang types.Language) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if doc[clientID] == nil {
		doc[clientID] = make(map[string]string)
	}
	doc[clientID][s.key] = string(lang)

	return s.write(doc)
}

func (s *FileStore) read() (document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(document), nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalPreferenceStore, "failed to read preference file", err)
	}
	if len(data) == 0 {
		return make(document), nil
	}

	doc := make(document)
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalPreferenceStore,
			fmt.Sprintf("preference file %s is not valid JSON", s.path), err)
	}
	return doc, nil
}

func (s *FileStore) write(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalPreferenceStore, "failed to encode preferences", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.NewAppError(types.ErrCodeInternalPreferenceStore, "failed to create preference directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".preferences-*.tmp")
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalPreferenceStore, "failed to create temp file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return types.NewAppError(types.ErrCodeInternalPreferenceStore, "failed to write preferences", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return types.NewAppError(types.ErrCodeInternalPreferenceStore, "failed to write preferences", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return types.NewAppError(types.ErrCodeInternalPreferenceStore, "failed to replace preference file", err)
	}
	return nil
}
