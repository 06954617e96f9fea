package storage

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const jsonStoreVersion = 1

type jsonFile struct {
	Version int                        `json:"version"`
	Entries map[string]json.RawMessage `json:"entries"`
}

// JSONStore keeps every key in one human-readable file. Each write
// rewrites the file through a temp file and rename.
type JSONStore struct {
	path    string
	mu      sync.Mutex
	entries map[string][]byte
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

func (s *JSONStore) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if _, err := os.Stat(s.path); err == nil {
		return s.load()
	}
	s.entries = make(map[string][]byte)
	return s.save()
}

func (s *JSONStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries != nil {
		return nil
	}
	return s.load()
}

func (s *JSONStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotInitialized
		}
		return fmt.Errorf("failed to read storage: %w", err)
	}

	var f jsonFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse storage: %w", err)
	}
	if f.Version > jsonStoreVersion {
		return fmt.Errorf("storage file version (%d) is newer than supported version (%d) - please upgrade habitat", f.Version, jsonStoreVersion)
	}

	s.entries = make(map[string][]byte, len(f.Entries))
	for k, v := range f.Entries {
		s.entries[k] = decodeValue(v)
	}
	return nil
}

func (s *JSONStore) save() error {
	f := jsonFile{Version: jsonStoreVersion, Entries: make(map[string]json.RawMessage, len(s.entries))}
	for k, v := range s.entries {
		f.Entries[k] = encodeValue(v)
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write storage: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace storage: %w", err)
	}
	return nil
}

// Values are embedded as JSON when they are JSON, which is every value
// habitat writes; anything else is wrapped as {"$base64": "..."}.
type binaryValue struct {
	Base64 string `json:"$base64"`
}

func encodeValue(v []byte) json.RawMessage {
	if json.Valid(v) {
		return json.RawMessage(v)
	}
	b, _ := json.Marshal(binaryValue{Base64: base64.StdEncoding.EncodeToString(v)})
	return b
}

func decodeValue(raw json.RawMessage) []byte {
	var bin binaryValue
	if err := json.Unmarshal(raw, &bin); err == nil && bin.Base64 != "" {
		if b, err := base64.StdEncoding.DecodeString(bin.Base64); err == nil {
			return b
		}
	}
	return []byte(raw)
}

func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) GetPath() string {
	return s.path
}

func (s *JSONStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		return nil, ErrNotInitialized
	}
	v, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *JSONStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		return ErrNotInitialized
	}
	s.entries[key] = append([]byte(nil), value...)
	return s.save()
}

func (s *JSONStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		return ErrNotInitialized
	}
	if _, ok := s.entries[key]; !ok {
		return nil
	}
	delete(s.entries, key)
	return s.save()
}

func (s *JSONStore) List(prefix string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		return nil, ErrNotInitialized
	}
	out := make(map[string][]byte)
	for k, v := range s.entries {
		if strings.HasPrefix(k, prefix) {
			out[k] = append([]byte(nil), v...)
		}
	}
	return out, nil
}

func (s *JSONStore) DeletePrefix(prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		return ErrNotInitialized
	}
	before := len(s.entries)
	maps.DeleteFunc(s.entries, func(k string, _ []byte) bool { return strings.HasPrefix(k, prefix) })
	if len(s.entries) == before {
		return nil
	}
	return s.save()
}
