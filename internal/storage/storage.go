// Package storage is the on-device key/value store that holds an account's
// state between runs. Values are JSON blobs; keys are slash-separated so a
// whole account or subtree can be listed or dropped by prefix.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound       = errors.New("key not found")
	ErrNotInitialized = errors.New("storage not initialized, run 'habitat init' first")
)

type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	// List returns every key/value pair whose key starts with prefix.
	List(prefix string) (map[string][]byte, error)
	DeletePrefix(prefix string) error

	GetPath() string
}

// New picks the backend from the path: a .json file selects JSONStore,
// anything else SQLite.
func New(path string) Provider {
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		return NewJSONStore(path)
	}
	return NewSQLiteStore(path)
}

func GetJSON(p Provider, key string, v any) error {
	b, err := p.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func PutJSON(p Provider, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return p.Put(key, b)
}
