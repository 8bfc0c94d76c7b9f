package myq

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// TokenStore is the interface for persisting OAuth tokens between runs.
// A client with a token store resumes from the stored refresh token on
// startup instead of replaying the full login flow.
type TokenStore interface {
	SaveTokens(ctx context.Context, tokens *TokenResponse) error
	LoadTokens(ctx context.Context) (*TokenResponse, error)
	Delete(ctx context.Context) error
}

// FileTokenStore persists tokens to a JSON file. The file is written with
// 0600 permissions since it contains a live refresh token.
type FileTokenStore struct {
	filepath string
	mu       sync.RWMutex
}

// NewFileTokenStore creates a token store backed by the given file path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{filepath: path}
}

// SaveTokens writes the tokens to the file.
func (f *FileTokenStore) SaveTokens(ctx context.Context, tokens *TokenResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}

	dir := filepath.Dir(f.filepath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	if err := os.WriteFile(f.filepath, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// LoadTokens reads the tokens from the file.
func (f *FileTokenStore) LoadTokens(ctx context.Context) (*TokenResponse, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("token file not found: %w", err)
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var tokens TokenResponse
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return &tokens, nil
}

// Delete removes the token file.
func (f *FileTokenStore) Delete(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.filepath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete token file: %w", err)
	}
	return nil
}

// MemoryTokenStore stores tokens in memory (useful for testing).
type MemoryTokenStore struct {
	tokens *TokenResponse
	mu     sync.RWMutex
}

// NewMemoryTokenStore creates a new in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// SaveTokens saves tokens to memory.
func (m *MemoryTokenStore) SaveTokens(ctx context.Context, tokens *TokenResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *tokens
	m.tokens = &copied
	return nil
}

// LoadTokens loads tokens from memory.
func (m *MemoryTokenStore) LoadTokens(ctx context.Context) (*TokenResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.tokens == nil {
		return nil, fmt.Errorf("no tokens stored")
	}
	copied := *m.tokens
	return &copied, nil
}

// Delete removes stored tokens.
func (m *MemoryTokenStore) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = nil
	return nil
}
