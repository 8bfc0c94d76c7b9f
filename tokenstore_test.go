package myq

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "myq", "tokens.json")
	store := NewFileTokenStore(path)
	ctx := context.Background()

	t.Run("load before save fails", func(t *testing.T) {
		if _, err := store.LoadTokens(ctx); err == nil {
			t.Fatal("expected error for missing token file")
		}
	})

	t.Run("round trip", func(t *testing.T) {
		tokens := &TokenResponse{
			AccessToken:  "access",
			RefreshToken: "refresh",
			TokenType:    "Bearer",
			ExpiresIn:    3600,
			Scope:        "MyQ_Residential offline_access",
		}
		if err := store.SaveTokens(ctx, tokens); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		loaded, err := store.LoadTokens(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if loaded.RefreshToken != "refresh" || loaded.AccessToken != "access" {
			t.Errorf("loaded = %+v", loaded)
		}
	})

	t.Run("file mode restricts access", func(t *testing.T) {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("file mode = %o, want 0600", perm)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := store.Delete(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := store.LoadTokens(ctx); err == nil {
			t.Fatal("expected error after delete")
		}
		// Deleting a missing file is not an error.
		if err := store.Delete(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestMemoryTokenStore(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()

	if _, err := store.LoadTokens(ctx); err == nil {
		t.Fatal("expected error for empty store")
	}

	tokens := &TokenResponse{AccessToken: "a", RefreshToken: "r"}
	if err := store.SaveTokens(ctx, tokens); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := store.LoadTokens(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.AccessToken != "a" {
		t.Errorf("loaded = %+v", loaded)
	}

	// The store hands out copies, not its internal pointer.
	loaded.AccessToken = "mutated"
	again, _ := store.LoadTokens(ctx)
	if again.AccessToken != "a" {
		t.Error("store contents must not be mutable through loaded copies")
	}

	if err := store.Delete(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.LoadTokens(ctx); err == nil {
		t.Fatal("expected error after delete")
	}
}
