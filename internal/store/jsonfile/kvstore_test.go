package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hay-kot/storefront/internal/core/kv"
	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *KVStore {
	t.Helper()
	return NewKVStore(filepath.Join(t.TempDir(), "storage.json"), zerolog.Nop())
}

func TestKVStore_SetAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, kv.KeyAuthToken, "tok"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	entry, err := store.Get(ctx, kv.KeyAuthToken)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if entry.Key != kv.KeyAuthToken {
		t.Errorf("Key = %q, want %q", entry.Key, kv.KeyAuthToken)
	}
	if entry.Value != "tok" {
		t.Errorf("Value = %q, want %q", entry.Value, "tok")
	}
	if entry.CreatedAt.IsZero() || entry.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}
}

func TestKVStore_GetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "nonexistent")
	if !errors.Is(err, kv.ErrKeyNotFound) {
		t.Errorf("Get error = %v, want ErrKeyNotFound", err)
	}
}

func TestKVStore_UpdatePreservesCreatedAt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "key", "value1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	entry1, _ := store.Get(ctx, "key")
	time.Sleep(10 * time.Millisecond)

	if err := store.Set(ctx, "key", "value2"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	entry2, _ := store.Get(ctx, "key")

	if entry2.Value != "value2" {
		t.Errorf("Value = %q, want %q", entry2.Value, "value2")
	}
	if !entry2.CreatedAt.Equal(entry1.CreatedAt) {
		t.Errorf("CreatedAt changed: %v -> %v", entry1.CreatedAt, entry2.CreatedAt)
	}
	if !entry2.UpdatedAt.After(entry1.UpdatedAt) {
		t.Errorf("UpdatedAt should advance: %v <= %v", entry2.UpdatedAt, entry1.UpdatedAt)
	}
}

func TestKVStore_List(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.Set(ctx, "shop:cart", "[]")
	_ = store.Set(ctx, "shop:sel", "[]")
	_ = store.Set(ctx, "other", "x")

	entries, err := store.List(ctx, "shop:")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("List returned %d entries, want 2", len(entries))
	}

	all, _ := store.List(ctx, "")
	if len(all) != 3 {
		t.Errorf("List all returned %d entries, want 3", len(all))
	}
}

func TestKVStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.Set(ctx, "key", "value")

	if err := store.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := store.Get(ctx, "key"); !errors.Is(err, kv.ErrKeyNotFound) {
		t.Errorf("Get after delete error = %v, want ErrKeyNotFound", err)
	}

	if err := store.Delete(ctx, "key"); !errors.Is(err, kv.ErrKeyNotFound) {
		t.Errorf("second Delete error = %v, want ErrKeyNotFound", err)
	}
}

func TestKVStore_SeparateInstancesShareFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	a := NewKVStore(path, zerolog.Nop())
	b := NewKVStore(path, zerolog.Nop())
	ctx := context.Background()

	if err := a.Set(ctx, kv.KeyCart, `[{"id":1}]`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	entry, err := b.Get(ctx, kv.KeyCart)
	if err != nil {
		t.Fatalf("Get from second instance failed: %v", err)
	}
	if entry.Value != `[{"id":1}]` {
		t.Errorf("Value = %q", entry.Value)
	}
}

func TestKVStore_ConcurrentAccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const goroutines = 10
	const iterations = 20

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				key := fmt.Sprintf("key-%d-%d", id, j)
				if err := store.Set(ctx, key, "value"); err != nil {
					t.Errorf("Set failed: %v", err)
					return
				}
				if _, err := store.Get(ctx, key); err != nil {
					t.Errorf("Get failed: %v", err)
					return
				}
			}
		}(i)
	}

	wg.Wait()

	entries, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("Final List failed: %v", err)
	}
	if len(entries) != goroutines*iterations {
		t.Errorf("Expected %d entries, got %d", goroutines*iterations, len(entries))
	}
}

func TestKVStore_CorruptedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	if err := os.WriteFile(path, []byte("{invalid json"), 0o644); err != nil {
		t.Fatalf("Failed to write corrupted file: %v", err)
	}

	store := NewKVStore(path, zerolog.Nop())
	ctx := context.Background()

	_, err := store.Get(ctx, "any")
	if !errors.Is(err, kv.ErrCorrupt) {
		t.Fatalf("Get error = %v, want ErrCorrupt", err)
	}

	// A write recovers by moving the damaged file aside.
	if err := store.Set(ctx, "key", "value"); err != nil {
		t.Fatalf("Set after corruption failed: %v", err)
	}

	entry, err := store.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get after recovery failed: %v", err)
	}
	if entry.Value != "value" {
		t.Errorf("Value = %q, want %q", entry.Value, "value")
	}

	backup, err := os.ReadFile(path + ".corrupt")
	if err != nil {
		t.Fatalf("backup file missing: %v", err)
	}
	if string(backup) != "{invalid json" {
		t.Errorf("backup content = %q", backup)
	}
}
