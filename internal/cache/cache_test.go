package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/verifact/internal/model"
)

func TestKey_Namespaced(t *testing.T) {
	a := Key("embed", "hashing", "en", "vaccine x")
	b := Key("page", "hashing", "en", "vaccine x")
	if a == b {
		t.Error("Expected different namespaces to produce different keys")
	}
	if Key("embed", "ab", "c") == Key("embed", "a", "bc") {
		t.Error("Expected part boundaries to matter")
	}
	if Key("embed", "x") != Key("embed", "x") {
		t.Error("Expected keys to be deterministic")
	}
}

func TestMemoryCache_GetSet(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Expected miss for unknown key")
	}

	value := []byte("hello")
	if err := c.Set("k", value, 0); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	value[0] = 'j'

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("Expected hit")
	}
	if string(got) != "hello" {
		t.Errorf("Expected stored copy 'hello', got %q", got)
	}

	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("Expected miss after delete")
	}
}

func TestDiskCache_Expiry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	key := Key("page", "https://example.com")

	if err := c.Set(key, []byte("body"), time.Millisecond); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get(key); ok {
		t.Error("Expected expired entry to miss")
	}
	if _, err := os.Stat(c.path(key)); !os.IsNotExist(err) {
		t.Errorf("Expected expired file to be removed, stat err = %v", err)
	}
}

func TestDiskCache_CorruptFileIsMiss(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	key := Key("page", "x")

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get(key); ok {
		t.Error("Expected corrupt entry to miss")
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	key := Key("embed", "claim")

	disk := NewDiskCache(dir, time.Hour)
	if err := disk.Set(key, []byte("vec"), 0); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	mem := NewMemoryCache(time.Hour, time.Minute)
	layered := &LayeredCache{memory: mem, disk: disk}

	got, ok := layered.Get(key)
	if !ok || string(got) != "vec" {
		t.Fatalf("Expected disk hit 'vec', got %q (%v)", got, ok)
	}
	if _, ok := mem.Get(key); !ok {
		t.Error("Expected disk hit to be promoted to memory")
	}
}

func TestNew_Disabled(t *testing.T) {
	c := New(model.CacheConfig{Enabled: false})
	_ = c.Set("k", []byte("v"), 0)
	if _, ok := c.Get("k"); ok {
		t.Error("Expected disabled cache to never hit")
	}
}
