package disk

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestCachePutGet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	key := "file:/run/CASE.UNRST:1234:88"
	content := []byte("raw span bytes")

	if err := c.Put(key, content); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("Get() content = %q, want %q", got, content)
	}

	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	path := filepath.Join(dir, name[:defaultShardPrefixLen], name)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected cache file at %s: %v", path, err)
	}
}

func TestCacheGetMiss(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := c.Get("absent"); ok {
		t.Fatal("Get() ok = true for missing key")
	}
}

func TestCachePutIdempotent(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Put("k", []byte("first")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := c.Put("k", []byte("second")); err != nil {
		t.Fatalf("second Put() error = %v", err)
	}
	got, ok := c.Get("k")
	if !ok || !bytes.Equal(got, []byte("first")) {
		t.Fatalf("Get() = %q, %v, want first write kept", got, ok)
	}
}

func TestCacheNoSharding(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir, WithShardPrefixLen(0))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Put("k", []byte("v")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	sum := sha256.Sum256([]byte("k"))
	path := filepath.Join(dir, hex.EncodeToString(sum[:]))
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected unsharded cache file at %s: %v", path, err)
	}
}

func TestCacheEmptyDir(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New(\"\") error = nil, want error")
	}
}

func TestCacheSizeAndPrune(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Put("a", bytes.Repeat([]byte{1}, 100)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := c.Put("b", bytes.Repeat([]byte{2}, 100)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	size, err := c.SizeBytes()
	if err != nil {
		t.Fatalf("SizeBytes() error = %v", err)
	}
	if size != 200 {
		t.Fatalf("SizeBytes() = %d, want 200", size)
	}

	freed, err := c.Prune(100)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if freed != 100 {
		t.Fatalf("Prune() freed = %d, want 100", freed)
	}

	size, err = c.SizeBytes()
	if err != nil {
		t.Fatalf("SizeBytes() error = %v", err)
	}
	if size != 100 {
		t.Fatalf("SizeBytes() after prune = %d, want 100", size)
	}
}
