package driver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestDiskCacheRoundTrip(t *testing.T) {
	cache, err := OpenDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := Digest{1, 2, 3}

	var miss CachePayload
	if ok, err := cache.Get(key, &miss); ok || err != nil {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}

	in := CachePayload{Func: "main", Target: "gfx9/wave64/default/backend15", IR: "define void @main()", Waterfalls: 2, Accesses: 5}
	if err := cache.Put(key, &in); err != nil {
		t.Fatalf("Put: %v", err)
	}
	var out CachePayload
	ok, err := cache.Get(key, &out)
	if !ok || err != nil {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if out != in {
		t.Fatalf("payload = %+v, want %+v", out, in)
	}

	left, _ := filepath.Glob(filepath.Join(cache.dir, "funcs", "tmp-*"))
	if len(left) != 0 {
		t.Fatalf("temporary files left behind: %v", left)
	}
}

func TestDiskCacheSchemaMismatch(t *testing.T) {
	cache, err := OpenDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := Digest{9}
	if err := cache.Put(key, &CachePayload{Func: "f"}); err != nil {
		t.Fatal(err)
	}

	// rewrite the entry as if produced by another schema
	stale := &CachePayload{Schema: cacheSchemaVersion + 1, Func: "f"}
	data, err := msgpack.Marshal(stale)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cache.pathFor(key), data, 0o644); err != nil {
		t.Fatal(err)
	}

	var out CachePayload
	if ok, err := cache.Get(key, &out); ok || err != nil {
		t.Fatalf("stale entry: ok=%v err=%v", ok, err)
	}
}

func TestDiskCacheCorrupt(t *testing.T) {
	cache, err := OpenDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := Digest{7}
	p := cache.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte{0xc1}, 0o644); err != nil {
		t.Fatal(err)
	}
	var out CachePayload
	if ok, err := cache.Get(key, &out); ok || err == nil {
		t.Fatalf("corrupt entry: ok=%v err=%v", ok, err)
	}
}

func TestNilDiskCache(t *testing.T) {
	var cache *DiskCache
	if err := cache.Put(Digest{}, &CachePayload{}); err != nil {
		t.Fatal(err)
	}
	if ok, err := cache.Get(Digest{}, &CachePayload{}); ok || err != nil {
		t.Fatalf("nil Get: %v %v", ok, err)
	}
	if err := cache.DropAll(); err != nil {
		t.Fatal(err)
	}
}
