package cache

import (
	"bytes"
	"path/filepath"
	"sync"
	"testing"
)

func openCaches(t *testing.T) map[string]TileCache {
	t.Helper()
	db, err := OpenDBTileCache(DriverSqlite, filepath.Join(t.TempDir(), "cache", "tiles.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return map[string]TileCache{
		"memory": NewMemoryTileCache(),
		"sqlite": db,
	}
}

func TestTileCacheRoundTrip(t *testing.T) {
	for name, c := range openCaches(t) {
		t.Run(name, func(t *testing.T) {
			if c.Has("Front_01") {
				t.Fatal("empty cache reports an entry")
			}
			if got := c.Get("Front_01"); got == nil || len(got) != 0 {
				t.Fatalf("expected an empty slice for a missing key, got %v", got)
			}

			blob := []byte{1, 2, 3, 4, 5}
			if !c.Set("Front_01", blob) {
				t.Fatal("set failed")
			}
			if !c.Has("Front_01") {
				t.Fatal("entry not found after set")
			}
			if got := c.Get("Front_01"); !bytes.Equal(got, blob) {
				t.Errorf("expected %v, got %v", blob, got)
			}
			if c.Has("Front_0") {
				t.Error("prefix of a key must not match")
			}
		})
	}
}

func TestTileCacheWritesOnce(t *testing.T) {
	for name, c := range openCaches(t) {
		t.Run(name, func(t *testing.T) {
			c.Set("G1_3_2", []byte("first"))
			c.Set("G1_3_2", []byte("second"))

			if got := string(c.Get("G1_3_2")); got != "first" {
				t.Errorf("existing entry overwritten: %q", got)
			}
		})
	}
}

func TestMemoryTileCacheCopies(t *testing.T) {
	c := NewMemoryTileCache()
	blob := []byte{7, 7, 7}
	c.Set("Top_", blob)
	blob[0] = 0

	got := c.Get("Top_")
	if got[0] != 7 {
		t.Fatal("stored blob aliases the caller's slice")
	}
	got[1] = 0
	if c.Get("Top_")[1] != 7 {
		t.Fatal("returned blob aliases the stored one")
	}
}

func TestMemoryTileCacheConcurrent(t *testing.T) {
	c := NewMemoryTileCache()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := string(rune('a'+i)) + string(rune('a'+j%26))
				c.Set(key, []byte{byte(j)})
				c.Has(key)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() != 8*26 {
		t.Errorf("expected %d entries, got %d", 8*26, c.Len())
	}
}

func TestDBTileCachePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles.db")
	db, err := OpenDBTileCache(DriverSqlite, path)
	if err != nil {
		t.Fatal(err)
	}
	db.Set("Back_3", []byte("payload"))
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenDBTileCache(DriverSqlite, path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	if got := string(reopened.Get("Back_3")); got != "payload" {
		t.Errorf("expected persisted payload, got %q", got)
	}
	if reopened.Len() != 1 {
		t.Errorf("expected 1 row, got %d", reopened.Len())
	}
}

func TestOpenDBTileCacheUnknownDriver(t *testing.T) {
	if _, err := OpenDBTileCache("mysql", "x"); err == nil {
		t.Error("expected an error for an unsupported driver")
	}
}

func TestNopTileCache(t *testing.T) {
	var c TileCache = NopTileCache{}
	c.Set("Left_", []byte{1})
	if c.Has("Left_") || len(c.Get("Left_")) != 0 {
		t.Error("nop cache stored an entry")
	}
}
