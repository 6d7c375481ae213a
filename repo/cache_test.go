package repo

import (
	"reflect"
	"testing"
	"time"

	"github.com/opamgo/fsolver"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenCache(t.TempDir())
	if err != nil {
		t.Fatalf("OpenCache errored: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("Close errored: %v", err)
		}
	})
	return c
}

func TestCacheRoundTrip(t *testing.T) {
	c := openTestCache(t)

	decls := []fsolver.PackageDecl{
		{Name: "A", Version: "1.0.0", Depends: `"B" {>= "1.0.0"}`},
		{Name: "B", Version: "1.0.0"},
	}
	if err := c.StoreRepo("/some/repo", decls, time.Now()); err != nil {
		t.Fatalf("StoreRepo errored: %v", err)
	}

	got, ok, err := c.LoadRepo("/some/repo", time.Hour)
	if err != nil {
		t.Fatalf("LoadRepo errored: %v", err)
	}
	if !ok {
		t.Fatal("LoadRepo found no fresh entry")
	}
	if !reflect.DeepEqual(got, decls) {
		t.Errorf("LoadRepo yielded %v, wanted %v", got, decls)
	}

	// Re-storing replaces the whole entry rather than merging.
	if err := c.StoreRepo("/some/repo", decls[:1], time.Now()); err != nil {
		t.Fatalf("StoreRepo errored: %v", err)
	}
	got, ok, err = c.LoadRepo("/some/repo", time.Hour)
	if err != nil || !ok {
		t.Fatalf("LoadRepo after rewrite = (%v, %v, %v)", got, ok, err)
	}
	if len(got) != 1 || got[0].Name != "A" {
		t.Errorf("LoadRepo after rewrite yielded %v, wanted just A", got)
	}
}

func TestCacheMiss(t *testing.T) {
	c := openTestCache(t)

	if _, ok, err := c.LoadRepo("/never/stored", time.Hour); err != nil || ok {
		t.Errorf("LoadRepo on an empty cache = (ok=%v, err=%v), wanted a clean miss", ok, err)
	}
}

func TestCacheStaleness(t *testing.T) {
	c := openTestCache(t)

	decls := []fsolver.PackageDecl{{Name: "A", Version: "1.0.0"}}
	stale := time.Now().Add(-2 * time.Hour)
	if err := c.StoreRepo("/stale/repo", decls, stale); err != nil {
		t.Fatalf("StoreRepo errored: %v", err)
	}

	if _, ok, err := c.LoadRepo("/stale/repo", time.Hour); err != nil || ok {
		t.Errorf("LoadRepo returned a stale entry (ok=%v, err=%v)", ok, err)
	}
	if _, ok, err := c.LoadRepo("/stale/repo", 3*time.Hour); err != nil || !ok {
		t.Errorf("LoadRepo missed an entry inside the age window (ok=%v, err=%v)", ok, err)
	}
}

func TestCacheKeysByAbsolutePath(t *testing.T) {
	c := openTestCache(t)

	decls := []fsolver.PackageDecl{{Name: "A", Version: "1.0.0"}}
	if err := c.StoreRepo("/one/repo", decls, time.Now()); err != nil {
		t.Fatalf("StoreRepo errored: %v", err)
	}
	if _, ok, err := c.LoadRepo("/other/repo", time.Hour); err != nil || ok {
		t.Errorf("LoadRepo crossed repository paths (ok=%v, err=%v)", ok, err)
	}
}

func TestLoadWithCacheSkipsRescan(t *testing.T) {
	c := openTestCache(t)
	dir := t.TempDir()
	writeMetadata(t, dir, "A/1", `{"name": "A", "version": "1.0.0"}`)

	u, problems, err := LoadWithCache(dir, c, time.Hour)
	if err != nil || len(problems) != 0 {
		t.Fatalf("LoadWithCache = (%v, %v)", problems, err)
	}
	if !u.HasPackage("A") {
		t.Fatal("first load missed A")
	}

	// The next load must be served from the cache: changes on disk are
	// invisible until the entry ages out.
	writeMetadata(t, dir, "B/1", `{"name": "B", "version": "1.0.0"}`)
	u, _, err = LoadWithCache(dir, c, time.Hour)
	if err != nil {
		t.Fatalf("LoadWithCache errored: %v", err)
	}
	if u.HasPackage("B") {
		t.Error("cached load picked up a change on disk")
	}

	// With a zero age window the cache is always stale and the walk runs.
	u, _, err = LoadWithCache(dir, c, 0)
	if err != nil {
		t.Fatalf("LoadWithCache errored: %v", err)
	}
	if !u.HasPackage("B") {
		t.Error("forced rescan still served the stale entry")
	}
}
