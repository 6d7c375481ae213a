package repo

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/nightlyone/lockfile"
	"github.com/pkg/errors"

	"github.com/opamgo/fsolver"
)

// Cache is a persistent store of scanned repository metadata, backed by a
// BoltDB file. One top-level bucket per repository path holds a timestamp
// key plus one key per package version:
//
//	Bucket: "<abs repo path>"
//	Key: "ts" -> big-endian unix seconds of the scan
//	Key: "<name>\x00<version>" -> depends formula text
//
// The cache directory is guarded by a lock file so concurrent fsolver
// processes don't race on the database.
type Cache struct {
	db *bolt.DB
	lf lockfile.Lockfile
}

var tsKey = []byte("ts")

// OpenCache opens (creating if needed) the metadata cache under dir.
func OpenCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0777); err != nil {
		return nil, errors.Wrapf(err, "failed to create cache directory %s", dir)
	}

	lockPath, err := filepath.Abs(filepath.Join(dir, "cache.lock"))
	if err != nil {
		return nil, err
	}
	lf, err := lockfile.New(lockPath)
	if err != nil {
		return nil, errors.Wrap(err, "preparing cache lock")
	}
	if err := lf.TryLock(); err != nil {
		return nil, errors.Wrapf(err, "cache directory %s is locked by another process", dir)
	}

	db, err := bolt.Open(filepath.Join(dir, "metadata.db"), 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		_ = lf.Unlock()
		return nil, errors.Wrap(err, "opening metadata cache")
	}

	return &Cache{db: db, lf: lf}, nil
}

// Close releases the database and the directory lock. Must not be called
// concurrently with any other method.
func (c *Cache) Close() error {
	err := c.db.Close()
	if uerr := c.lf.Unlock(); err == nil {
		err = uerr
	}
	return err
}

// StoreRepo replaces the cached declarations for a repository path.
func (c *Cache) StoreRepo(repoPath string, decls []fsolver.PackageDecl, ts time.Time) error {
	key, err := repoKey(repoPath)
	if err != nil {
		return err
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(key) != nil {
			if err := tx.DeleteBucket(key); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(key)
		if err != nil {
			return err
		}

		var tsv [8]byte
		binary.BigEndian.PutUint64(tsv[:], uint64(ts.Unix()))
		if err := b.Put(tsKey, tsv[:]); err != nil {
			return err
		}

		for _, d := range decls {
			k := append(append([]byte(d.Name), 0), []byte(d.Version)...)
			if err := b.Put(k, []byte(d.Depends)); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadRepo returns the cached declarations for a repository path, if an
// entry exists and is younger than maxAge.
func (c *Cache) LoadRepo(repoPath string, maxAge time.Duration) ([]fsolver.PackageDecl, bool, error) {
	key, err := repoKey(repoPath)
	if err != nil {
		return nil, false, err
	}

	var decls []fsolver.PackageDecl
	found := false

	err = c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(key)
		if b == nil {
			return nil
		}

		tsv := b.Get(tsKey)
		if len(tsv) != 8 {
			return nil
		}
		stored := time.Unix(int64(binary.BigEndian.Uint64(tsv)), 0)
		if time.Since(stored) > maxAge {
			return nil
		}

		found = true
		return b.ForEach(func(k, v []byte) error {
			if bytes.Equal(k, tsKey) {
				return nil
			}
			sep := bytes.IndexByte(k, 0)
			if sep < 0 {
				return errors.Errorf("corrupt cache key %q", k)
			}
			decls = append(decls, fsolver.PackageDecl{
				Name:    string(k[:sep]),
				Version: string(k[sep+1:]),
				Depends: string(v),
			})
			return nil
		})
	})
	if err != nil {
		return nil, false, err
	}
	return decls, found, nil
}

func repoKey(repoPath string) ([]byte, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}
	return []byte(abs), nil
}
