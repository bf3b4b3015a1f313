// Package cache keeps fetched MixFile indexes on disk. Indexes are immutable
// once uploaded, so an entry never goes stale; Prune only bounds disk use.
package cache

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
)

const indexBucket = "mixfile_index"

type IndexCache struct {
	db *bolt.DB
}

// Open opens or creates the cache database at path.
func Open(path string) (*IndexCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(indexBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	log.Printf("[cache] index cache opened at %s", path)
	return &IndexCache{db: db}, nil
}

func (c *IndexCache) Close() error {
	return c.db.Close()
}

// Get returns the cached index bytes for url.
func (c *IndexCache) Get(url string) ([]byte, bool) {
	var value []byte
	c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(indexBucket)).Get([]byte(url))
		if len(v) < 8 {
			return nil
		}
		value = make([]byte, len(v)-8)
		copy(value, v[8:])
		return nil
	})
	return value, value != nil
}

// Put stores data for url stamped with the current time.
func (c *IndexCache) Put(url string, data []byte) error {
	entry := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(entry, uint64(time.Now().Unix()))
	copy(entry[8:], data)
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(indexBucket)).Put([]byte(url), entry)
	})
}

// Prune removes entries stored before cutoff and returns how many went.
func (c *IndexCache) Prune(cutoff time.Time) (int, error) {
	removed := 0
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(indexBucket))
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if len(v) < 8 || int64(binary.BigEndian.Uint64(v)) < cutoff.Unix() {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	return removed, nil
}

// Len returns the number of cached indexes.
func (c *IndexCache) Len() int {
	n := 0
	c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(indexBucket)).Stats().KeyN
		return nil
	})
	return n
}
