// Package kvstore is a small shared bbolt wrapper factoring out the
// open/bucket/JSON-encode boilerplate every durable component in this
// server needs. Inbox, call rooms, the blob store, and the embedded
// profile directory each open one bucket in a shared or dedicated bbolt
// file through this type rather than re-deriving the same dance four
// times.
package kvstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// DB wraps a bbolt database handle.
type DB struct {
	bolt *bbolt.DB
}

// Open opens (creating parent directories as needed) the bbolt file at path
// and ensures every bucket in buckets exists.
func Open(path string, buckets ...string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	bolt, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = bolt.Update(func(tx *bbolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(b)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = bolt.Close()
		return nil, err
	}
	return &DB{bolt: bolt}, nil
}

// Close closes the underlying bbolt handle.
func (d *DB) Close() error {
	if d == nil || d.bolt == nil {
		return nil
	}
	return d.bolt.Close()
}

// PutJSON marshals value and stores it under key in bucket.
func (d *DB) PutJSON(bucket, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put([]byte(key), data)
	})
}

// GetJSON loads the value stored under key in bucket into out. found is
// false if no value is stored under key.
func (d *DB) GetJSON(bucket, key string, out interface{}) (found bool, err error) {
	err = d.bolt.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucket)).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, out)
	})
	return found, err
}

// Delete removes key from bucket. It is not an error if key is absent.
func (d *DB) Delete(bucket, key string) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Delete([]byte(key))
	})
}

// Update runs fn against bucket inside a single read-write transaction,
// giving callers claim-or-fail atomicity backed by bbolt's single active
// writer.
func (d *DB) Update(bucket string, fn func(b Bucket) error) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		return fn(boltBucket{tx.Bucket([]byte(bucket))})
	})
}

// View runs fn against bucket inside a read-only transaction.
func (d *DB) View(bucket string, fn func(b Bucket) error) error {
	return d.bolt.View(func(tx *bbolt.Tx) error {
		return fn(boltBucket{tx.Bucket([]byte(bucket))})
	})
}

// UpdateMulti runs fn against several buckets inside a single read-write
// transaction, for operations that must move data between buckets
// atomically (e.g. claiming a nickname while writing its owning profile).
func (d *DB) UpdateMulti(buckets []string, fn func(b map[string]Bucket) error) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		m := make(map[string]Bucket, len(buckets))
		for _, name := range buckets {
			m[name] = boltBucket{tx.Bucket([]byte(name))}
		}
		return fn(m)
	})
}

// Bucket is the minimal get/put/delete/foreach surface exposed inside a
// transaction callback.
type Bucket interface {
	Get(key string) []byte
	Put(key string, value []byte) error
	Delete(key string) error
	ForEach(fn func(key, value []byte) error) error
}

type boltBucket struct {
	b *bbolt.Bucket
}

func (bb boltBucket) Get(key string) []byte { return bb.b.Get([]byte(key)) }
func (bb boltBucket) Put(key string, value []byte) error {
	return bb.b.Put([]byte(key), value)
}
func (bb boltBucket) Delete(key string) error { return bb.b.Delete([]byte(key)) }
func (bb boltBucket) ForEach(fn func(key, value []byte) error) error {
	return bb.b.ForEach(fn)
}
