package fake

import (
	"bytes"
	"sort"
	"sync"

	"go.dedis.ch/shipagency/core/store/kv"
	"golang.org/x/xerrors"
)

// InMemoryDB is a fake implementation of a key/value database.
//
// - implements kv.DB
type InMemoryDB struct {
	sync.Mutex

	buckets   map[string]*InMemoryBucket
	ErrView   error
	ErrUpdate error
}

// NewInMemoryDB creates a new empty database.
func NewInMemoryDB() *InMemoryDB {
	return &InMemoryDB{
		buckets: make(map[string]*InMemoryBucket),
	}
}

// NewBadDB creates a new empty database that will always return an error.
func NewBadDB() *InMemoryDB {
	db := NewInMemoryDB()
	db.ErrView = fakeErr
	db.ErrUpdate = fakeErr

	return db
}

// View implements kv.DB.
func (db *InMemoryDB) View(name []byte, fn func(kv.Bucket) error) error {
	db.Lock()
	defer db.Unlock()

	if db.ErrView != nil {
		return db.ErrView
	}

	bucket, found := db.buckets[string(name)]
	if !found {
		return xerrors.Errorf("bucket '%x': %w", name, kv.ErrNoBucket)
	}

	return fn(bucket)
}

// Update implements kv.DB.
func (db *InMemoryDB) Update(name []byte, fn func(kv.Bucket) error) error {
	db.Lock()
	defer db.Unlock()

	if db.ErrUpdate != nil {
		return db.ErrUpdate
	}

	bucket, found := db.buckets[string(name)]
	if !found {
		bucket = &InMemoryBucket{values: make(map[string][]byte)}
		db.buckets[string(name)] = bucket
	}

	return fn(bucket)
}

// Close implements kv.DB.
func (db *InMemoryDB) Close() error {
	return nil
}

// InMemoryBucket is a fake implementation of a bucket.
//
// - implements kv.Bucket
type InMemoryBucket struct {
	values map[string][]byte
}

// Get implements kv.Bucket.
func (b *InMemoryBucket) Get(key []byte) []byte {
	return b.values[string(key)]
}

// Set implements kv.Bucket.
func (b *InMemoryBucket) Set(key, value []byte) error {
	b.values[string(key)] = value

	return nil
}

// Delete implements kv.Bucket.
func (b *InMemoryBucket) Delete(key []byte) error {
	delete(b.values, string(key))

	return nil
}

// ForEach implements kv.Bucket.
func (b *InMemoryBucket) ForEach(fn func(k, v []byte) error) error {
	for _, key := range b.keys() {
		err := fn([]byte(key), b.values[key])
		if err != nil {
			return err
		}
	}

	return nil
}

// Scan implements kv.Bucket.
func (b *InMemoryBucket) Scan(prefix []byte, fn func(k, v []byte) error) error {
	return b.ForEach(func(k, v []byte) error {
		if !bytes.HasPrefix(k, prefix) {
			return nil
		}

		return fn(k, v)
	})
}

// Reverse implements kv.Bucket.
func (b *InMemoryBucket) Reverse(fn func(k, v []byte) error) error {
	keys := b.keys()

	for i := len(keys) - 1; i >= 0; i-- {
		err := fn([]byte(keys[i]), b.values[keys[i]])
		if err != nil {
			return err
		}
	}

	return nil
}

func (b *InMemoryBucket) keys() []string {
	keys := make([]string, 0, len(b.values))
	for key := range b.values {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
