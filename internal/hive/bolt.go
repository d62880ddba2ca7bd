package hive

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/skovgaard/tunectl/internal/errors"
)

// valuesBucket holds the named values of a key, keeping them in a separate
// namespace from child key buckets. The NUL prefix cannot collide with a
// path element, which Validate rejects.
const valuesBucket = "\x00values"

// BoltStore is a bbolt-backed Store. Key paths map to nested buckets and
// named values live in a reserved sub-bucket per key.
type BoltStore struct {
	db *bbolt.DB
}

var _ Store = (*BoltStore)(nil)

type openOptions struct {
	readOnly bool
	timeout  time.Duration
}

// Option configures Open.
type Option func(*openOptions)

// WithReadOnly opens the hive for reading only. Writes fail with
// ErrPermissionDenied.
func WithReadOnly() Option {
	return func(o *openOptions) {
		o.readOnly = true
	}
}

// WithTimeout bounds how long Open waits for the file lock held by another
// process before failing.
func WithTimeout(d time.Duration) Option {
	return func(o *openOptions) {
		o.timeout = d
	}
}

// Open opens (creating if needed) the hive database at path.
func Open(path string, opts ...Option) (*BoltStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("hive path is required")
	}

	o := openOptions{timeout: time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{
		Timeout:  o.timeout,
		ReadOnly: o.readOnly,
	})
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, errors.Wrapf(ErrPermissionDenied, "opening hive %s: %v", path, err)
		}
		return nil, errors.Wrapf(err, "opening hive %s", path)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the file backing the hive.
func (s *BoltStore) Path() string {
	if s == nil || s.db == nil {
		return ""
	}
	return s.db.Path()
}

// Get fetches the named value at key. Absence is reported as ErrNotFound.
func (s *BoltStore) Get(key Key, name string) (Value, error) {
	if err := key.Validate(); err != nil {
		return Value{}, err
	}

	var val Value
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := bucketFor(tx, key)
		if b == nil {
			return errors.Wrapf(ErrNotFound, "key %s", key)
		}
		vb := b.Bucket([]byte(valuesBucket))
		if vb == nil {
			return errors.Wrapf(ErrNotFound, "value %q at %s", name, key)
		}
		raw := vb.Get([]byte(name))
		if raw == nil {
			return errors.Wrapf(ErrNotFound, "value %q at %s", name, key)
		}
		v, err := decodeValue(raw)
		if err != nil {
			return errors.Wrapf(err, "decoding value %q at %s", name, key)
		}
		val = v
		return nil
	})
	if err != nil {
		return Value{}, err
	}
	return val, nil
}

// Set writes the named value at key, creating any missing containers along
// the key's path first.
func (s *BoltStore) Set(key Key, name string, value Value) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if name == "" {
		return errors.Wrap(ErrInvalidKey, "empty value name")
	}
	if value.IsZero() {
		return errors.Wrap(ErrInvalidKind, "unset value")
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := ensureBucket(tx, key)
		if err != nil {
			return err
		}
		vb, err := b.CreateBucketIfNotExists([]byte(valuesBucket))
		if err != nil {
			return err
		}
		return vb.Put([]byte(name), value.encode())
	})
	return mapWriteErr(err, key)
}

// Remove deletes the named value at key. A missing key or value is reported
// as ErrNotFound.
func (s *BoltStore) Remove(key Key, name string) error {
	if err := key.Validate(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := bucketFor(tx, key)
		if b == nil {
			return errors.Wrapf(ErrNotFound, "key %s", key)
		}
		vb := b.Bucket([]byte(valuesBucket))
		if vb == nil || vb.Get([]byte(name)) == nil {
			return errors.Wrapf(ErrNotFound, "value %q at %s", name, key)
		}
		return vb.Delete([]byte(name))
	})
	return mapWriteErr(err, key)
}

// Exists reports whether the key itself exists. It never creates anything.
func (s *BoltStore) Exists(key Key) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}

	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = bucketFor(tx, key) != nil
		return nil
	})
	if err != nil {
		return false, errors.Wrapf(err, "checking %s", key)
	}
	return found, nil
}

// Export reads the full subtree at key. The read is side-effect free: a
// missing key returns ErrNotFound without creating it.
func (s *BoltStore) Export(key Key) (*Subtree, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	var sub *Subtree
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := bucketFor(tx, key)
		if b == nil {
			return errors.Wrapf(ErrNotFound, "key %s", key)
		}
		exported, err := exportBucket(b)
		if err != nil {
			return errors.Wrapf(err, "exporting %s", key)
		}
		sub = exported
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Import replaces the subtree at key with sub, creating missing containers.
// Replacement rather than merge keeps repeated imports of the same snapshot
// convergent: values written after the capture do not survive a restore.
func (s *BoltStore) Import(key Key, sub *Subtree) error {
	if err := key.Validate(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := deleteKeyTx(tx, key); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		b, err := ensureBucket(tx, key)
		if err != nil {
			return err
		}
		return importBucket(b, sub)
	})
	return mapWriteErr(err, key)
}

// DeleteKey removes the key and its whole subtree.
func (s *BoltStore) DeleteKey(key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return deleteKeyTx(tx, key)
	})
	return mapWriteErr(err, key)
}

// bucketFor walks the bucket chain for key inside tx. Returns nil when any
// link is missing.
func bucketFor(tx *bbolt.Tx, key Key) *bbolt.Bucket {
	b := tx.Bucket([]byte(key.Hive))
	if b == nil {
		return nil
	}
	for _, elem := range key.Elems() {
		b = b.Bucket([]byte(elem))
		if b == nil {
			return nil
		}
	}
	return b
}

// ensureBucket creates the bucket chain for key inside a writable tx.
func ensureBucket(tx *bbolt.Tx, key Key) (*bbolt.Bucket, error) {
	b, err := tx.CreateBucketIfNotExists([]byte(key.Hive))
	if err != nil {
		return nil, errors.Wrapf(err, "creating hive %s", key.Hive)
	}
	for _, elem := range key.Elems() {
		b, err = b.CreateBucketIfNotExists([]byte(elem))
		if err != nil {
			return nil, errors.Wrapf(err, "creating container %s under %s", elem, key.Hive)
		}
	}
	return b, nil
}

// deleteKeyTx removes the key's bucket from its parent. ErrNotFound when the
// chain does not reach the key.
func deleteKeyTx(tx *bbolt.Tx, key Key) error {
	parent := tx.Bucket([]byte(key.Hive))
	if parent == nil {
		return errors.Wrapf(ErrNotFound, "key %s", key)
	}
	elems := key.Elems()
	for _, elem := range elems[:len(elems)-1] {
		parent = parent.Bucket([]byte(elem))
		if parent == nil {
			return errors.Wrapf(ErrNotFound, "key %s", key)
		}
	}
	err := parent.DeleteBucket([]byte(elems[len(elems)-1]))
	if errors.Is(err, bbolt.ErrBucketNotFound) {
		return errors.Wrapf(ErrNotFound, "key %s", key)
	}
	return err
}

// exportBucket builds a Subtree from a key bucket. Entries at key level are
// always buckets; plain values only appear inside the reserved values bucket.
func exportBucket(b *bbolt.Bucket) (*Subtree, error) {
	sub := NewSubtree()
	err := b.ForEach(func(k, v []byte) error {
		if v != nil {
			return errors.Newf("stray non-bucket entry %q", k)
		}
		if string(k) == valuesBucket {
			vb := b.Bucket(k)
			return vb.ForEach(func(name, raw []byte) error {
				val, err := decodeValue(raw)
				if err != nil {
					return errors.Wrapf(err, "value %q", name)
				}
				sub.Values[string(name)] = val
				return nil
			})
		}
		child, err := exportBucket(b.Bucket(k))
		if err != nil {
			return err
		}
		sub.Children[string(k)] = child
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// importBucket writes a Subtree into an (empty) key bucket.
func importBucket(b *bbolt.Bucket, sub *Subtree) error {
	if sub == nil {
		return nil
	}
	if len(sub.Values) > 0 {
		vb, err := b.CreateBucketIfNotExists([]byte(valuesBucket))
		if err != nil {
			return err
		}
		for name, val := range sub.Values {
			if err := vb.Put([]byte(name), val.encode()); err != nil {
				return errors.Wrapf(err, "value %q", name)
			}
		}
	}
	for name, child := range sub.Children {
		cb, err := b.CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return errors.Wrapf(err, "container %q", name)
		}
		if err := importBucket(cb, child); err != nil {
			return err
		}
	}
	return nil
}

// mapWriteErr folds store-level rejection into the permission sentinel so
// callers can distinguish rights problems from other failures.
func mapWriteErr(err error, key Key) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bbolt.ErrDatabaseReadOnly), errors.Is(err, fs.ErrPermission):
		return errors.Wrapf(ErrPermissionDenied, "writing %s: %v", key, err)
	default:
		return err
	}
}
