package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/heysubinoy/pyazdoc/pkg/kv"
	"go.etcd.io/bbolt"
)

const slotBucket = "slots"

// BoltStore is a persistent kv.Store backed by a BoltDB file.
// Slots outlive the process and are only removed through Delete or Replace.
type BoltStore struct {
	db *bbolt.DB
}

var (
	_ kv.Store  = (*BoltStore)(nil)
	_ kv.Dumper = (*BoltStore)(nil)
)

// OpenBoltStore opens (or creates) the BoltDB file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open slot db: %w", err)
	}

	s := &BoltStore{db: db}
	if err := s.ensureBucket(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying BoltDB database.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get reads a slot. Values are copied out of the transaction.
func (s *BoltStore) Get(name string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(slotBucket))
		if b == nil {
			return fmt.Errorf("slot bucket is missing")
		}
		raw := b.Get(slotKey(name))
		if raw == nil {
			return nil
		}
		value, found = slotValue(raw), true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return value, found, nil
}

// Set writes a slot.
func (s *BoltStore) Set(name, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(slotBucket))
		if b == nil {
			return fmt.Errorf("slot bucket is missing")
		}
		return b.Put(slotKey(name), slotBytes(value))
	})
}

// Delete removes a slot. Deleting a missing slot is not an error.
func (s *BoltStore) Delete(name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(slotBucket))
		if b == nil {
			return fmt.Errorf("slot bucket is missing")
		}
		return b.Delete(slotKey(name))
	})
}

// Dump returns a copy of all slots.
func (s *BoltStore) Dump() (map[string]string, error) {
	out := map[string]string{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(slotBucket))
		if b == nil {
			return fmt.Errorf("slot bucket is missing")
		}
		return b.ForEach(func(k, v []byte) error {
			out[slotName(k)] = slotValue(v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Replace drops every slot and writes the given ones in a single transaction.
func (s *BoltStore) Replace(slots map[string]string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(slotBucket)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return fmt.Errorf("drop slot bucket: %w", err)
		}
		b, err := tx.CreateBucket([]byte(slotBucket))
		if err != nil {
			return fmt.Errorf("create slot bucket: %w", err)
		}
		for name, value := range slots {
			if err := b.Put(slotKey(name), slotBytes(value)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) ensureBucket() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(slotBucket)); err != nil {
			return fmt.Errorf("create slot bucket: %w", err)
		}
		return nil
	})
}

// Keys and values carry a one-byte prefix: bbolt rejects empty keys, and an
// empty value must still read back as present.
func slotKey(name string) []byte {
	return append([]byte{'s'}, name...)
}

func slotName(key []byte) string {
	return string(key[1:])
}

func slotBytes(value string) []byte {
	return append([]byte{'v'}, value...)
}

func slotValue(raw []byte) string {
	return string(raw[1:])
}
