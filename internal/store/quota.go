package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/heysubinoy/pyazdoc/pkg/kv"
)

// ErrQuotaExceeded is returned by QuotaStore when a write would take the
// store over its byte budget.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// QuotaStore limits the total size of a wrapped store. Each slot costs
// len(name)+len(value) bytes. A rejected write leaves the store unchanged.
type QuotaStore struct {
	mu    sync.Mutex
	store kv.Store
	limit int64
	used  int64
}

var (
	_ kv.Store  = (*QuotaStore)(nil)
	_ kv.Dumper = (*QuotaStore)(nil)
)

// NewQuotaStore wraps store with a budget of limit bytes. If store
// implements kv.Dumper its current contents count against the budget.
func NewQuotaStore(store kv.Store, limit int64) (*QuotaStore, error) {
	q := &QuotaStore{store: store, limit: limit}
	if d, ok := store.(kv.Dumper); ok {
		slots, err := d.Dump()
		if err != nil {
			return nil, fmt.Errorf("measure store: %w", err)
		}
		for name, value := range slots {
			q.used += slotCost(name, value)
		}
	}
	return q, nil
}

// Used returns the number of bytes currently accounted for.
func (q *QuotaStore) Used() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used
}

// Get reads through to the wrapped store.
func (q *QuotaStore) Get(name string) (string, bool, error) {
	return q.store.Get(name)
}

// Set writes through unless the new total would exceed the limit.
func (q *QuotaStore) Set(name, value string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	old, found, err := q.store.Get(name)
	if err != nil {
		return err
	}
	next := q.used + slotCost(name, value)
	if found {
		next -= slotCost(name, old)
	}
	if next > q.limit {
		return fmt.Errorf("%w: writing %q needs %d of %d bytes", ErrQuotaExceeded, name, next, q.limit)
	}
	if err := q.store.Set(name, value); err != nil {
		return err
	}
	q.used = next
	return nil
}

// Delete removes the slot and releases its bytes.
func (q *QuotaStore) Delete(name string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	old, found, err := q.store.Get(name)
	if err != nil {
		return err
	}
	if err := q.store.Delete(name); err != nil {
		return err
	}
	if found {
		q.used -= slotCost(name, old)
	}
	return nil
}

// Limit returns the byte budget.
func (q *QuotaStore) Limit() int64 {
	return q.limit
}

// Dump returns the contents of the wrapped store.
func (q *QuotaStore) Dump() (map[string]string, error) {
	d, ok := q.store.(kv.Dumper)
	if !ok {
		return nil, errNotDumper
	}
	return d.Dump()
}

// Replace swaps the wrapped store's contents for slots and recounts the
// bytes in use. A restored snapshot may exceed the limit; later writes are
// rejected until enough is deleted.
func (q *QuotaStore) Replace(slots map[string]string) error {
	d, ok := q.store.(kv.Dumper)
	if !ok {
		return errNotDumper
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if err := d.Replace(slots); err != nil {
		return err
	}
	var used int64
	for name, value := range slots {
		used += slotCost(name, value)
	}
	q.used = used
	return nil
}

var errNotDumper = errors.New("wrapped store cannot dump its slots")

func slotCost(name, value string) int64 {
	return int64(len(name) + len(value))
}
