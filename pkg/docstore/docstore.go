// Package docstore keeps one string document per key on top of a kv.Store.
//
// Two kinds of slot are used. The reserved slot "demo-key" holds the
// current key, and each key k owns the slot "k-demo-value" holding its
// document. Calls that take no key act on whatever the current key is at
// the moment of the call.
//
// Example usage:
//
//	docs := docstore.New(slots) // any kv.Store
//
//	if err := docs.SetCurrentKey("alpha"); err != nil {
//		return err
//	}
//	if err := docs.SetDocValue("hello"); err != nil { // written to "alpha-demo-value"
//		return err
//	}
//
//	value, found, err := docs.DocValueFor("beta")
//	if err != nil {
//		return err
//	}
//	if !found {
//		fmt.Println("beta was never written")
//	}
package docstore

import "github.com/heysubinoy/pyazdoc/pkg/kv"

const (
	// CurrentKeySlot is the reserved slot holding the current key.
	CurrentKeySlot = "demo-key"
	// DefaultKey is the current key when CurrentKeySlot was never written.
	DefaultKey = "default"
	// ValueSuffix is appended to a key to name its document slot.
	ValueSuffix = "-demo-value"
)

// ValueSlot returns the name of the slot holding the document for key.
func ValueSlot(key string) string {
	return key + ValueSuffix
}

// Store is the keyed document store. Errors from the underlying kv.Store
// are returned to the caller as they are.
type Store struct {
	slots kv.Store
}

// New creates a Store over the given slot store.
func New(slots kv.Store) *Store {
	return &Store{slots: slots}
}

// CurrentKey returns the current key, or DefaultKey if none was ever set.
// A current key set to the empty string is returned as the empty string.
// Browser code reading demo-key with `|| "default"` treats it as unset.
func (s *Store) CurrentKey() (string, error) {
	key, found, err := s.slots.Get(CurrentKeySlot)
	if err != nil {
		return "", err
	}
	if !found {
		return DefaultKey, nil
	}
	return key, nil
}

// SetCurrentKey makes key the current key. Any string is accepted.
func (s *Store) SetCurrentKey(key string) error {
	return s.slots.Set(CurrentKeySlot, key)
}

// ResetCurrentKey makes DefaultKey the current key.
func (s *Store) ResetCurrentKey() error {
	return s.SetCurrentKey(DefaultKey)
}

// SetDocValue stores value as the document of the current key.
func (s *Store) SetDocValue(value string) error {
	key, err := s.CurrentKey()
	if err != nil {
		return err
	}
	return s.SetDocValueFor(key, value)
}

// SetDocValueFor stores value as the document of key.
func (s *Store) SetDocValueFor(key, value string) error {
	return s.slots.Set(ValueSlot(key), value)
}

// DocValue returns the document of the current key.
// found is false if that document was never written.
func (s *Store) DocValue() (value string, found bool, err error) {
	key, err := s.CurrentKey()
	if err != nil {
		return "", false, err
	}
	return s.DocValueFor(key)
}

// DocValueFor returns the document of key.
// found is false if that document was never written.
func (s *Store) DocValueFor(key string) (value string, found bool, err error) {
	return s.slots.Get(ValueSlot(key))
}
