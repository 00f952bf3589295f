package docstore_test

import (
	"errors"
	"testing"

	"github.com/heysubinoy/pyazdoc/pkg/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySlots struct {
	data map[string]string
}

func newMemorySlots() *memorySlots {
	return &memorySlots{data: map[string]string{}}
}

func (m *memorySlots) Get(name string) (string, bool, error) {
	v, ok := m.data[name]
	return v, ok, nil
}

func (m *memorySlots) Set(name, value string) error {
	m.data[name] = value
	return nil
}

func (m *memorySlots) Delete(name string) error {
	delete(m.data, name)
	return nil
}

type brokenSlots struct {
	err error
}

func (b brokenSlots) Get(string) (string, bool, error) { return "", false, b.err }
func (b brokenSlots) Set(string, string) error         { return b.err }
func (b brokenSlots) Delete(string) error              { return b.err }

func TestValueSlot(t *testing.T) {
	assert.Equal(t, "alpha-demo-value", docstore.ValueSlot("alpha"))
	assert.Equal(t, "-demo-value", docstore.ValueSlot(""))
	assert.Equal(t, "default-demo-value", docstore.ValueSlot(docstore.DefaultKey))
}

func TestCurrentKeyDefaultsWhenUnset(t *testing.T) {
	slots := newMemorySlots()
	docs := docstore.New(slots)

	key, err := docs.CurrentKey()
	require.NoError(t, err)
	assert.Equal(t, "default", key)
	assert.Empty(t, slots.data, "reading the current key must not write it")
}

func TestCurrentKeyRoundTrip(t *testing.T) {
	for _, k := range []string{"alpha", "", "default", "with spaces", "ключ", "a-demo-value"} {
		docs := docstore.New(newMemorySlots())
		require.NoError(t, docs.SetCurrentKey(k))

		got, err := docs.CurrentKey()
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
}

func TestSetCurrentKeyOverwrites(t *testing.T) {
	slots := newMemorySlots()
	docs := docstore.New(slots)

	require.NoError(t, docs.SetCurrentKey("alpha"))
	require.NoError(t, docs.SetCurrentKey("beta"))

	got, err := docs.CurrentKey()
	require.NoError(t, err)
	assert.Equal(t, "beta", got)
	assert.Equal(t, "beta", slots.data[docstore.CurrentKeySlot])
}

func TestResetCurrentKey(t *testing.T) {
	slots := newMemorySlots()
	docs := docstore.New(slots)

	require.NoError(t, docs.SetCurrentKey("alpha"))
	require.NoError(t, docs.ResetCurrentKey())

	got, err := docs.CurrentKey()
	require.NoError(t, err)
	assert.Equal(t, "default", got)
	assert.Equal(t, "default", slots.data["demo-key"])
}

func TestDocValueRoundTrip(t *testing.T) {
	cases := []struct{ key, value string }{
		{"alpha", "hello"},
		{"alpha", ""},
		{"", "empty key"},
		{"beta", "line one\nline two"},
	}
	for _, c := range cases {
		docs := docstore.New(newMemorySlots())
		require.NoError(t, docs.SetDocValueFor(c.key, c.value))

		got, found, err := docs.DocValueFor(c.key)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, c.value, got)
	}
}

func TestDocValueAbsentIsNotEmpty(t *testing.T) {
	docs := docstore.New(newMemorySlots())

	_, found, err := docs.DocValueFor("never")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, docs.SetDocValueFor("empty", ""))
	got, found, err := docs.DocValueFor("empty")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "", got)
}

func TestUnkeyedCallsFollowCurrentKey(t *testing.T) {
	slots := newMemorySlots()
	docs := docstore.New(slots)

	require.NoError(t, docs.SetCurrentKey("one"))
	require.NoError(t, docs.SetDocValue("first"))
	require.NoError(t, docs.SetCurrentKey("two"))
	require.NoError(t, docs.SetDocValue("second"))

	assert.Equal(t, "first", slots.data["one-demo-value"])
	assert.Equal(t, "second", slots.data["two-demo-value"])

	got, found, err := docs.DocValue()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "second", got)

	require.NoError(t, docs.SetCurrentKey("one"))
	got, found, err = docs.DocValue()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "first", got)
}

func TestCurrentKeyChangedBehindTheStore(t *testing.T) {
	slots := newMemorySlots()
	docs := docstore.New(slots)

	require.NoError(t, docs.SetDocValue("before"))
	slots.data[docstore.CurrentKeySlot] = "other"
	require.NoError(t, docs.SetDocValue("after"))

	assert.Equal(t, "before", slots.data["default-demo-value"])
	assert.Equal(t, "after", slots.data["other-demo-value"])
}

func TestScenarioAlpha(t *testing.T) {
	slots := newMemorySlots()
	docs := docstore.New(slots)

	require.NoError(t, docs.SetCurrentKey("alpha"))
	require.NoError(t, docs.SetDocValue("hello"))
	assert.Equal(t, "hello", slots.data["alpha-demo-value"])

	got, found, err := docs.DocValue()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hello", got)

	got, found, err = docs.DocValueFor("alpha")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hello", got)

	_, found, err = docs.DocValueFor("beta")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestScenarioFresh(t *testing.T) {
	docs := docstore.New(newMemorySlots())

	key, err := docs.CurrentKey()
	require.NoError(t, err)
	assert.Equal(t, "default", key)

	_, found, err := docs.DocValue()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStorageErrorsPropagateUnchanged(t *testing.T) {
	boom := errors.New("storage disabled")
	docs := docstore.New(brokenSlots{err: boom})

	_, err := docs.CurrentKey()
	assert.Same(t, boom, err)
	assert.Same(t, boom, docs.SetCurrentKey("k"))
	assert.Same(t, boom, docs.ResetCurrentKey())
	assert.Same(t, boom, docs.SetDocValue("v"))
	assert.Same(t, boom, docs.SetDocValueFor("k", "v"))
	_, _, err = docs.DocValue()
	assert.Same(t, boom, err)
	_, _, err = docs.DocValueFor("k")
	assert.Same(t, boom, err)
}
