package store

import (
	"errors"
	"testing"

	"github.com/heysubinoy/pyazdoc/pkg/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaStoreRejectsOversizedWrite(t *testing.T) {
	q, err := NewQuotaStore(NewMemStore(), 10)
	require.NoError(t, err)

	require.NoError(t, q.Set("k", "12345")) // 6 bytes
	assert.EqualValues(t, 6, q.Used())

	err = q.Set("j", "12345") // would be 12
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQuotaExceeded))
	assert.EqualValues(t, 6, q.Used())

	_, found, err := q.Get("j")
	require.NoError(t, err)
	assert.False(t, found, "rejected write must not reach the store")
}

func TestQuotaStoreOverwriteCountsDelta(t *testing.T) {
	q, err := NewQuotaStore(NewMemStore(), 10)
	require.NoError(t, err)

	require.NoError(t, q.Set("k", "123456789")) // 10 bytes, at the limit
	require.NoError(t, q.Set("k", "1"))
	assert.EqualValues(t, 2, q.Used())

	require.NoError(t, q.Delete("k"))
	assert.EqualValues(t, 0, q.Used())
	require.NoError(t, q.Delete("k"))
	assert.EqualValues(t, 0, q.Used())
}

func TestQuotaStoreCountsExistingContents(t *testing.T) {
	mem := NewMemStore()
	require.NoError(t, mem.Set("abc", "defg"))

	q, err := NewQuotaStore(mem, 8)
	require.NoError(t, err)
	assert.EqualValues(t, 7, q.Used())

	err = q.Set("x", "y")
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestQuotaStoreReplaceRecountsUsage(t *testing.T) {
	q, err := NewQuotaStore(NewMemStore(), 20)
	require.NoError(t, err)
	require.NoError(t, q.Set("stale", "value"))

	require.NoError(t, q.Replace(map[string]string{"demo-key": "ab"}))
	assert.EqualValues(t, 10, q.Used())

	dump, err := q.Dump()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"demo-key": "ab"}, dump)

	err = q.Set("another", "12345")
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestQuotaStoreDumpNeedsDumper(t *testing.T) {
	q, err := NewQuotaStore(struct{ kv.Store }{NewMemStore()}, 20)
	require.NoError(t, err)

	_, err = q.Dump()
	assert.Error(t, err)
	assert.Error(t, q.Replace(map[string]string{}))
}
