package kvtest

import (
	"fmt"
	"testing"

	"github.com/adrianmcphee/tetherdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory creates a fresh, empty KeyValueStore for one test.
type Factory func(t *testing.T) tetherdb.KeyValueStore

// RunKeyValueStoreTests runs the conformance suite against an engine.
func RunKeyValueStoreTests(t *testing.T, name string, factory Factory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory(t))
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory(t))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory(t))
		})

		t.Run("AscendOrder", func(t *testing.T) {
			testAscendOrder(t, factory(t))
		})

		t.Run("AscendFrom", func(t *testing.T) {
			testAscendFrom(t, factory(t))
		})

		t.Run("AscendStop", func(t *testing.T) {
			testAscendStop(t, factory(t))
		})

		t.Run("Count", func(t *testing.T) {
			testCount(t, factory(t))
		})

		t.Run("Reset", func(t *testing.T) {
			testReset(t, factory(t))
		})

		t.Run("Close", func(t *testing.T) {
			testClose(t, factory(t))
		})
	})
}

func testPutGet(t *testing.T, kv tetherdb.KeyValueStore) {
	defer kv.Close()

	require.NoError(t, kv.Put([]byte("k"), []byte("v1")))

	got, err := kv.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, kv.Put([]byte("k"), []byte("v2")))
	got, err = kv.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	// returned slices belong to the caller
	got[0] = 'X'
	again, err := kv.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), again)

	_, err = kv.Get([]byte("missing"))
	assert.ErrorIs(t, err, tetherdb.ErrNotFound)

	require.NoError(t, kv.Flush())
}

func testHas(t *testing.T, kv tetherdb.KeyValueStore) {
	defer kv.Close()

	ok, err := kv.Has([]byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Put([]byte("a"), []byte("1")))
	ok, err = kv.Has([]byte("a"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func testDelete(t *testing.T, kv tetherdb.KeyValueStore) {
	defer kv.Close()

	require.NoError(t, kv.Put([]byte("a"), []byte("1")))
	require.NoError(t, kv.Delete([]byte("a")))

	_, err := kv.Get([]byte("a"))
	assert.ErrorIs(t, err, tetherdb.ErrNotFound)

	assert.ErrorIs(t, kv.Delete([]byte("a")), tetherdb.ErrNotFound)
}

func testAscendOrder(t *testing.T, kv tetherdb.KeyValueStore) {
	defer kv.Close()

	for _, k := range []string{"3", "10", "2", "1000", "20"} {
		require.NoError(t, kv.Put([]byte(k), []byte("v"+k)))
	}

	var keys []string
	err := kv.Ascend(nil, func(key, value []byte) bool {
		keys = append(keys, string(key))
		assert.Equal(t, "v"+string(key), string(value))
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "1000", "2", "20", "3"}, keys)
}

func testAscendFrom(t *testing.T, kv tetherdb.KeyValueStore) {
	defer kv.Close()

	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, kv.Put([]byte(k), []byte(k)))
	}

	var keys []string
	require.NoError(t, kv.Ascend([]byte("b"), func(key, _ []byte) bool {
		keys = append(keys, string(key))
		return true
	}))
	assert.Equal(t, []string{"b", "c", "d"}, keys)

	keys = nil
	require.NoError(t, kv.Ascend([]byte("bb"), func(key, _ []byte) bool {
		keys = append(keys, string(key))
		return true
	}))
	assert.Equal(t, []string{"c", "d"}, keys)

	keys = nil
	require.NoError(t, kv.Ascend([]byte("z"), func(key, _ []byte) bool {
		keys = append(keys, string(key))
		return true
	}))
	assert.Empty(t, keys)
}

func testAscendStop(t *testing.T, kv tetherdb.KeyValueStore) {
	defer kv.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, kv.Put([]byte(fmt.Sprintf("%02d", i)), []byte("x")))
	}

	seen := 0
	require.NoError(t, kv.Ascend(nil, func(_, _ []byte) bool {
		seen++
		return seen < 3
	}))
	assert.Equal(t, 3, seen)
}

func testCount(t *testing.T, kv tetherdb.KeyValueStore) {
	defer kv.Close()

	n, err := kv.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	for i := 0; i < 25; i++ {
		require.NoError(t, kv.Put([]byte(fmt.Sprintf("%d", i)), []byte("x")))
	}
	require.NoError(t, kv.Put([]byte("0"), []byte("overwrite")))
	require.NoError(t, kv.Delete([]byte("1")))

	n, err = kv.Count()
	require.NoError(t, err)
	assert.Equal(t, 24, n)
}

func testReset(t *testing.T, kv tetherdb.KeyValueStore) {
	defer kv.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, kv.Put([]byte(fmt.Sprintf("%d", i)), []byte("x")))
	}
	require.NoError(t, kv.Flush())
	require.NoError(t, kv.Reset())

	n, err := kv.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	// usable after reset
	require.NoError(t, kv.Put([]byte("after"), []byte("reset")))
	got, err := kv.Get([]byte("after"))
	require.NoError(t, err)
	assert.Equal(t, []byte("reset"), got)
}

func testClose(t *testing.T, kv tetherdb.KeyValueStore) {
	require.NoError(t, kv.Put([]byte("a"), []byte("1")))
	require.NoError(t, kv.Close())

	_, err := kv.Get([]byte("a"))
	assert.ErrorIs(t, err, tetherdb.ErrStoreUnavailable)
	assert.ErrorIs(t, kv.Put([]byte("b"), []byte("2")), tetherdb.ErrStoreUnavailable)
	assert.ErrorIs(t, kv.Flush(), tetherdb.ErrStoreUnavailable)

	// closing twice is harmless
	assert.NoError(t, kv.Close())
}
