// Package kvtest provides a standardised conformance suite for engines that
// satisfy the tetherdb.KeyValueStore interface.
//
// Every engine must pass the same contract: point get/put/delete with
// ErrNotFound for absent keys, ascending byte-order iteration with an optional
// start key and early stop, an exact Count, Reset to empty, and
// ErrStoreUnavailable after Close.
//
// Example usage:
//
//	func TestMyEngine(t *testing.T) {
//		kvtest.RunKeyValueStoreTests(t, "MyEngine", func(t *testing.T) tetherdb.KeyValueStore {
//			return NewMyEngine(t.TempDir())
//		})
//	}
package kvtest
