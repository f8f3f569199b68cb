package state

import (
	"encoding/json"
	"net/url"

	"github.com/dgraph-io/badger/v4"
)

// badgerState persists every write in a local badger database and loads it back on open.
type badgerState[K comparable, V any] struct {
	memory    *memoryState[K, V]
	urlParsed *url.URL
	db        *badger.DB
}

func (b *badgerState[K, V]) init() error {
	opts := badger.DefaultOptions(b.urlParsed.Path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return err
	}
	b.db = db
	err = b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var k K
			if err := json.Unmarshal(item.Key(), &k); err != nil {
				return err
			}
			err := item.Value(func(vRaw []byte) error {
				var v V
				if err := json.Unmarshal(vRaw, &v); err != nil {
					return err
				}
				return b.memory.Add(k, v)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		b.db.Close()
	}
	return err
}

func (b *badgerState[K, V]) Close() error {
	return b.db.Close()
}

func (b *badgerState[K, V]) Get(key K) (V, error) {
	return b.memory.Get(key)
}

func (b *badgerState[K, V]) Add(key K, value V) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, v)
	})
	if err != nil {
		return err
	}
	return b.memory.Add(key, value)
}
