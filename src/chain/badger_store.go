package chain

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/badger"
	cm "github.com/idsov/recordstore/src/common"
	"github.com/idsov/recordstore/src/compress"
	"github.com/sirupsen/logrus"
)

const (
	entryPrefix  = "entry"
	actionPrefix = "action"
	topoPrefix   = "topo"
	updatePrefix = "update"
	deletePrefix = "delete"
)

// BadgerStore implements the Store interface on top of a badger database.
// Recently used entries and actions are kept in LRU caches.
type BadgerStore struct {
	sync.Mutex // guards actionCount across SetAction

	cacheSize   int
	entryCache  *cm.LRU //hash => Entry
	actionCache *cm.LRU //hash => Action
	actionCount int
	compression compress.Tag
	db          *badger.DB
	path        string
	logger      *logrus.Entry
}

func openBadger(path string, logger *logrus.Entry) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	opts.Logger = logger
	return badger.Open(opts)
}

// NewBadgerStore creates a brand new Store with a new database.
func NewBadgerStore(cacheSize int, path string, compression compress.Tag, logger *logrus.Entry) (*BadgerStore, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, err
	}

	handle, err := openBadger(path, logger)
	if err != nil {
		return nil, err
	}

	return &BadgerStore{
		cacheSize:   cacheSize,
		entryCache:  cm.NewLRU(cacheSize, nil),
		actionCache: cm.NewLRU(cacheSize, nil),
		compression: compression,
		db:          handle,
		path:        path,
		logger:      logger,
	}, nil
}

// LoadBadgerStore creates a Store from an existing database.
func LoadBadgerStore(cacheSize int, path string, compression compress.Tag, logger *logrus.Entry) (*BadgerStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	handle, err := openBadger(path, logger)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		cacheSize:   cacheSize,
		entryCache:  cm.NewLRU(cacheSize, nil),
		actionCache: cm.NewLRU(cacheSize, nil),
		compression: compression,
		db:          handle,
		path:        path,
		logger:      logger,
	}

	count, err := store.dbCountActions()
	if err != nil {
		handle.Close()
		return nil, err
	}
	store.actionCount = count

	logger.WithField("actions", count).Debug("Loaded badger store")

	return store, nil
}

// LoadOrCreateBadgerStore opens the database at path, creating it if it does
// not exist.
func LoadOrCreateBadgerStore(cacheSize int, path string, compression compress.Tag, logger *logrus.Entry) (*BadgerStore, error) {
	store, err := LoadBadgerStore(cacheSize, path, compression, logger)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		return NewBadgerStore(cacheSize, path, compression, logger)
	}
	return store, nil
}

//==============================================================================
//Keys

func entryKey(hash string) []byte {
	return []byte(fmt.Sprintf("%s_%s", entryPrefix, hash))
}

func actionKey(hash string) []byte {
	return []byte(fmt.Sprintf("%s_%s", actionPrefix, hash))
}

func topologicalActionKey(index int) []byte {
	return []byte(fmt.Sprintf("%s_%09d", topoPrefix, index))
}

func originUpdatesPrefix(origin string) []byte {
	return []byte(fmt.Sprintf("%s_%s_", updatePrefix, origin))
}

func originUpdateKey(origin string, index int) []byte {
	return []byte(fmt.Sprintf("%s_%s_%09d", updatePrefix, origin, index))
}

func targetDeletesPrefix(target string) []byte {
	return []byte(fmt.Sprintf("%s_%s_", deletePrefix, target))
}

func targetDeleteKey(target string, index int) []byte {
	return []byte(fmt.Sprintf("%s_%s_%09d", deletePrefix, target, index))
}

//==============================================================================
//Implement the Store interface

// CacheSize implements the Store interface.
func (s *BadgerStore) CacheSize() int {
	return s.cacheSize
}

// GetEntry implements the Store interface.
func (s *BadgerStore) GetEntry(hash string) (*Entry, error) {
	if e, ok := s.entryCache.Get(hash); ok {
		return e.(*Entry), nil
	}

	entry, err := s.dbGetEntry(hash)
	if err != nil {
		return nil, mapError(err, "Entry", hash)
	}

	s.entryCache.Add(hash, entry)
	return entry, nil
}

// SetEntry implements the Store interface.
func (s *BadgerStore) SetEntry(entry *Entry) error {
	if s.HasEntry(entry.Hex()) {
		return nil
	}

	if err := s.dbSetEntry(entry); err != nil {
		return err
	}

	s.entryCache.Add(entry.Hex(), entry)
	return nil
}

// HasEntry implements the Store interface.
func (s *BadgerStore) HasEntry(hash string) bool {
	if s.entryCache.Contains(hash) {
		return true
	}
	return s.dbHas(entryKey(hash))
}

// GetAction implements the Store interface.
func (s *BadgerStore) GetAction(hash string) (*Action, error) {
	if a, ok := s.actionCache.Get(hash); ok {
		return a.(*Action), nil
	}

	action, err := s.dbGetAction(hash)
	if err != nil {
		return nil, mapError(err, "Action", hash)
	}

	s.actionCache.Add(hash, action)
	return action, nil
}

// SetAction implements the Store interface.
func (s *BadgerStore) SetAction(action *Action) error {
	s.Lock()
	defer s.Unlock()

	if err := s.dbSetAction(action); err != nil {
		return err
	}

	s.actionCount++
	s.actionCache.Add(action.Hex(), action)
	return nil
}

// HasAction implements the Store interface.
func (s *BadgerStore) HasAction(hash string) bool {
	if s.actionCache.Contains(hash) {
		return true
	}
	return s.dbHas(actionKey(hash))
}

// OriginUpdates implements the Store interface.
func (s *BadgerStore) OriginUpdates(origin string) ([]string, error) {
	return s.dbPrefixValues(originUpdatesPrefix(origin))
}

// TargetDeletes implements the Store interface.
func (s *BadgerStore) TargetDeletes(target string) ([]string, error) {
	return s.dbPrefixValues(targetDeletesPrefix(target))
}

// TopologicalActions implements the Store interface.
func (s *BadgerStore) TopologicalActions(skip int) ([]*Action, error) {
	return s.dbTopologicalActions(skip)
}

// ActionCount implements the Store interface.
func (s *BadgerStore) ActionCount() int {
	s.Lock()
	defer s.Unlock()

	return s.actionCount
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// StorePath implements the Store interface.
func (s *BadgerStore) StorePath() string {
	return s.path
}

//++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++
//DB Methods

func (s *BadgerStore) dbHas(key []byte) bool {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	return err == nil
}

func (s *BadgerStore) dbGetEntry(hash string) (*Entry, error) {
	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(hash))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	data, err := compress.Decode(blob)
	if err != nil {
		return nil, cm.NewStoreErrWithCause("Entry", cm.Serialization, hash, err)
	}

	return NewEntry(data), nil
}

func (s *BadgerStore) dbSetEntry(entry *Entry) error {
	blob, err := compress.Encode(entry.Bytes(), s.compression)
	if err != nil {
		return cm.NewStoreErrWithCause("Entry", cm.Serialization, entry.Hex(), err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(entry.Hex()), blob)
	})
}

func (s *BadgerStore) dbGetAction(hash string) (*Action, error) {
	var actionBytes []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(actionKey(hash))
		if err != nil {
			return err
		}
		actionBytes, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	action := new(Action)
	if err := action.UnmarshalDB(actionBytes); err != nil {
		return nil, cm.NewStoreErrWithCause("Action", cm.Serialization, hash, err)
	}

	return action, nil
}

// dbSetAction writes the action and its index keys in one transaction.
func (s *BadgerStore) dbSetAction(action *Action) error {
	hash := action.Hex()

	val, err := action.MarshalDB()
	if err != nil {
		return cm.NewStoreErrWithCause("Action", cm.Serialization, hash, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(actionKey(hash))
		if err == nil {
			return cm.NewStoreErr("Action", cm.KeyAlreadyExists, hash)
		}
		if !isDBKeyNotFound(err) {
			return err
		}

		//insert [action_hash] => [action bytes]
		if err := txn.Set(actionKey(hash), val); err != nil {
			return err
		}

		//insert [topo_index] => [action hash]
		topoKey := topologicalActionKey(action.topologicalIndex)
		if err := txn.Set(topoKey, []byte(hash)); err != nil {
			return err
		}

		switch action.Type() {
		case Update:
			key := originUpdateKey(action.Original(), action.topologicalIndex)
			return txn.Set(key, []byte(hash))
		case Delete:
			key := targetDeleteKey(action.Deleted(), action.topologicalIndex)
			return txn.Set(key, []byte(hash))
		}

		return nil
	})
}

func (s *BadgerStore) dbPrefixValues(prefix []byte) ([]string, error) {
	res := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			res = append(res, string(v))
		}
		return nil
	})
	return res, err
}

func (s *BadgerStore) dbTopologicalActions(skip int) ([]*Action, error) {
	res := []*Action{}

	t := skip + 1
	if t < 0 {
		t = 0
	}

	err := s.db.View(func(txn *badger.Txn) error {
		item, errr := txn.Get(topologicalActionKey(t))
		for errr == nil {
			hash, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			actionItem, err := txn.Get(actionKey(string(hash)))
			if err != nil {
				return err
			}
			actionBytes, err := actionItem.ValueCopy(nil)
			if err != nil {
				return err
			}

			action := new(Action)
			if err := action.UnmarshalDB(actionBytes); err != nil {
				return cm.NewStoreErrWithCause("Action", cm.Serialization, string(hash), err)
			}
			res = append(res, action)

			t++
			item, errr = txn.Get(topologicalActionKey(t))
		}

		if !isDBKeyNotFound(errr) {
			return errr
		}

		return nil
	})

	return res, err
}

func (s *BadgerStore) dbCountActions() (int, error) {
	count := 0
	prefix := []byte(topoPrefix + "_")
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

//++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++

func isDBKeyNotFound(err error) bool {
	return errors.Is(err, badger.ErrKeyNotFound)
}

func mapError(err error, name, key string) error {
	if err != nil {
		if isDBKeyNotFound(err) {
			return cm.NewStoreErr(name, cm.KeyNotFound, key)
		}
	}
	return err
}
