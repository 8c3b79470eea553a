package chain

import (
	"sync"

	cm "github.com/idsov/recordstore/src/common"
)

// InmemStore implements the Store interface with plain maps. Nothing is ever
// evicted, so it holds the whole log in memory and loses it on exit. It is
// used for tests and for nodes started without a database.
type InmemStore struct {
	sync.RWMutex

	cacheSize int
	entries   map[string]*Entry   //hash => Entry
	actions   map[string]*Action  //hash => Action
	topo      []string            //topological index => hash
	updates   map[string][]string //origin => Update hashes
	deletes   map[string][]string //target => Delete hashes
}

// NewInmemStore ...
func NewInmemStore(cacheSize int) *InmemStore {
	return &InmemStore{
		cacheSize: cacheSize,
		entries:   make(map[string]*Entry),
		actions:   make(map[string]*Action),
		updates:   make(map[string][]string),
		deletes:   make(map[string][]string),
	}
}

// CacheSize implements the Store interface.
func (s *InmemStore) CacheSize() int {
	return s.cacheSize
}

// GetEntry implements the Store interface.
func (s *InmemStore) GetEntry(hash string) (*Entry, error) {
	s.RLock()
	defer s.RUnlock()

	entry, ok := s.entries[hash]
	if !ok {
		return nil, cm.NewStoreErr("Entry", cm.KeyNotFound, hash)
	}
	return entry, nil
}

// SetEntry implements the Store interface.
func (s *InmemStore) SetEntry(entry *Entry) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.entries[entry.Hex()]; !ok {
		s.entries[entry.Hex()] = entry
	}
	return nil
}

// HasEntry implements the Store interface.
func (s *InmemStore) HasEntry(hash string) bool {
	s.RLock()
	defer s.RUnlock()

	_, ok := s.entries[hash]
	return ok
}

// GetAction implements the Store interface.
func (s *InmemStore) GetAction(hash string) (*Action, error) {
	s.RLock()
	defer s.RUnlock()

	action, ok := s.actions[hash]
	if !ok {
		return nil, cm.NewStoreErr("Action", cm.KeyNotFound, hash)
	}
	return action, nil
}

// SetAction implements the Store interface. The action's topological index
// must already be set.
func (s *InmemStore) SetAction(action *Action) error {
	s.Lock()
	defer s.Unlock()

	hash := action.Hex()

	if _, ok := s.actions[hash]; ok {
		return cm.NewStoreErr("Action", cm.KeyAlreadyExists, hash)
	}

	s.actions[hash] = action
	s.topo = append(s.topo, hash)

	switch action.Type() {
	case Update:
		s.updates[action.Original()] = append(s.updates[action.Original()], hash)
	case Delete:
		s.deletes[action.Deleted()] = append(s.deletes[action.Deleted()], hash)
	}

	return nil
}

// HasAction implements the Store interface.
func (s *InmemStore) HasAction(hash string) bool {
	s.RLock()
	defer s.RUnlock()

	_, ok := s.actions[hash]
	return ok
}

// OriginUpdates implements the Store interface.
func (s *InmemStore) OriginUpdates(origin string) ([]string, error) {
	s.RLock()
	defer s.RUnlock()

	return append([]string{}, s.updates[origin]...), nil
}

// TargetDeletes implements the Store interface.
func (s *InmemStore) TargetDeletes(target string) ([]string, error) {
	s.RLock()
	defer s.RUnlock()

	return append([]string{}, s.deletes[target]...), nil
}

// TopologicalActions implements the Store interface.
func (s *InmemStore) TopologicalActions(skip int) ([]*Action, error) {
	s.RLock()
	defer s.RUnlock()

	start := skip + 1
	if start < 0 {
		start = 0
	}

	res := []*Action{}
	for i := start; i < len(s.topo); i++ {
		res = append(res, s.actions[s.topo[i]])
	}
	return res, nil
}

// ActionCount implements the Store interface.
func (s *InmemStore) ActionCount() int {
	s.RLock()
	defer s.RUnlock()

	return len(s.topo)
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}

// StorePath implements the Store interface.
func (s *InmemStore) StorePath() string {
	return ""
}
