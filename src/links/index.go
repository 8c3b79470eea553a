// Package links maintains collection membership: for each anchor, the ordered
// set of origin hashes of the records linked from it.
//
// The Index is a derived cache. It is never persisted and is rebuilt from the
// action log at startup.
package links

import (
	"sync"

	"github.com/idsov/recordstore/src/chain"
	"github.com/idsov/recordstore/src/common"
	"github.com/idsov/recordstore/src/crypto"
)

// Anchor returns the identifier of the collection rooted at path.
func Anchor(path string) string {
	return common.EncodeToString(crypto.AnchorHash(path))
}

// set is an insertion-ordered set of hashes.
type set struct {
	order []string
	index map[string]int
}

func newSet() *set {
	return &set{index: make(map[string]int)}
}

func (s *set) add(h string) bool {
	if _, ok := s.index[h]; ok {
		return false
	}
	s.index[h] = len(s.order)
	s.order = append(s.order, h)
	return true
}

func (s *set) remove(h string) bool {
	i, ok := s.index[h]
	if !ok {
		return false
	}
	s.order = append(s.order[:i], s.order[i+1:]...)
	delete(s.index, h)
	for j := i; j < len(s.order); j++ {
		s.index[s.order[j]] = j
	}
	return true
}

// Index maps anchors to sets of target hashes. It is safe for concurrent use.
type Index struct {
	sync.RWMutex
	anchors map[string]*set
}

// NewIndex ...
func NewIndex() *Index {
	return &Index{anchors: make(map[string]*set)}
}

// Add inserts target under anchor. Adding an existing target is a no-op.
func (i *Index) Add(anchor, target string) bool {
	i.Lock()
	defer i.Unlock()

	s, ok := i.anchors[anchor]
	if !ok {
		s = newSet()
		i.anchors[anchor] = s
	}
	return s.add(target)
}

// Remove removes target from anchor, if present.
func (i *Index) Remove(anchor, target string) bool {
	i.Lock()
	defer i.Unlock()

	s, ok := i.anchors[anchor]
	if !ok {
		return false
	}
	return s.remove(target)
}

// List returns the targets of anchor in insertion order.
func (i *Index) List(anchor string) []string {
	i.RLock()
	defer i.RUnlock()

	s, ok := i.anchors[anchor]
	if !ok {
		return []string{}
	}
	return append([]string{}, s.order...)
}

// Contains ...
func (i *Index) Contains(anchor, target string) bool {
	i.RLock()
	defer i.RUnlock()

	s, ok := i.anchors[anchor]
	if !ok {
		return false
	}
	_, ok = s.index[target]
	return ok
}

// Apply updates anchor for one action: a Create is added, a Delete of a
// Create removes its target. Updates and Deletes of Updates leave the index
// unchanged. The target of a Delete is looked up in store.
func (i *Index) Apply(anchor string, action *chain.Action, store chain.Store) error {
	switch action.Type() {
	case chain.Create:
		i.Add(anchor, action.Hex())
	case chain.Delete:
		target, err := store.GetAction(action.Deleted())
		if err != nil {
			return err
		}
		if target.Type() == chain.Create {
			i.Remove(anchor, target.Hex())
		}
	}
	return nil
}

// Rebuild clears anchor and replays every action of store in topological
// order.
func (i *Index) Rebuild(anchor string, store chain.Store) error {
	i.Lock()
	delete(i.anchors, anchor)
	i.Unlock()

	actions, err := store.TopologicalActions(-1)
	if err != nil {
		return err
	}

	for _, a := range actions {
		if err := i.Apply(anchor, a, store); err != nil {
			return err
		}
	}

	return nil
}
