package chain

import (
	"fmt"
	"sync"

	cm "github.com/idsov/recordstore/src/common"
	"github.com/sirupsen/logrus"
)

// Log is the append-only action log. It is the single mutation entry point of
// a Store: every action, local or remote, goes through Insert. Inserts are
// serialized, so an action and its index keys are committed before the next
// one is checked.
type Log struct {
	sync.Mutex

	store  Store
	logger *logrus.Entry
}

// NewLog ...
func NewLog(store Store, logger *logrus.Entry) *Log {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &Log{
		store:  store,
		logger: logger,
	}
}

// Store returns the underlying Store.
func (l *Log) Store() Store {
	return l.store
}

// Append builds an action from its body and inserts it.
func (l *Log) Append(body ActionBody) (*Action, error) {
	return l.Insert(&Action{Body: body})
}

// Insert checks an action against the log and stores it. If an action with
// the same hash is already present, the stored action is returned together
// with a KeyAlreadyExists StoreErr and nothing is written.
func (l *Log) Insert(action *Action) (*Action, error) {
	l.Lock()
	defer l.Unlock()

	hash := action.Hex()

	if existing, err := l.store.GetAction(hash); err == nil {
		return existing, cm.NewStoreErr("Action", cm.KeyAlreadyExists, hash)
	}

	if err := l.check(action); err != nil {
		l.logger.WithFields(logrus.Fields{
			"action": hash,
			"type":   action.Type(),
			"author": action.Author(),
		}).WithError(err).Debug("Rejected action")
		return nil, err
	}

	action.topologicalIndex = l.store.ActionCount()

	if err := l.store.SetAction(action); err != nil {
		return nil, err
	}

	l.logger.WithFields(logrus.Fields{
		"action": hash,
		"type":   action.Type(),
		"index":  action.topologicalIndex,
	}).Debug("Appended action")

	return action, nil
}

// Get returns an action by hash.
func (l *Log) Get(hash string) (*Action, error) {
	return l.store.GetAction(hash)
}

// Has ...
func (l *Log) Has(hash string) bool {
	return l.store.HasAction(hash)
}

// Count returns the number of actions in the log.
func (l *Log) Count() int {
	return l.store.ActionCount()
}

func (l *Log) check(action *Action) error {
	hash := action.Hex()

	if err := action.checkShape(); err != nil {
		return cm.NewStoreErrWithCause("Action", cm.Malformed, hash, err)
	}

	for _, ref := range action.References() {
		if ref == hash {
			return cm.NewStoreErrWithCause("Action", cm.Malformed, hash,
				fmt.Errorf("action references itself"))
		}
	}

	switch action.Type() {
	case Create:
		return l.checkEntry(action)
	case Update:
		if err := l.checkEntry(action); err != nil {
			return err
		}
		if err := l.checkOriginal(action); err != nil {
			return err
		}
		return l.checkPrevious(action)
	case Delete:
		return l.checkDeleted(action)
	}

	return nil
}

func (l *Log) checkEntry(action *Action) error {
	if !l.store.HasEntry(action.EntryHash()) {
		return cm.NewStoreErr("Entry", cm.KeyNotFound, action.EntryHash())
	}
	return nil
}

// checkOriginal verifies that the original pointer of an Update names a
// Create.
func (l *Log) checkOriginal(action *Action) error {
	original, err := l.store.GetAction(action.Original())
	if err != nil {
		return err
	}

	if original.Type() != Create {
		return cm.NewStoreErrWithCause("Action", cm.Malformed, action.Hex(),
			fmt.Errorf("original action %s is a %s, not a Create", action.Original(), original.Type()))
	}

	return nil
}

// checkPrevious verifies that the previous pointer of an Update names the
// origin itself or another Update of the same origin.
func (l *Log) checkPrevious(action *Action) error {
	previous, err := l.store.GetAction(action.Previous())
	if err != nil {
		return err
	}

	switch previous.Type() {
	case Create:
		if previous.Hex() != action.Original() {
			return cm.NewStoreErrWithCause("Action", cm.Malformed, action.Hex(),
				fmt.Errorf("previous action %s is a different Create than the original", action.Previous()))
		}
	case Update:
		if previous.Original() != action.Original() {
			return cm.NewStoreErrWithCause("Action", cm.Malformed, action.Hex(),
				fmt.Errorf("previous action %s belongs to another record", action.Previous()))
		}
	default:
		return cm.NewStoreErrWithCause("Action", cm.Malformed, action.Hex(),
			fmt.Errorf("previous action %s is a %s", action.Previous(), previous.Type()))
	}

	return nil
}

// checkDeleted verifies that a Delete targets a Create or an Update.
func (l *Log) checkDeleted(action *Action) error {
	target, err := l.store.GetAction(action.Deleted())
	if err != nil {
		return err
	}

	if target.Type() == Delete {
		return cm.NewStoreErrWithCause("Action", cm.Malformed, action.Hex(),
			fmt.Errorf("cannot delete Delete action %s", action.Deleted()))
	}

	return nil
}
