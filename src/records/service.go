// Package records is the public surface of the record store. A Service
// composes the content store, the action log, the chain resolver and the
// link index into record-level operations: create, read, update, delete and
// list.
package records

import (
	"sync"
	"time"

	"github.com/idsov/recordstore/src/chain"
	cm "github.com/idsov/recordstore/src/common"
	"github.com/idsov/recordstore/src/links"
	"github.com/idsov/recordstore/src/record"
	"github.com/sirupsen/logrus"
)

// Config holds the settings of a Service.
type Config struct {
	// Author is the identifier stamped on local actions, usually the hex
	// public key of the node.
	Author string
	// Path is the name of the collection that records are linked from.
	Path string
	// ResolveRetry is how long the resolver waits before retrying a lookup
	// that failed with KeyNotFound. Zero disables the retry.
	ResolveRetry time.Duration
	// Now overrides the wall clock. Tests use it to control timestamps.
	Now func() time.Time
	// Logger defaults to a standard logrus logger.
	Logger *logrus.Entry
}

// Service implements the record operations on top of a chain.Store. Writes are
// serialized: an action and the link index update it causes are applied
// under the same lock, so List never observes one without the other.
type Service struct {
	sync.RWMutex

	author   string
	path     string
	anchor   string
	store    chain.Store
	content  *chain.ContentStore
	log      *chain.Log
	resolver *chain.Resolver
	links    *links.Index
	clock    *Clock
	logger   *logrus.Entry
}

// NewService creates a Service. Call Rebuild before serving reads if the store
// already contains actions.
func NewService(store chain.Store, index *links.Index, conf Config) *Service {
	logger := conf.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	path := conf.Path
	if path == "" {
		path = record.DefaultPath
	}

	if index == nil {
		index = links.NewIndex()
	}

	return &Service{
		author:   conf.Author,
		path:     path,
		anchor:   links.Anchor(path),
		store:    store,
		content:  chain.NewContentStore(store),
		log:      chain.NewLog(store, logger),
		resolver: chain.NewResolver(store, conf.ResolveRetry, logger),
		links:    index,
		clock:    NewClock(conf.Now),
		logger:   logger,
	}
}

// Author returns the identifier stamped on local actions.
func (s *Service) Author() string {
	return s.author
}

// Anchor returns the identifier of the collection records are linked from.
func (s *Service) Anchor() string {
	return s.anchor
}

// Path returns the name of the collection.
func (s *Service) Path() string {
	return s.path
}

// Store returns the underlying store.
func (s *Service) Store() chain.Store {
	return s.store
}

// Rebuild recomputes the link index from the action log and moves the clock
// past every timestamp this author already used.
func (s *Service) Rebuild() error {
	s.Lock()
	defer s.Unlock()

	if err := s.links.Rebuild(s.anchor, s.store); err != nil {
		return opError("rebuild", s.anchor, err)
	}

	actions, err := s.store.TopologicalActions(-1)
	if err != nil {
		return opError("rebuild", s.anchor, err)
	}
	for _, a := range actions {
		if a.Author() == s.author {
			s.clock.Observe(a.Timestamp())
		}
	}

	s.logger.WithFields(logrus.Fields{
		"actions": len(actions),
		"records": len(s.links.List(s.anchor)),
	}).Debug("Rebuilt link index")

	return nil
}

// CreateRecord stores payload and starts a new record with it. It returns the
// hash of the Create action.
func (s *Service) CreateRecord(payload interface{}) (string, error) {
	entry, err := chain.NewEntryFromPayload(payload)
	if err != nil {
		return "", opError("create", "", err)
	}

	s.Lock()
	defer s.Unlock()

	action := chain.NewCreateAction(s.author, s.clock.Next(), entry.Hex())

	if err := s.commit(action, entry); err != nil {
		return "", opError("create", action.Hex(), err)
	}

	return action.Hex(), nil
}

// ReadOriginal returns the entry the record was created with. hash may name
// any action of the record.
func (s *Service) ReadOriginal(hash string) (*chain.Entry, error) {
	entry, err := s.resolver.GetOriginal(hash)
	return entry, opError("read original", hash, err)
}

// ReadLatest returns the entry of the most recent revision of the record.
func (s *Service) ReadLatest(hash string) (*chain.Entry, error) {
	entry, err := s.resolver.GetLatest(hash)
	return entry, opError("read latest", hash, err)
}

// LatestAction returns the action that ReadLatest reads from. Its hash is the
// natural previous pointer for the next update.
func (s *Service) LatestAction(hash string) (*chain.Action, error) {
	action, err := s.resolver.LatestAction(hash)
	return action, opError("latest action", hash, err)
}

// UpdateRecord adds a revision to the record started by original, based on
// the revision previous. It returns the hash of the Update action.
func (s *Service) UpdateRecord(original, previous string, payload interface{}) (string, error) {
	entry, err := chain.NewEntryFromPayload(payload)
	if err != nil {
		return "", opError("update", original, err)
	}

	s.Lock()
	defer s.Unlock()

	action := chain.NewUpdateAction(s.author, s.clock.Next(), entry.Hex(), original, previous)

	if err := s.commit(action, entry); err != nil {
		return "", opError("update", original, err)
	}

	return action.Hex(), nil
}

// DeleteRecord tombstones the action hash. Deleting a Create removes the
// record from the collection; history stays readable either way.
func (s *Service) DeleteRecord(hash string) (string, error) {
	s.Lock()
	defer s.Unlock()

	action := chain.NewDeleteAction(s.author, s.clock.Next(), hash)

	if err := s.commit(action, nil); err != nil {
		return "", opError("delete", hash, err)
	}

	return action.Hex(), nil
}

// ListAllRecords returns the Create hashes of the records currently in the
// collection, in insertion order.
func (s *Service) ListAllRecords() []string {
	s.RLock()
	defer s.RUnlock()

	return s.links.List(s.anchor)
}

// GetAllRevisions returns every revision of the record, origin first.
func (s *Service) GetAllRevisions(hash string) (chain.Revisions, error) {
	revisions, err := s.resolver.GetAllRevisions(hash)
	return revisions, opError("revisions", hash, err)
}

// GetOldestDelete returns the earliest Delete targeting hash.
func (s *Service) GetOldestDelete(hash string) (*chain.Action, error) {
	action, err := s.resolver.GetOldestDelete(hash)
	return action, opError("oldest delete", hash, err)
}

// GetAllDeletes returns the Deletes targeting hash, oldest first.
func (s *Service) GetAllDeletes(hash string) ([]*chain.Action, error) {
	deletes, err := s.resolver.GetAllDeletes(hash)
	return deletes, opError("deletes", hash, err)
}

// GetRecordDetails returns an action with its entry, direct updates and
// deletes.
func (s *Service) GetRecordDetails(hash string) (*chain.Details, error) {
	details, err := s.resolver.GetRecordDetails(hash)
	return details, opError("details", hash, err)
}

// Has reports whether hash names an entry or an action present locally.
func (s *Service) Has(hash string) bool {
	return s.store.HasAction(hash) || s.store.HasEntry(hash)
}

// ApplyRemote applies an action authored elsewhere, together with the entry
// bytes it may reference. Entries are stored even if the action is rejected,
// so that a later retry finds them. Re-applying an action that is already
// present succeeds without changing anything.
func (s *Service) ApplyRemote(entries [][]byte, action *chain.Action) error {
	s.Lock()
	defer s.Unlock()

	for _, data := range entries {
		if _, err := s.content.Put(data); err != nil {
			return opError("apply", action.Hex(), err)
		}
	}

	err := s.insert(action)
	if cm.IsStore(err, cm.KeyAlreadyExists) {
		return nil
	}

	return opError("apply", action.Hex(), err)
}

// PutEntries stores entry bytes received from another peer without any
// action referencing them yet.
func (s *Service) PutEntries(entries [][]byte) error {
	s.Lock()
	defer s.Unlock()

	for _, data := range entries {
		hash, err := s.content.Put(data)
		if err != nil {
			return opError("put", hash, err)
		}
	}
	return nil
}

// commit stores entry, if any, then appends action. The caller holds the
// write lock.
func (s *Service) commit(action *chain.Action, entry *chain.Entry) error {
	if entry != nil {
		if err := s.store.SetEntry(entry); err != nil {
			return err
		}
	}
	return s.insert(action)
}

// insert inserts action in the log and applies it to the link index. The
// caller holds the write lock.
func (s *Service) insert(action *chain.Action) error {
	stored, err := s.log.Insert(action)
	if err != nil {
		return err
	}

	if err := s.links.Apply(s.anchor, stored, s.store); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"action": stored.Hex(),
		"type":   stored.Type(),
		"author": stored.Author(),
	}).Debug("Committed action")

	return nil
}
