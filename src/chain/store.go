package chain

// Store is an interface for backend stores. Entries and actions are
// append-only: there is no way to modify or remove them once set.
type Store interface {
	// CacheSize retrieves the cacheSize setting that determines the maximum
	// number of items that caches can contain.
	CacheSize() int
	// GetEntry returns an entry by hash.
	GetEntry(hash string) (*Entry, error)
	// SetEntry stores an entry. Setting an existing entry is a no-op.
	SetEntry(entry *Entry) error
	// HasEntry reports whether an entry is present.
	HasEntry(hash string) bool
	// GetAction returns an action by hash.
	GetAction(hash string) (*Action, error)
	// SetAction stores an action and indexes it under its origin (Updates) or
	// its target (Deletes). It returns a KeyAlreadyExists StoreErr, and
	// changes nothing, if the action is already present.
	SetAction(action *Action) error
	// HasAction reports whether an action is present.
	HasAction(hash string) bool
	// OriginUpdates returns the hashes of the Updates whose original action is
	// origin, in insertion order.
	OriginUpdates(origin string) ([]string, error)
	// TargetDeletes returns the hashes of the Deletes that target an action,
	// in insertion order.
	TargetDeletes(target string) ([]string, error)
	// TopologicalActions returns the actions with a topological index greater
	// than skip, in topological order.
	TopologicalActions(skip int) ([]*Action, error)
	// ActionCount returns the number of actions in the store.
	ActionCount() int
	// Close closes the underlying database.
	Close() error
	// StorePath returns the filepath of the underlying database.
	StorePath() string
}
