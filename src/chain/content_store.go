package chain

// ContentStore is the put/get view of the entries held in a Store.
type ContentStore struct {
	store Store
}

// NewContentStore ...
func NewContentStore(store Store) *ContentStore {
	return &ContentStore{store: store}
}

// Put stores data and returns its hash. Putting the same bytes twice returns
// the same hash and leaves the store unchanged.
func (c *ContentStore) Put(data []byte) (string, error) {
	entry := NewEntry(data)
	if c.store.HasEntry(entry.Hex()) {
		return entry.Hex(), nil
	}
	if err := c.store.SetEntry(entry); err != nil {
		return "", err
	}
	return entry.Hex(), nil
}

// Get returns the entry with the given hash or a KeyNotFound StoreErr.
func (c *ContentStore) Get(hash string) (*Entry, error) {
	return c.store.GetEntry(hash)
}

// Has ...
func (c *ContentStore) Has(hash string) bool {
	return c.store.HasEntry(hash)
}
