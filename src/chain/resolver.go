package chain

import (
	"fmt"
	"sort"
	"time"

	cm "github.com/idsov/recordstore/src/common"
	"github.com/sirupsen/logrus"
)

// Revision pairs a Create or Update action with the entry it wrote.
type Revision struct {
	Action *Action
	Entry  *Entry
}

// Revisions is an ordered list of revisions, origin first.
type Revisions []*Revision

// Entries returns the entries of the revisions, in the same order.
func (r Revisions) Entries() []*Entry {
	res := make([]*Entry, len(r))
	for i, rev := range r {
		res[i] = rev.Entry
	}
	return res
}

// Details gathers everything known locally about one action.
type Details struct {
	Action  *Action
	Entry   *Entry    //nil for Deletes
	Updates []*Action //Updates whose previous action is this one, oldest first
	Deletes []*Action //Deletes targeting this action, oldest first
}

// Resolver computes record views from the action log. Nothing is cached:
// every call walks the store again, so results always reflect the latest
// writes.
type Resolver struct {
	store  Store
	retry  time.Duration
	logger *logrus.Entry
}

// NewResolver creates a Resolver. When retry is positive, a lookup that fails
// with KeyNotFound is tried once more after waiting retry, in case the
// missing action is about to arrive from another peer.
func NewResolver(store Store, retry time.Duration, logger *logrus.Entry) *Resolver {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &Resolver{
		store:  store,
		retry:  retry,
		logger: logger,
	}
}

func (r *Resolver) getAction(hash string) (*Action, error) {
	action, err := r.store.GetAction(hash)
	if err != nil && r.retry > 0 && cm.IsStore(err, cm.KeyNotFound) {
		r.logger.WithField("action", hash).Debug("Action not found, retrying")
		time.Sleep(r.retry)
		action, err = r.store.GetAction(hash)
	}
	return action, err
}

func (r *Resolver) getEntry(hash string) (*Entry, error) {
	entry, err := r.store.GetEntry(hash)
	if err != nil && r.retry > 0 && cm.IsStore(err, cm.KeyNotFound) {
		r.logger.WithField("entry", hash).Debug("Entry not found, retrying")
		time.Sleep(r.retry)
		entry, err = r.store.GetEntry(hash)
	}
	return entry, err
}

// Origin resolves any action of a record to the Create that started it. A
// Delete resolves through its target. The hash itself being absent is a
// KeyNotFound error; a present action whose origin cannot be resolved is
// Malformed.
func (r *Resolver) Origin(hash string) (*Action, error) {
	action, err := r.getAction(hash)
	if err != nil {
		return nil, err
	}

	if action.Type() == Delete {
		target, err := r.getAction(action.Deleted())
		if err != nil {
			return nil, malformed(hash, fmt.Errorf("unresolvable delete target: %w", err))
		}
		action = target
	}

	switch action.Type() {
	case Create:
		return action, nil
	case Update:
		origin, err := r.getAction(action.Original())
		if err != nil {
			return nil, malformed(hash, fmt.Errorf("unresolvable origin: %w", err))
		}
		if origin.Type() != Create {
			return nil, malformed(hash, fmt.Errorf("origin %s is a %s", origin.Hex(), origin.Type()))
		}
		return origin, nil
	}

	return nil, malformed(hash, fmt.Errorf("unexpected action type %s", action.Type()))
}

// GetOriginal returns the entry written by the Create of the record that hash
// belongs to.
func (r *Resolver) GetOriginal(hash string) (*Entry, error) {
	origin, err := r.Origin(hash)
	if err != nil {
		return nil, err
	}
	return r.getEntry(origin.EntryHash())
}

// LatestAction returns the most recent action of the record that hash belongs
// to: the origin if it was never updated, the only tip of the update graph
// otherwise. When the graph forks, the tip with the greatest timestamp wins,
// and among equal timestamps the smallest action hash.
func (r *Resolver) LatestAction(hash string) (*Action, error) {
	origin, err := r.Origin(hash)
	if err != nil {
		return nil, err
	}

	updates, err := r.originUpdates(origin.Hex())
	if err != nil {
		return nil, err
	}

	if len(updates) == 0 {
		return origin, nil
	}

	// an action is a tip if no Update has it as previous
	hasChild := make(map[string]bool, len(updates)+1)
	for _, u := range updates {
		hasChild[u.Previous()] = true
	}

	var latest *Action
	for _, u := range updates {
		if hasChild[u.Hex()] {
			continue
		}
		if latest == nil ||
			u.Timestamp() > latest.Timestamp() ||
			(u.Timestamp() == latest.Timestamp() && u.Hex() < latest.Hex()) {
			latest = u
		}
	}

	if latest == nil {
		// every update has a child: only possible with a cycle
		return nil, malformed(origin.Hex(), fmt.Errorf("update graph has no tip"))
	}

	return latest, nil
}

// GetLatest returns the entry of LatestAction.
func (r *Resolver) GetLatest(hash string) (*Entry, error) {
	latest, err := r.LatestAction(hash)
	if err != nil {
		return nil, err
	}
	return r.getEntry(latest.EntryHash())
}

// GetAllRevisions returns the origin and every Update of its record, in a
// topological order along previous pointers. Whenever more than one action is
// ready, the one with the earliest timestamp (then smallest hash) comes next.
func (r *Resolver) GetAllRevisions(hash string) (Revisions, error) {
	origin, err := r.Origin(hash)
	if err != nil {
		return nil, err
	}

	updates, err := r.originUpdates(origin.Hex())
	if err != nil {
		return nil, err
	}

	children := make(map[string][]*Action)
	for _, u := range updates {
		children[u.Previous()] = append(children[u.Previous()], u)
	}

	ordered := make([]*Action, 0, len(updates)+1)
	ready := []*Action{origin}
	visited := make(map[string]bool, len(updates)+1)

	for len(ready) > 0 {
		sortActions(ready)
		next := ready[0]
		ready = ready[1:]

		if visited[next.Hex()] {
			continue
		}
		visited[next.Hex()] = true
		ordered = append(ordered, next)

		ready = append(ready, children[next.Hex()]...)
	}

	if len(ordered) != len(updates)+1 {
		return nil, malformed(origin.Hex(),
			fmt.Errorf("%d updates are not reachable from the origin", len(updates)+1-len(ordered)))
	}

	revisions := make(Revisions, len(ordered))
	for i, a := range ordered {
		entry, err := r.getEntry(a.EntryHash())
		if err != nil {
			return nil, err
		}
		revisions[i] = &Revision{Action: a, Entry: entry}
	}

	return revisions, nil
}

// GetAllDeletes returns the Deletes targeting hash, oldest first.
func (r *Resolver) GetAllDeletes(hash string) ([]*Action, error) {
	if _, err := r.getAction(hash); err != nil {
		return nil, err
	}

	hashes, err := r.store.TargetDeletes(hash)
	if err != nil {
		return nil, err
	}

	deletes, err := r.loadActions(hashes)
	if err != nil {
		return nil, err
	}

	sortActions(deletes)
	return deletes, nil
}

// GetOldestDelete returns the Delete targeting hash with the smallest
// timestamp, or a KeyNotFound error if there is none.
func (r *Resolver) GetOldestDelete(hash string) (*Action, error) {
	deletes, err := r.GetAllDeletes(hash)
	if err != nil {
		return nil, err
	}

	if len(deletes) == 0 {
		return nil, cm.NewStoreErr("Delete", cm.KeyNotFound, hash)
	}

	return deletes[0], nil
}

// GetRecordDetails returns an action with its entry, its direct successors and
// the Deletes targeting it.
func (r *Resolver) GetRecordDetails(hash string) (*Details, error) {
	action, err := r.getAction(hash)
	if err != nil {
		return nil, err
	}

	details := &Details{Action: action}

	if action.Type() == Delete {
		return details, nil
	}

	if details.Entry, err = r.getEntry(action.EntryHash()); err != nil {
		return nil, err
	}

	origin, err := r.Origin(hash)
	if err != nil {
		return nil, err
	}

	updates, err := r.originUpdates(origin.Hex())
	if err != nil {
		return nil, err
	}
	for _, u := range updates {
		if u.Previous() == hash {
			details.Updates = append(details.Updates, u)
		}
	}
	sortActions(details.Updates)

	if details.Deletes, err = r.GetAllDeletes(hash); err != nil {
		return nil, err
	}

	return details, nil
}

func (r *Resolver) originUpdates(origin string) ([]*Action, error) {
	hashes, err := r.store.OriginUpdates(origin)
	if err != nil {
		return nil, err
	}
	return r.loadActions(hashes)
}

func (r *Resolver) loadActions(hashes []string) ([]*Action, error) {
	res := make([]*Action, 0, len(hashes))
	for _, h := range hashes {
		a, err := r.getAction(h)
		if err != nil {
			// indexed by the store but unreadable
			return nil, malformed(h, err)
		}
		res = append(res, a)
	}
	return res, nil
}

// sortActions orders actions by timestamp, then by hash.
func sortActions(actions []*Action) {
	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].Timestamp() != actions[j].Timestamp() {
			return actions[i].Timestamp() < actions[j].Timestamp()
		}
		return actions[i].Hex() < actions[j].Hex()
	})
}

func malformed(hash string, cause error) error {
	return cm.NewStoreErrWithCause("Action", cm.Malformed, hash, cause)
}
