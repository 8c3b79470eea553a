// Package ingest is the boundary between the record store and the network
// collaborator that propagates actions between peers.
//
// Deliveries arrive in any order. An Ingester queues them and applies them
// one at a time from a single goroutine. A delivery that references a hash
// not yet known locally is parked under that hash and applied again as soon
// as a later delivery makes the hash available.
package ingest

import (
	"context"
	"errors"
	"sync"

	"github.com/idsov/recordstore/src/chain"
	cm "github.com/idsov/recordstore/src/common"
	"github.com/sirupsen/logrus"
)

// ErrStopped is returned by Deliver after Run has returned.
var ErrStopped = errors.New("ingester stopped")

// Delivery is an authenticated action together with the bytes of the entry
// it writes, if any. A delivery with a zero body only puts its entries, as a
// peer does when backfilling content another action is waiting for.
type Delivery struct {
	Body    chain.ActionBody `json:"action"`
	Entries [][]byte         `json:"entries,omitempty"`
}

// Action returns a fresh action built from the delivered body.
func (d Delivery) Action() *chain.Action {
	return &chain.Action{Body: d.Body}
}

// EntryOnly reports whether the delivery carries no action.
func (d Delivery) EntryOnly() bool {
	return d.Body == chain.ActionBody{}
}

// Hex identifies the delivery: the action hash, or the hash of the first
// entry of an entry-only delivery.
func (d Delivery) Hex() string {
	if d.EntryOnly() {
		if len(d.Entries) == 0 {
			return ""
		}
		return chain.NewEntry(d.Entries[0]).Hex()
	}
	return d.Action().Hex()
}

// Applier is the local write path a delivery goes through. records.Service
// implements it.
type Applier interface {
	ApplyRemote(entries [][]byte, action *chain.Action) error
	PutEntries(entries [][]byte) error
	Has(hash string) bool
}

// Ingester applies deliveries from a queue.
type Ingester struct {
	applier Applier
	queue   chan Delivery
	done    chan struct{}

	parkedLock sync.Mutex
	parked     map[string][]Delivery //missing hash => deliveries waiting for it
	pending    map[string]bool       //action hashes currently parked

	logger *logrus.Entry
}

// NewIngester creates an Ingester with a queue of queueSize deliveries.
func NewIngester(applier Applier, queueSize int, logger *logrus.Entry) *Ingester {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &Ingester{
		applier: applier,
		queue:   make(chan Delivery, queueSize),
		done:    make(chan struct{}),
		parked:  make(map[string][]Delivery),
		pending: make(map[string]bool),
		logger:  logger,
	}
}

// Deliver queues a delivery. It blocks while the queue is full, until ctx is
// done or the Ingester stops.
func (i *Ingester) Deliver(ctx context.Context, d Delivery) error {
	select {
	case <-i.done:
		return ErrStopped
	default:
	}

	select {
	case i.queue <- d:
		return nil
	case <-i.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run applies queued deliveries until ctx is done.
func (i *Ingester) Run(ctx context.Context) {
	defer close(i.done)

	for {
		select {
		case d := <-i.queue:
			i.Process(d)
		case <-ctx.Done():
			i.logger.WithField("pending", i.Pending()).Debug("Ingester stopped")
			return
		}
	}
}

// Has reports whether hash is present locally. Parked deliveries do not
// count.
func (i *Ingester) Has(hash string) bool {
	return i.applier.Has(hash)
}

// Pending returns the number of parked deliveries.
func (i *Ingester) Pending() int {
	i.parkedLock.Lock()
	defer i.parkedLock.Unlock()

	return len(i.pending)
}

// Missing returns the hashes parked deliveries are waiting for.
func (i *Ingester) Missing() []string {
	i.parkedLock.Lock()
	defer i.parkedLock.Unlock()

	res := make([]string, 0, len(i.parked))
	for h := range i.parked {
		res = append(res, h)
	}
	return res
}

// Process applies one delivery synchronously, then every parked delivery it
// unblocks. It returns the error of the first delivery, if it was not parked
// or dropped as a duplicate.
func (i *Ingester) Process(d Delivery) error {
	err := i.apply(d)

	work := i.available(d, err == nil)
	for len(work) > 0 {
		hash := work[0]
		work = work[1:]

		for _, p := range i.unpark(hash) {
			perr := i.apply(p)
			work = append(work, i.available(p, perr == nil)...)
		}
	}

	return err
}

// apply hands a delivery to the applier and parks it if a reference is
// missing.
func (i *Ingester) apply(d Delivery) error {
	if d.EntryOnly() {
		if err := i.applier.PutEntries(d.Entries); err != nil {
			i.logger.WithError(err).Error("Dropped entries")
			return err
		}
		i.logger.WithField("entries", len(d.Entries)).Debug("Stored entries")
		return nil
	}

	action := d.Action()

	err := i.applier.ApplyRemote(d.Entries, action)
	if err == nil {
		i.logger.WithFields(logrus.Fields{
			"action": action.Hex(),
			"type":   action.Type(),
		}).Debug("Applied delivery")
		return nil
	}

	var storeErr cm.StoreErr
	if errors.As(err, &storeErr) && storeErr.Type() == cm.KeyNotFound {
		i.park(storeErr.Key(), d)
		i.logger.WithFields(logrus.Fields{
			"action":  action.Hex(),
			"missing": storeErr.Key(),
		}).Debug("Parked delivery")
		return err
	}

	i.logger.WithField("action", action.Hex()).WithError(err).Error("Dropped delivery")
	return err
}

// available lists the hashes a processed delivery may have made available:
// its entries, which are stored even when the action is rejected, and the
// action itself when it was applied.
func (i *Ingester) available(d Delivery, applied bool) []string {
	res := []string{}
	for _, data := range d.Entries {
		res = append(res, chain.NewEntry(data).Hex())
	}
	if applied && !d.EntryOnly() {
		res = append(res, d.Action().Hex())
	}
	return res
}

func (i *Ingester) park(missing string, d Delivery) {
	i.parkedLock.Lock()
	defer i.parkedLock.Unlock()

	hash := d.Action().Hex()
	if i.pending[hash] {
		return
	}
	i.pending[hash] = true
	i.parked[missing] = append(i.parked[missing], d)
}

func (i *Ingester) unpark(hash string) []Delivery {
	i.parkedLock.Lock()
	defer i.parkedLock.Unlock()

	res := i.parked[hash]
	delete(i.parked, hash)
	for _, d := range res {
		delete(i.pending, d.Action().Hex())
	}
	return res
}
