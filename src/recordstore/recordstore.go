// Package recordstore assembles a record store node from its configuration:
// key, store, record service, ingester and HTTP service.
package recordstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/idsov/recordstore/src/chain"
	"github.com/idsov/recordstore/src/config"
	"github.com/idsov/recordstore/src/crypto/keys"
	"github.com/idsov/recordstore/src/ingest"
	"github.com/idsov/recordstore/src/links"
	"github.com/idsov/recordstore/src/records"
	"github.com/idsov/recordstore/src/service"
	"github.com/sirupsen/logrus"
)

// shutdownTimeout bounds how long Run waits for HTTP requests in flight.
const shutdownTimeout = 5 * time.Second

// RecordStore is a record store node.
type RecordStore struct {
	Config   *config.Config
	Store    chain.Store
	Records  *records.Service
	Ingester *ingest.Ingester
	Service  *service.Service

	runLock sync.Mutex
	cancel  context.CancelFunc
	running bool
	closed  bool

	logger *logrus.Entry
}

// NewRecordStore creates a RecordStore. Call Init before using it.
func NewRecordStore(c *config.Config) *RecordStore {
	return &RecordStore{
		Config: c,
		logger: c.Logger(),
	}
}

// Init initializes the key, the store, the record service, the ingester and,
// unless disabled, the HTTP service.
func (r *RecordStore) Init() error {
	if err := r.initKey(); err != nil {
		return err
	}

	if err := r.initStore(); err != nil {
		return err
	}

	if err := r.initRecords(); err != nil {
		return err
	}

	r.initIngester()

	r.initService()

	return nil
}

func (r *RecordStore) initKey() error {
	if r.Config.Key != nil {
		return nil
	}

	keyfile := keys.NewSimpleKeyfile(r.Config.Keyfile())

	key, created, err := keyfile.ReadOrGenerate()
	if err != nil {
		r.logger.WithError(err).Error("Cannot read or create private key")
		return err
	}

	if created {
		r.logger.WithField("path", keyfile.Path()).Info("Created a new key")
	}

	r.Config.Key = key

	return nil
}

func (r *RecordStore) initStore() error {
	if !r.Config.Store {
		r.Store = chain.NewInmemStore(r.Config.CacheSize)

		r.logger.Debug("created new in-mem store")

		return nil
	}

	tag, err := r.Config.CompressionTag()
	if err != nil {
		return err
	}

	r.logger.WithField("path", r.Config.DatabaseDir).Debug("Attempting to load or create database")

	store, err := chain.LoadOrCreateBadgerStore(
		r.Config.CacheSize,
		r.Config.DatabaseDir,
		tag,
		r.Config.Logger().WithField("prefix", "badger"),
	)
	if err != nil {
		return err
	}

	r.logger.WithField("actions", store.ActionCount()).Debug("Opened badger store")

	r.Store = store

	return nil
}

func (r *RecordStore) initRecords() error {
	r.Records = records.NewService(r.Store, links.NewIndex(), records.Config{
		Author:       keys.PublicKeyHex(&r.Config.Key.PublicKey),
		Path:         r.Config.Path,
		ResolveRetry: r.Config.ResolveRetry,
		Logger:       r.Config.Logger().WithField("prefix", "records"),
	})

	if err := r.Records.Rebuild(); err != nil {
		return fmt.Errorf("rebuilding link index: %s", err)
	}

	r.logger.WithFields(logrus.Fields{
		"moniker": r.Config.Moniker,
		"author":  r.Records.Author(),
		"path":    r.Records.Path(),
		"records": len(r.Records.ListAllRecords()),
	}).Debug("Record service ready")

	return nil
}

func (r *RecordStore) initIngester() {
	r.Ingester = ingest.NewIngester(
		r.Records,
		r.Config.IngestQueue,
		r.Config.Logger().WithField("prefix", "ingest"),
	)
}

func (r *RecordStore) initService() {
	if r.Config.NoService {
		return
	}

	r.Service = service.NewService(
		r.Config.ServiceAddr,
		r.Records,
		r.Ingester,
		r.Config.Logger().WithField("prefix", "service"),
	)
}

// Run starts the ingester and the HTTP service and blocks until ctx is done,
// Shutdown is called or the HTTP service fails. It closes the store before
// returning.
func (r *RecordStore) Run(ctx context.Context) error {
	r.runLock.Lock()
	if r.running || r.closed {
		r.runLock.Unlock()
		return fmt.Errorf("record store already running or shut down")
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.runLock.Unlock()

	defer cancel()

	ingestDone := make(chan struct{})
	go func() {
		r.Ingester.Run(ctx)
		close(ingestDone)
	}()

	serveErr := make(chan error, 1)
	if r.Service != nil {
		go func() {
			serveErr <- r.Service.Serve()
		}()
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
		cancel()
	}

	if r.Service != nil {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if serr := r.Service.Shutdown(sctx); serr != nil {
			r.logger.WithError(serr).Warn("HTTP service shutdown")
		}
		scancel()
	}

	<-ingestDone

	if cerr := r.close(); err == nil {
		err = cerr
	}

	return err
}

// Shutdown stops a running node. If the node is not running, it closes the
// store.
func (r *RecordStore) Shutdown() {
	r.runLock.Lock()
	running, cancel := r.running, r.cancel
	r.runLock.Unlock()

	r.logger.Debug("Shutdown")

	if running {
		cancel()
		return
	}

	if err := r.close(); err != nil {
		r.logger.WithError(err).Error("Closing store")
	}
}

func (r *RecordStore) close() error {
	r.runLock.Lock()
	defer r.runLock.Unlock()

	if r.closed || r.Store == nil {
		return nil
	}
	r.closed = true

	return r.Store.Close()
}
