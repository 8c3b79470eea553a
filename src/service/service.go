// Package service exposes the record store over HTTP with JSON bodies.
//
//	GET    /records                      list the records of the collection
//	POST   /records                      create a record
//	PUT    /records/{hash}               update the record started by {hash}
//	DELETE /records/{hash}               delete the action {hash}
//	GET    /records/{hash}/original      original revision
//	GET    /records/{hash}/latest        latest revision
//	GET    /records/{hash}/revisions     every revision, origin first
//	GET    /records/{hash}/deletes       deletes targeting {hash}, oldest first
//	GET    /records/{hash}/oldest-delete earliest delete targeting {hash}
//	GET    /records/{hash}/details       action, entry, updates and deletes
//	GET    /has/{hash}                   whether an entry or action is present
//	POST   /actions                      deliver an action from another peer
package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/idsov/recordstore/src/chain"
	cm "github.com/idsov/recordstore/src/common"
	"github.com/idsov/recordstore/src/ingest"
	"github.com/idsov/recordstore/src/record"
	"github.com/idsov/recordstore/src/records"
	"github.com/sirupsen/logrus"
)

// Deliverer queues actions received from other peers. ingest.Ingester
// implements it.
type Deliverer interface {
	Deliver(ctx context.Context, d ingest.Delivery) error
}

// Service ...
type Service struct {
	bindAddress string
	records     *records.Service
	ingester    Deliverer
	mux         *http.ServeMux
	server      *http.Server
	logger      *logrus.Entry
}

// NewService creates a Service and registers its handlers. ingester may be
// nil, in which case POST /actions is not available.
func NewService(bindAddress string, rs *records.Service, ingester Deliverer, logger *logrus.Entry) *Service {
	service := &Service{
		bindAddress: bindAddress,
		records:     rs,
		ingester:    ingester,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.server = &http.Server{
		Addr:    bindAddress,
		Handler: service.mux,
	}

	service.registerHandlers()

	return service
}

// registerHandlers registers the API handlers with the Service's own ServeMux,
// so several nodes can run in one process.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering record store API handlers")
	s.mux.HandleFunc("/records", s.makeHandler(s.handleRecords))
	s.mux.HandleFunc("/records/", s.makeHandler(s.handleRecord))
	s.mux.HandleFunc("/has/", s.makeHandler(s.GetHas))
	if s.ingester != nil {
		s.mux.HandleFunc("/actions", s.makeHandler(s.PostAction))
	}
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		s.logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Debug("Request")

		fn(w, r)
	}
}

// Handler returns the http.Handler serving the API.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call which returns
// http.ErrServerClosed after Shutdown.
func (s *Service) Serve() error {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving record store API")

	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error(err)
	}
	return err
}

// Shutdown stops the server. A later or concurrent call to Serve returns
// http.ErrServerClosed.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

/*******************************************************************************
Routing
*******************************************************************************/

func (s *Service) handleRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.ListRecords(w, r)
	case http.MethodPost:
		s.CreateRecord(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handleRecord routes /records/{hash} and /records/{hash}/{view}.
func (s *Service) handleRecord(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path[len("/records/"):], "/"), "/")
	hash := parts[0]

	if hash == "" || len(parts) > 2 {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodPut:
			s.UpdateRecord(w, r, hash)
		case http.MethodDelete:
			s.DeleteRecord(w, r, hash)
		default:
			methodNotAllowed(w, http.MethodPut, http.MethodDelete)
		}
		return
	}

	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	switch parts[1] {
	case "original":
		s.GetOriginal(w, r, hash)
	case "latest":
		s.GetLatest(w, r, hash)
	case "revisions":
		s.GetRevisions(w, r, hash)
	case "deletes":
		s.GetDeletes(w, r, hash)
	case "oldest-delete":
		s.GetOldestDelete(w, r, hash)
	case "details":
		s.GetDetails(w, r, hash)
	default:
		http.NotFound(w, r)
	}
}

/*******************************************************************************
Handlers
*******************************************************************************/

// ListRecords ...
func (s *Service) ListRecords(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.records.ListAllRecords())
}

// CreateRecord ...
func (s *Service) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var rec record.HealthRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		s.badRequest(w, err)
		return
	}

	hash, err := s.records.CreateRecord(rec)
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, HashResponse{Hash: hash})
}

// UpdateRecord ...
func (s *Service) UpdateRecord(w http.ResponseWriter, r *http.Request, original string) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, err)
		return
	}

	previous := req.Previous
	if previous == "" {
		latest, err := s.records.LatestAction(original)
		if err != nil {
			s.fail(w, err)
			return
		}
		previous = latest.Hex()
	}

	hash, err := s.records.UpdateRecord(original, previous, req.Record)
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, HashResponse{Hash: hash})
}

// DeleteRecord ...
func (s *Service) DeleteRecord(w http.ResponseWriter, r *http.Request, hash string) {
	deleteHash, err := s.records.DeleteRecord(hash)
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, HashResponse{Hash: deleteHash})
}

// GetOriginal ...
func (s *Service) GetOriginal(w http.ResponseWriter, r *http.Request, hash string) {
	entry, err := s.records.ReadOriginal(hash)
	s.writeEntry(w, entry, err)
}

// GetLatest ...
func (s *Service) GetLatest(w http.ResponseWriter, r *http.Request, hash string) {
	entry, err := s.records.ReadLatest(hash)
	s.writeEntry(w, entry, err)
}

// GetRevisions ...
func (s *Service) GetRevisions(w http.ResponseWriter, r *http.Request, hash string) {
	revisions, err := s.records.GetAllRevisions(hash)
	if err != nil {
		s.fail(w, err)
		return
	}

	res, err := NewRevisionViews(revisions)
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// GetDeletes ...
func (s *Service) GetDeletes(w http.ResponseWriter, r *http.Request, hash string) {
	deletes, err := s.records.GetAllDeletes(hash)
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, NewActionViews(deletes))
}

// GetOldestDelete ...
func (s *Service) GetOldestDelete(w http.ResponseWriter, r *http.Request, hash string) {
	action, err := s.records.GetOldestDelete(hash)
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, NewActionView(action))
}

// GetDetails ...
func (s *Service) GetDetails(w http.ResponseWriter, r *http.Request, hash string) {
	details, err := s.records.GetRecordDetails(hash)
	if err != nil {
		s.fail(w, err)
		return
	}

	res, err := NewDetailsView(details)
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// GetHas ...
func (s *Service) GetHas(w http.ResponseWriter, r *http.Request) {
	hash := r.URL.Path[len("/has/"):]
	writeJSON(w, http.StatusOK, HasResponse{Hash: hash, Has: s.records.Has(hash)})
}

// PostAction queues a delivery from another peer. The action is applied
// asynchronously; poll /has/{hash} to see it land.
func (s *Service) PostAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var d ingest.Delivery
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		s.badRequest(w, err)
		return
	}

	if d.EntryOnly() && len(d.Entries) == 0 {
		s.badRequest(w, errors.New("empty delivery"))
		return
	}

	if err := s.ingester.Deliver(r.Context(), d); err != nil {
		s.logger.WithError(err).Error("Queueing delivery")
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, HashResponse{Hash: d.Hex()})
}

/*******************************************************************************
Helpers
*******************************************************************************/

func (s *Service) writeEntry(w http.ResponseWriter, entry *chain.Entry, err error) {
	if err != nil {
		s.fail(w, err)
		return
	}

	view, err := NewEntryView(entry)
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// fail maps an error to a status code: KeyNotFound is 404, Malformed is 422,
// Serialization is 400, anything else is 500.
func (s *Service) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case cm.IsStore(err, cm.KeyNotFound):
		status = http.StatusNotFound
	case cm.IsStore(err, cm.Malformed):
		status = http.StatusUnprocessableEntity
	case cm.IsStore(err, cm.Serialization):
		status = http.StatusBadRequest
	}

	entry := s.logger.WithError(err).WithField("status", status)
	if status == http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request failed")
	}

	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (s *Service) badRequest(w http.ResponseWriter, err error) {
	s.logger.WithError(err).Debug("Bad request body")
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
