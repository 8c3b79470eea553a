package service

import (
	"github.com/idsov/recordstore/src/chain"
	"github.com/idsov/recordstore/src/record"
)

// HashResponse is returned by write operations.
type HashResponse struct {
	Hash string `json:"hash"`
}

// HasResponse ...
type HasResponse struct {
	Hash string `json:"hash"`
	Has  bool   `json:"has"`
}

// ErrorResponse ...
type ErrorResponse struct {
	Error string `json:"error"`
}

// UpdateRequest is the body of PUT /records/{hash}. When Previous is empty the
// update is based on the latest revision.
type UpdateRequest struct {
	Previous string              `json:"previous,omitempty"`
	Record   record.HealthRecord `json:"record"`
}

// EntryView is a decoded entry.
type EntryView struct {
	Hash   string              `json:"hash"`
	Record record.HealthRecord `json:"record"`
}

// NewEntryView decodes e into a HealthRecord.
func NewEntryView(e *chain.Entry) (EntryView, error) {
	view := EntryView{Hash: e.Hex()}
	err := e.Decode(&view.Record)
	return view, err
}

// ActionView is an action with its hash.
type ActionView struct {
	Hash string `json:"hash"`
	chain.ActionBody
}

// NewActionView ...
func NewActionView(a *chain.Action) ActionView {
	return ActionView{Hash: a.Hex(), ActionBody: a.Body}
}

// NewActionViews maps NewActionView over actions, keeping their order.
func NewActionViews(actions []*chain.Action) []ActionView {
	res := make([]ActionView, len(actions))
	for i, a := range actions {
		res[i] = NewActionView(a)
	}
	return res
}

// RevisionView ...
type RevisionView struct {
	Action ActionView `json:"action"`
	Entry  EntryView  `json:"entry"`
}

// DetailsView ...
type DetailsView struct {
	Action  ActionView   `json:"action"`
	Entry   *EntryView   `json:"entry,omitempty"`
	Updates []ActionView `json:"updates"`
	Deletes []ActionView `json:"deletes"`
}

// NewRevisionViews ...
func NewRevisionViews(revisions chain.Revisions) ([]RevisionView, error) {
	res := make([]RevisionView, len(revisions))
	for i, rev := range revisions {
		view, err := NewEntryView(rev.Entry)
		if err != nil {
			return nil, err
		}
		res[i] = RevisionView{Action: NewActionView(rev.Action), Entry: view}
	}
	return res, nil
}

// NewDetailsView ...
func NewDetailsView(details *chain.Details) (DetailsView, error) {
	res := DetailsView{
		Action:  NewActionView(details.Action),
		Updates: NewActionViews(details.Updates),
		Deletes: NewActionViews(details.Deletes),
	}
	if details.Entry != nil {
		view, err := NewEntryView(details.Entry)
		if err != nil {
			return res, err
		}
		res.Entry = &view
	}
	return res, nil
}
