package chain

import (
	"fmt"

	"github.com/idsov/recordstore/src/common"
	"github.com/idsov/recordstore/src/crypto"
	"github.com/ugorji/go/codec"
)

// ActionType ...
type ActionType uint8

const (
	// Create starts a record.
	Create ActionType = iota + 1
	// Update adds a revision to a record.
	Update
	// Delete tombstones a Create or an Update.
	Delete
)

func (t ActionType) String() string {
	switch t {
	case Create:
		return "Create"
	case Update:
		return "Update"
	case Delete:
		return "Delete"
	default:
		return fmt.Sprintf("ActionType(%d)", uint8(t))
	}
}

// MarshalText implements encoding.TextMarshaler. The zero type, carried by
// entry-only deliveries, is the empty string.
func (t ActionType) MarshalText() ([]byte, error) {
	switch t {
	case 0:
		return []byte{}, nil
	case Create, Update, Delete:
		return []byte(t.String()), nil
	}
	return nil, fmt.Errorf("unknown action type %d", uint8(t))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ActionType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "":
		*t = 0
	case "Create":
		*t = Create
	case "Update":
		*t = Update
	case "Delete":
		*t = Delete
	default:
		return fmt.Errorf("unknown action type %q", text)
	}
	return nil
}

/*******************************************************************************
ActionBody
*******************************************************************************/

// ActionBody is the hashed content of an Action. Which pointers are set
// depends on Type:
//
//	Create: EntryHash
//	Update: EntryHash, OriginalActionHash, PreviousActionHash
//	Delete: DeletedActionHash
type ActionBody struct {
	Type               ActionType `codec:"type" json:"type"`
	Author             string     `codec:"author" json:"author"`
	Timestamp          int64      `codec:"timestamp" json:"timestamp"` //unix nanoseconds, monotonic per author
	EntryHash          string     `codec:"entry_hash,omitempty" json:"entry_hash,omitempty"`
	OriginalActionHash string     `codec:"original_action_hash,omitempty" json:"original_action_hash,omitempty"`
	PreviousActionHash string     `codec:"previous_action_hash,omitempty" json:"previous_action_hash,omitempty"`
	DeletedActionHash  string     `codec:"deleted_action_hash,omitempty" json:"deleted_action_hash,omitempty"`
}

func jsonHandle() *codec.JsonHandle {
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	return jh
}

// Marshal returns the canonical JSON encoding of the body.
func (b *ActionBody) Marshal() ([]byte, error) {
	var out []byte
	enc := codec.NewEncoderBytes(&out, jsonHandle())
	if err := enc.Encode(b); err != nil {
		return nil, err
	}
	return out, nil
}

// Unmarshal converts a JSON encoded ActionBody to an ActionBody.
func (b *ActionBody) Unmarshal(data []byte) error {
	dec := codec.NewDecoderBytes(data, jsonHandle())
	return dec.Decode(b)
}

// Hash returns the SHA256 hash of the canonical JSON encoding of the body.
func (b *ActionBody) Hash() ([]byte, error) {
	data, err := b.Marshal()
	if err != nil {
		return nil, err
	}
	return crypto.SHA256(data), nil
}

/*******************************************************************************
Action
*******************************************************************************/

// Action is the unit of the log. The topological index is assigned by the
// Log when the action is inserted and is not part of the hash.
type Action struct {
	Body ActionBody

	topologicalIndex int

	hash []byte
	hex  string
}

// NewCreateAction ...
func NewCreateAction(author string, timestamp int64, entryHash string) *Action {
	return &Action{
		Body: ActionBody{
			Type:      Create,
			Author:    author,
			Timestamp: timestamp,
			EntryHash: entryHash,
		},
	}
}

// NewUpdateAction ...
func NewUpdateAction(author string, timestamp int64, entryHash, original, previous string) *Action {
	return &Action{
		Body: ActionBody{
			Type:               Update,
			Author:             author,
			Timestamp:          timestamp,
			EntryHash:          entryHash,
			OriginalActionHash: original,
			PreviousActionHash: previous,
		},
	}
}

// NewDeleteAction ...
func NewDeleteAction(author string, timestamp int64, deleted string) *Action {
	return &Action{
		Body: ActionBody{
			Type:              Delete,
			Author:            author,
			Timestamp:         timestamp,
			DeletedActionHash: deleted,
		},
	}
}

// Type ...
func (a *Action) Type() ActionType {
	return a.Body.Type
}

// Author ...
func (a *Action) Author() string {
	return a.Body.Author
}

// Timestamp ...
func (a *Action) Timestamp() int64 {
	return a.Body.Timestamp
}

// EntryHash returns the hash of the entry written by a Create or an Update.
func (a *Action) EntryHash() string {
	return a.Body.EntryHash
}

// Original returns the origin pointer of an Update.
func (a *Action) Original() string {
	return a.Body.OriginalActionHash
}

// Previous returns the previous-action pointer of an Update.
func (a *Action) Previous() string {
	return a.Body.PreviousActionHash
}

// Deleted returns the target of a Delete.
func (a *Action) Deleted() string {
	return a.Body.DeletedActionHash
}

// TopologicalIndex is the position of the action in the local log.
func (a *Action) TopologicalIndex() int {
	return a.topologicalIndex
}

// References returns the hashes of the actions this one points to.
func (a *Action) References() []string {
	switch a.Body.Type {
	case Update:
		if a.Body.OriginalActionHash == a.Body.PreviousActionHash {
			return []string{a.Body.OriginalActionHash}
		}
		return []string{a.Body.OriginalActionHash, a.Body.PreviousActionHash}
	case Delete:
		return []string{a.Body.DeletedActionHash}
	}
	return nil
}

// Hash returns the SHA256 hash of the canonical JSON body.
func (a *Action) Hash() ([]byte, error) {
	if len(a.hash) == 0 {
		hash, err := a.Body.Hash()
		if err != nil {
			return nil, err
		}
		a.hash = hash
	}
	return a.hash, nil
}

// Hex returns a hex string representation of the Action's hash.
func (a *Action) Hex() string {
	if a.hex == "" {
		hash, _ := a.Hash()
		a.hex = common.EncodeToString(hash)
	}
	return a.hex
}

// checkShape verifies that the pointers required by the action type are set,
// and only those.
func (a *Action) checkShape() error {
	b := a.Body

	if b.Author == "" {
		return fmt.Errorf("missing author")
	}

	switch b.Type {
	case Create:
		if b.EntryHash == "" {
			return fmt.Errorf("Create without entry hash")
		}
		if b.OriginalActionHash != "" || b.PreviousActionHash != "" || b.DeletedActionHash != "" {
			return fmt.Errorf("Create with action pointers")
		}
	case Update:
		if b.EntryHash == "" || b.OriginalActionHash == "" || b.PreviousActionHash == "" {
			return fmt.Errorf("Update requires entry, original and previous hashes")
		}
		if b.DeletedActionHash != "" {
			return fmt.Errorf("Update with deleted action hash")
		}
	case Delete:
		if b.DeletedActionHash == "" {
			return fmt.Errorf("Delete without target")
		}
		if b.EntryHash != "" || b.OriginalActionHash != "" || b.PreviousActionHash != "" {
			return fmt.Errorf("Delete with entry or update pointers")
		}
	default:
		return fmt.Errorf("unknown action type %d", uint8(b.Type))
	}

	return nil
}

type actionWrapper struct {
	Body             ActionBody `codec:"body"`
	TopologicalIndex int        `codec:"topological_index"`
}

// MarshalDB returns the JSON encoding of the Action along with its
// topological index, which the body encoding leaves out.
func (a *Action) MarshalDB() ([]byte, error) {
	wrapper := actionWrapper{
		Body:             a.Body,
		TopologicalIndex: a.topologicalIndex,
	}

	var out []byte
	enc := codec.NewEncoderBytes(&out, jsonHandle())
	if err := enc.Encode(wrapper); err != nil {
		return nil, err
	}
	return out, nil
}

// UnmarshalDB is the inverse of MarshalDB.
func (a *Action) UnmarshalDB(data []byte) error {
	var wrapper actionWrapper

	dec := codec.NewDecoderBytes(data, jsonHandle())
	if err := dec.Decode(&wrapper); err != nil {
		return err
	}

	a.Body = wrapper.Body
	a.topologicalIndex = wrapper.TopologicalIndex

	// loaded actions are cached and shared between readers
	hash, err := a.Body.Hash()
	if err != nil {
		return err
	}
	a.hash = hash
	a.hex = common.EncodeToString(hash)

	return nil
}
