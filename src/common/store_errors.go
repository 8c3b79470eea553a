package common

import (
	"errors"
	"fmt"
)

// StoreErrType ...
type StoreErrType uint32

const (
	// KeyNotFound is returned when a referenced hash is absent. It is
	// recoverable: the missing item may still arrive from another peer.
	KeyNotFound StoreErrType = iota
	// Malformed is returned when a hash resolves but the item it names breaks
	// the action-chain rules.
	Malformed
	// Serialization is returned when a payload or action cannot be encoded or
	// decoded.
	Serialization
	// KeyAlreadyExists ...
	KeyAlreadyExists
)

// StoreErr ...
type StoreErr struct {
	dataType string
	errType  StoreErrType
	key      string
	cause    error
}

// NewStoreErr ...
func NewStoreErr(dataType string, errType StoreErrType, key string) StoreErr {
	return StoreErr{
		dataType: dataType,
		errType:  errType,
		key:      key,
	}
}

// NewStoreErrWithCause creates a StoreErr that wraps an underlying error.
func NewStoreErrWithCause(dataType string, errType StoreErrType, key string, cause error) StoreErr {
	err := NewStoreErr(dataType, errType, key)
	err.cause = cause
	return err
}

// Type returns the StoreErrType of the error.
func (e StoreErr) Type() StoreErrType {
	return e.errType
}

// Key returns the key, usually a hash, the error refers to.
func (e StoreErr) Key() string {
	return e.key
}

// Error ...
func (e StoreErr) Error() string {
	m := ""
	switch e.errType {
	case KeyNotFound:
		m = "Not Found"
	case Malformed:
		m = "Malformed"
	case Serialization:
		m = "Serialization Error"
	case KeyAlreadyExists:
		m = "Key Already Exists"
	}

	if e.cause != nil {
		return fmt.Sprintf("%s, %s, %s: %v", e.dataType, e.key, m, e.cause)
	}

	return fmt.Sprintf("%s, %s, %s", e.dataType, e.key, m)
}

// Unwrap returns the underlying cause, if any.
func (e StoreErr) Unwrap() error {
	return e.cause
}

// IsStore checks that an error is, or wraps, a StoreErr and that its code
// matches the provided StoreErr code.
func IsStore(err error, t StoreErrType) bool {
	var storeErr StoreErr
	return errors.As(err, &storeErr) && storeErr.errType == t
}
