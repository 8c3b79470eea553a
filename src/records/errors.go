package records

import "fmt"

// OpError is returned by every Service operation that fails. It records the
// operation and the hash it was called with, and wraps the underlying error,
// usually a common.StoreErr.
type OpError struct {
	Op   string
	Hash string
	Err  error
}

func (e *OpError) Error() string {
	if e.Hash == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Hash, e.Err)
}

// Unwrap ...
func (e *OpError) Unwrap() error {
	return e.Err
}

func opError(op, hash string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Hash: hash, Err: err}
}
