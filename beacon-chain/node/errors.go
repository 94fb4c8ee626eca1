package node

import "github.com/pkg/errors"

// FatalInitError reports a startup precondition that cannot be satisfied,
// the composition root's equivalent of blockprocessor.VerifierError: a
// typed, named failure class for the one phase (building the node) where
// an error always means "do not start."
type FatalInitError struct {
	Reason string
	err    error
}

func (e *FatalInitError) Error() string {
	if e.err != nil {
		return e.Reason + ": " + e.err.Error()
	}
	return e.Reason
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *FatalInitError) Unwrap() error { return e.err }

func newFatalInitError(reason string, cause error) *FatalInitError {
	return &FatalInitError{Reason: reason, err: cause}
}

var errWeakSubjectivityRootMismatch = errors.New("weak subjectivity checkpoint root does not match genesis at epoch 0")
