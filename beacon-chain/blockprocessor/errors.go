package blockprocessor

import "github.com/pkg/errors"

// VerifierError classifies why add_block rejected or deferred a block.
// Only Invalid is peer-punishable; the rest prompt a retry or are silently
// absorbed by the caller.
type VerifierError struct {
	Kind ErrorKind
	err  error
}

// ErrorKind enumerates the taxonomy spec.md §4.3 names.
type ErrorKind int

const (
	// Invalid means the block failed state-transition verification and
	// its source peer should be penalized.
	Invalid ErrorKind = iota
	// MissingParent means the block (or its blobs) could not be routed
	// to state-transition yet; it has been quarantined for retry.
	MissingParent
	// UnviableFork means the block's slot is at or behind the finalized
	// slot: it can never become canonical.
	UnviableFork
	// Duplicate means the block root is already known to the DAG.
	Duplicate
	// QueueFull means the processor's intake queue rejected the block
	// under backpressure.
	QueueFull
)

func (k ErrorKind) String() string {
	switch k {
	case Invalid:
		return "invalid"
	case MissingParent:
		return "missing_parent"
	case UnviableFork:
		return "unviable_fork"
	case Duplicate:
		return "duplicate"
	case QueueFull:
		return "queue_full"
	default:
		return "unknown"
	}
}

func (e *VerifierError) Error() string {
	if e.err != nil {
		return e.Kind.String() + ": " + e.err.Error()
	}
	return e.Kind.String()
}

// Unwrap exposes the underlying cause, if any, for errors.Is/As chains.
func (e *VerifierError) Unwrap() error { return e.err }

func newVerifierError(kind ErrorKind, cause error) *VerifierError {
	return &VerifierError{Kind: kind, err: cause}
}

var errQueueClosed = errors.New("blockprocessor: queue closed")
