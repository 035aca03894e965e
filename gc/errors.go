package gc

import "fmt"

// A FailureKind classifies the unrecoverable ways a heap can fail.
type FailureKind int

const (
	// HeapExhausted: no sufficient run of contiguous free pages exists,
	// even after a collection.
	HeapExhausted FailureKind = iota

	// CollectorReentry: a collection was triggered while one was already
	// running. The collector allocates destination pages through the
	// ordinary page acquirer, so running out of room mid-collection
	// surfaces here.
	CollectorReentry

	// OversizedObject: a single allocation request exceeds what the heap
	// could ever satisfy.
	OversizedObject

	// BadPointer: an internal consistency check failed. The heap is
	// corrupt, most likely through a bad exact root.
	BadPointer
)

// String returns the conventional name of the failure kind.
func (k FailureKind) String() string {
	switch k {
	case HeapExhausted:
		return "heap exhausted"
	case CollectorReentry:
		return "collector re-entry"
	case OversizedObject:
		return "oversized object"
	case BadPointer:
		return "bad pointer"
	default:
		return "unknown failure"
	}
}

// A FatalError reports an unrecoverable heap failure. None of these are
// meaningful to retry: the heap that raised one must be discarded.
type FatalError struct {
	Kind FailureKind
	Msg  string
}

func (e *FatalError) Error() string {
	return "gc: " + e.Kind.String() + ": " + e.Msg
}

// fatal raises an unrecoverable failure as a panic carrying a *FatalError.
// The entry shim recovers it at the host boundary and exits; tests recover it
// to observe the kind.
func (h *Heap) fatal(kind FailureKind, format string, args ...interface{}) {
	panic(&FatalError{Kind: kind, Msg: fmt.Sprintf(format, args...)})
}
