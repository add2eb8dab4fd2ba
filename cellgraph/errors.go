package cellgraph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCyclicDependency is matched by *CycleError.
	ErrCyclicDependency = errors.New("cellgraph: cyclic dependency")

	// ErrUseAfterDispose is matched by *DisposedError. Reading, writing or
	// disposing something that was already torn down is a programming error.
	ErrUseAfterDispose = errors.New("cellgraph: use after dispose")

	// ErrComputation is matched by *ComputationError.
	ErrComputation = errors.New("cellgraph: computation failed")

	// ErrUnsettled is returned when deferred writes keep re-triggering passes
	// beyond the configured limit.
	ErrUnsettled = errors.New("cellgraph: flush did not settle")

	ErrDuplicateEntry = errors.New("cellgraph: duplicate entry name")
	ErrUnknownEntry   = errors.New("cellgraph: unknown entry")
	ErrEntryType      = errors.New("cellgraph: entry type mismatch")
)

// CycleError identifies a computation that transitively read itself.
// Path starts and ends with the offending computation.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCyclicDependency, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCyclicDependency
}

type DisposedError struct {
	Kind NodeKind
	Name string
	// Op is the attempted operation (get, set, dispose, observe...).
	Op string
}

func (e *DisposedError) Error() string {
	return fmt.Sprintf("%s: %s %s %q", ErrUseAfterDispose, e.Op, e.Kind, e.Name)
}

func (e *DisposedError) Is(target error) bool {
	return target == ErrUseAfterDispose
}

// ComputationError wraps an error returned, or a panic raised, by the function
// of a computation.
type ComputationError struct {
	Name string
	Err  error
	// Panic holds the recovered value when the function panicked.
	Panic any
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s: %q: %v", ErrComputation, e.Name, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}

func (e *ComputationError) Is(target error) bool {
	return target == ErrComputation
}

// cyclePanic unwinds every evaluation between the point of detection and the
// computation that closes the cycle.
type cyclePanic struct {
	origin *node
	err    *CycleError
}

func disposedErr(n *node, op string) *DisposedError {
	return &DisposedError{Kind: n.kind, Name: n.label(), Op: op}
}

// invariantError is raised when the scheduler's bookkeeping is broken. It is
// never recovered.
type invariantError string

func (e invariantError) Error() string {
	return "cellgraph: invariant violated: " + string(e)
}
