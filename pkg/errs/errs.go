// Package errs defines the structured errors shared by the engine packages.
//
// Each error carries a Kind from the fixed taxonomy, the canonical string
// form of the path it concerns (possibly empty), and an optional underlying
// cause. The host application receives these through the error-boundary
// callback of the wizard package.
package errs

import "fmt"

// Kind enumerates the error categories of the engine.
type Kind uint8

// Possible values for Kind.
const (
	// InvalidHookContext means a hook-store operation was invoked outside an
	// active render pass for its path. This is a programming error and is
	// surfaced synchronously to the caller.
	InvalidHookContext Kind = iota
	// UnstableIdentity means the engine detected (heuristically) that a
	// component instance used a different set of hook slots than in its
	// previous render. The instance's state region is reset.
	UnstableIdentity
	// DiffInconsistency means the tree handed to the differ does not match
	// the patcher's last committed tree. Fatal to the current pass.
	DiffInconsistency
	// BackendApply means a widget-backend primitive failed during patch
	// application. The remaining patches of the pass are aborted.
	BackendApply
	// Effect means an effect callback panicked or returned an error. It is
	// isolated per slot and does not abort the rest of the flush.
	Effect
	// Render means a component body panicked. The pass is aborted and the
	// committed tree stays untouched.
	Render
)

func (k Kind) String() string {
	switch k {
	case InvalidHookContext:
		return "invalid hook context"
	case UnstableIdentity:
		return "unstable instance identity"
	case DiffInconsistency:
		return "diff inconsistency"
	case BackendApply:
		return "backend apply error"
	case Effect:
		return "effect error"
	case Render:
		return "render panic"
	default:
		return fmt.Sprintf("bad kind %d", uint8(k))
	}
}

// Error is a structured engine error.
type Error struct {
	Kind  Kind
	Path  string
	Cause error
}

// New creates a new Error.
func New(kind Kind, path string, cause error) *Error {
	return &Error{kind, path, cause}
}

// Errorf creates a new Error with a formatted message as the cause.
func Errorf(kind Kind, path, format string, args ...any) *Error {
	return &Error{kind, path, fmt.Errorf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Path != "" {
		s += " at " + e.Path
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Unwrap returns the underlying cause, possibly nil.
func (e *Error) Unwrap() error { return e.Cause }
