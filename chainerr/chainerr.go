// Package chainerr defines the error kinds surfaced by the ChainGraph
// control API and engine, per the error handling design in §7 of the spec.
package chainerr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error categories the engine can raise.
type Kind string

const (
	// NotFound means an unknown executionId, flowId, or nodeId was referenced.
	NotFound Kind = "NotFound"
	// InvalidState means a control op was called while the execution was in
	// the wrong status (e.g. step while running).
	InvalidState Kind = "InvalidState"
	// TypeMismatch means an edge carries a value incompatible with its
	// target port.
	TypeMismatch Kind = "TypeMismatch"
	// Timeout means a node or flow timeout fired.
	Timeout Kind = "Timeout"
	// Cancelled means stop was requested and observed.
	Cancelled Kind = "Cancelled"
	// BreakpointHit is informational; it is emitted as an event, never
	// returned as an error from a control API call, but the kind exists so
	// callers can classify it uniformly alongside the others.
	BreakpointHit Kind = "BreakpointHit"
	// NodeFailure wraps a user-node error.
	NodeFailure Kind = "NodeFailure"
	// ResourceExhausted means a channel high-water limit was hit with no
	// consumer progress for the grace period.
	ResourceExhausted Kind = "ResourceExhausted"
	// PersistenceFailure means the store rejected an append.
	PersistenceFailure Kind = "PersistenceFailure"
)

// Error is the concrete error type carrying a Kind plus context.
type Error struct {
	Kind    Kind
	Message string
	NodeID  string // set for NodeFailure / Timeout on a specific node
	Cause   error
}

func (e *Error) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Kind, e.Message, e.NodeID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is comparisons against a bare Kind sentinel created via New.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Kind == e.Kind && te.NodeID == "" && te.Message == ""
}

// New constructs an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithNode returns a copy of e annotated with the offending nodeId.
func (e *Error) WithNode(nodeID string) *Error {
	c := *e
	c.NodeID = nodeID
	return &c
}

// KindOf extracts the Kind from err, if err is (or wraps) a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
