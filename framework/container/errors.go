package container

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel causes carried by BindingResolutionError, for use with errors.Is.
var (
	ErrClassNotFound         = errors.New("target class does not exist")
	ErrNotInstantiable       = errors.New("target is not instantiable")
	ErrUnresolvablePrimitive = errors.New("unresolvable dependency")
	ErrCircularDependency    = errors.New("circular dependency detected")
	ErrMethodNotProvided     = errors.New("method not provided")
	ErrInvalidConcrete       = errors.New("invalid concrete")
)

var (
	_ error = (*BindingResolutionError)(nil)
	_ error = (*EntryNotFoundError)(nil)
)

// BindingResolutionError reports that an abstract could not be turned into an
// instance. Stack is the build stack at the point of failure, outermost first.
type BindingResolutionError struct {
	Message string
	Stack   []string
	Cause   error
}

func (e *BindingResolutionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Stack) > 0 {
		fmt.Fprintf(&b, " while building [%s]", strings.Join(e.Stack, ", "))
	}
	b.WriteString(".")
	if e.Cause != nil && !isSentinel(e.Cause) {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *BindingResolutionError) Unwrap() error { return e.Cause }

// EntryNotFoundError is returned by Get when the id was never bound and could not
// be resolved on its own.
type EntryNotFoundError struct {
	ID    string
	Cause error
}

func (e *EntryNotFoundError) Error() string {
	return fmt.Sprintf("container: entry [%s] not found: %v", e.ID, e.Cause)
}

func (e *EntryNotFoundError) Unwrap() error { return e.Cause }

func (c *Container) resolutionError(cause error, format string, args ...any) *BindingResolutionError {
	return &BindingResolutionError{
		Message: fmt.Sprintf(format, args...),
		Stack:   append([]string(nil), c.buildStack...),
		Cause:   cause,
	}
}

func isSentinel(err error) bool {
	switch err {
	case ErrClassNotFound, ErrNotInstantiable, ErrUnresolvablePrimitive,
		ErrCircularDependency, ErrMethodNotProvided, ErrInvalidConcrete:
		return true
	}
	return false
}
