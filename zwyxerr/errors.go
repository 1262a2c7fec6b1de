// Package zwyxerr defines the sentinel errors and the structured error type
// shared by every zwyx package.
//
// Callers match on sentinels with errors.Is and on kinds by comparing
// against an *Error carrying only a Kind:
//
//	if errors.Is(err, zwyxerr.ErrUnknownEntity) { ... }
//	if errors.Is(err, &zwyxerr.Error{Kind: zwyxerr.KindValidation}) { ... }
package zwyxerr

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrUnknownEntity indicates a schema name that is not part of the entity graph.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrMissingField indicates a route mapping key absent from the response data.
	ErrMissingField = errors.New("missing field")

	// ErrInvalidSchema indicates a malformed entity definition.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrInvalidRoute indicates a malformed route pattern or route shape.
	ErrInvalidRoute = errors.New("invalid route")

	// ErrAmbiguousSingleEntity is reported, never returned, when a route that
	// expects one entity produced several.
	ErrAmbiguousSingleEntity = errors.New("ambiguous single entity")

	// ErrNotFound indicates a cache key that is absent or expired.
	ErrNotFound = errors.New("not found")

	// ErrInvalidKey indicates an empty or otherwise unusable cache key.
	ErrInvalidKey = errors.New("invalid key")

	// ErrEmptyChain indicates a link chain built without links.
	ErrEmptyChain = errors.New("link chain requires at least one link")

	// ErrTransport indicates the transport failed to produce a response.
	ErrTransport = errors.New("transport failed")

	// ErrInvalidConfig indicates the provided configuration is invalid or incomplete.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Error kinds.
const (
	KindNotFound      = "not_found"
	KindValidation    = "validation"
	KindConfiguration = "configuration"
	KindTransport     = "transport"
	KindWarning       = "warning"
	KindInternal      = "internal"
)

// Error wraps an underlying error with the operation that failed and the
// category of failure.
type Error struct {
	// Op is the failing operation, e.g. "Normalizer.Normalize".
	Op string

	// Kind is one of the Kind constants.
	Kind string

	// Err is the underlying error, usually a sentinel.
	Err error

	// Context holds debugging details such as the schema name or path.
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("zwyx: %s: %s", e.Op, e.Kind)
	}
	if len(e.Context) > 0 {
		return fmt.Sprintf("zwyx: %s (%s): %v %v", e.Op, e.Kind, e.Err, e.Context)
	}
	return fmt.Sprintf("zwyx: %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match when target is an *Error with the same Kind (and the
// same Op, if target sets one), or when the wrapped error matches.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if t, ok := target.(*Error); ok && t.Kind != "" && t.Kind == e.Kind {
		if t.Op == "" || t.Op == e.Op {
			return true
		}
	}
	return errors.Is(e.Err, target)
}

// WithContext returns a copy of e with ctx merged into its Context.
func (e *Error) WithContext(ctx map[string]any) *Error {
	out := *e
	out.Context = make(map[string]any, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		out.Context[k] = v
	}
	for k, v := range ctx {
		out.Context[k] = v
	}
	return &out
}

// New builds an *Error.
func New(op, kind string, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// UnknownEntity reports a schema name missing from the graph.
func UnknownEntity(op, name string) *Error {
	return New(op, KindValidation, ErrUnknownEntity).WithContext(map[string]any{"entity": name})
}

// MissingField reports a route mapping key absent from the data at path.
func MissingField(op, path string) *Error {
	return New(op, KindValidation, ErrMissingField).WithContext(map[string]any{"path": path})
}

// NotFound reports an absent cache key.
func NotFound(op, key string) *Error {
	return New(op, KindNotFound, ErrNotFound).WithContext(map[string]any{"key": key})
}

// Validation wraps err with KindValidation.
func Validation(op string, err error) *Error {
	return New(op, KindValidation, err)
}

// Configuration wraps err with KindConfiguration.
func Configuration(op string, err error) *Error {
	return New(op, KindConfiguration, err)
}

// Transport wraps err with KindTransport, keeping ErrTransport matchable.
func Transport(op string, err error) *Error {
	return New(op, KindTransport, fmt.Errorf("%w: %w", ErrTransport, err))
}

// Internal wraps err with KindInternal.
func Internal(op string, err error) *Error {
	return New(op, KindInternal, err)
}

// IsKind reports whether any *Error in err's chain has the given kind.
func IsKind(err error, kind string) bool {
	var e *Error
	for err != nil {
		if errors.As(err, &e) {
			if e.Kind == kind {
				return true
			}
			err = e.Err
			continue
		}
		return false
	}
	return false
}
