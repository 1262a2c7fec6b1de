package zwyx

import "github.com/ancyrweb/zwyx/zwyxerr"

// Sentinel errors, re-exported from zwyxerr so callers of the root package
// can match with errors.Is without a second import.
var (
	ErrUnknownEntity         = zwyxerr.ErrUnknownEntity
	ErrMissingField          = zwyxerr.ErrMissingField
	ErrInvalidSchema         = zwyxerr.ErrInvalidSchema
	ErrInvalidRoute          = zwyxerr.ErrInvalidRoute
	ErrAmbiguousSingleEntity = zwyxerr.ErrAmbiguousSingleEntity
	ErrNotFound              = zwyxerr.ErrNotFound
	ErrTransport             = zwyxerr.ErrTransport
	ErrInvalidConfig         = zwyxerr.ErrInvalidConfig
)
