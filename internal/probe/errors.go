package probe

import "errors"

// Error kinds surfaced by the probe core. Callers classify with errors.Is;
// context is added with fmt.Errorf("%w", ...) at the call site, following
// the wrap-don't-enumerate idiom the kernel's utils.WrapError uses.
var (
	ErrAllEndpointsDown      = errors.New("all endpoints down")
	ErrNotAPeer              = errors.New("not a peer")
	ErrOffline               = errors.New("peer offline")
	ErrNotResolved           = errors.New("peer not resolved")
	ErrDirectoryLookupFailed = errors.New("directory lookup failed")
	ErrDecodeFailed          = errors.New("decode failed")
	ErrNotFound              = errors.New("not found")
	ErrNetworkError          = errors.New("network error")
)
