package model

import "github.com/m-mizutani/goerr/v2"

// Error tags classify failures for retry and reporting policy. Tags rather
// than sentinel errors so wrapped errors keep their classification.
var (
	// TagStoreUnavailable marks vector store I/O failures. Not retried by
	// the store adapter; retry policy belongs to the caller.
	TagStoreUnavailable = goerr.NewTag("store_unavailable")

	// TagInvalidTransition marks mutations that would violate a versioning
	// invariant. A logic error, never silently fixed.
	TagInvalidTransition = goerr.NewTag("invalid_transition")

	// TagOracleIndeterminate marks unparseable or out-of-set oracle output.
	// The engine treats these as NOOP.
	TagOracleIndeterminate = goerr.NewTag("oracle_indeterminate")
)

var (
	ErrMemoryNotFound = goerr.New("memory not found")
)
