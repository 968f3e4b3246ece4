package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrResolutionFailure is returned when no record matches the requested entities.
	ErrResolutionFailure = goerr.New("no matching record")
	// ErrFetchFailure marks a recoverable remote or local lookup error.
	ErrFetchFailure = goerr.New("fetch failed")
	// ErrDisambiguationAmbiguous is returned when several candidates share the top score.
	ErrDisambiguationAmbiguous = goerr.New("ambiguous candidates")
	// ErrVerificationFailure marks a draft answer that is not supported by evidence.
	ErrVerificationFailure = goerr.New("answer not supported by evidence")
	// ErrClarificationNeeded is returned when there is not enough to build a fetch plan.
	ErrClarificationNeeded = goerr.New("clarification needed")

	// ErrUpstreamUnavailable is a server-side failure of an upstream source.
	ErrUpstreamUnavailable = goerr.New("upstream unavailable")
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = goerr.New("not found")
)
