package app

import "errors"

var (
	// ErrInvalidInput covers malformed caller input: blank ids, empty
	// uploads, oversized payloads. Client-facing, never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSessionNotFound is returned whenever an unknown or forged session
	// id reaches any operation. Session ids are capability tokens; every
	// service validates them before acting.
	ErrSessionNotFound = errors.New("session not found")

	ErrDocumentNotFound = errors.New("document not found")

	// ErrDocumentBusy means a re-ingest was requested while a run is still
	// active for the document.
	ErrDocumentBusy = errors.New("document is still being processed")

	ErrMessageEmpty = errors.New("message content is empty")

	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrUpstream wraps an embedding or generation provider failure that
	// survived the retry budget. Already-persisted state is untouched when
	// it surfaces.
	ErrUpstream = errors.New("upstream provider failed")
)
