package gbfs

import "github.com/rotisserie/eris"

// Cycle-fatal errors. An update that returns one of these leaves the
// previously published stations in place.
var (
	ErrFetch             = eris.New("gbfs: fetch failed")
	ErrMalformedManifest = eris.New("gbfs: malformed manifest")
	ErrMissingLanguage   = eris.New("gbfs: manifest language missing")
	ErrMissingFeed       = eris.New("gbfs: required feed missing")
	ErrMalformedFeed     = eris.New("gbfs: malformed feed")
	ErrJoinKey           = eris.New("gbfs: join key missing from feed")
)

// Record-scoped errors. The record is dropped and the update continues.
var (
	ErrMissingField = eris.New("gbfs: required field missing")
	ErrInvalidField = eris.New("gbfs: invalid field value")
)
