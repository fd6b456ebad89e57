package recordstore

import "errors"

var (
	// ErrStoreUnavailable indicates the store file could not be opened or
	// configured, or the schema could not be created. Nothing was staged.
	ErrStoreUnavailable = errors.New("record store unavailable")
	// ErrCommitFailed indicates the terminal commit or handle close failed.
	// The store file may need inspection.
	ErrCommitFailed = errors.New("record store commit failed")
	// ErrSessionFinalized indicates a call on a session that has already been
	// finalized or rolled back.
	ErrSessionFinalized = errors.New("record store session finalized")
)
