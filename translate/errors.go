package translate

import "github.com/pkg/errors"

// Sentinel error kinds observable by callers of the Translator. Use
// errors.Cause (or errors.Is against the sentinel) to recover the kind from
// a wrapped error.
var (
	// ErrFormatUnsupported is returned at construction for an unrecognized
	// file format.
	ErrFormatUnsupported = errors.New("translate: unsupported file format")
	// ErrUnknownFunction is returned by lookups that fail to find a
	// function by address, either in already-translated state or in the
	// dump's function table.
	ErrUnknownFunction = errors.New("translate: unknown function")
	// ErrAlreadyFinalized is returned by bulk-mutation access after the
	// Translator has been sealed with Finalize.
	ErrAlreadyFinalized = errors.New("translate: translator is already finalized")
	// ErrTranslationFailed is returned when a function's block set could
	// not be fully assembled; the partial entry is removed.
	ErrTranslationFailed = errors.New("translate: function translation failed")
)
