package core

import "errors"

// IsRowError reports whether err is a recoverable per-row failure.
// Row errors are recorded and the run continues; anything else aborts it.
func IsRowError(err error) bool {
	if err == nil {
		return false
	}
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return true
	}
	var re *ResolutionError
	return errors.As(err, &re)
}
