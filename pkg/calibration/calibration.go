// Package calibration verifies that the kinematic calibration assumed
// by the client matches the one reported by the connected controller.
//
// A mismatch affects motion accuracy, not connectivity, so it is a
// warning condition: the verifier reports it and the caller decides
// whether to proceed.
package calibration

import (
	"log/slog"
)

// Verifier compares the expected kinematic calibration checksum against
// the controller-reported value.
type Verifier struct {
	// Expected is the locally assumed checksum. Empty disables the check.
	Expected string

	// Logger receives the mismatch warning. Nil uses slog.Default.
	Logger *slog.Logger
}

// Check compares reported against the expected checksum. It returns
// true on a match or when no expectation is configured. A mismatch is
// logged as a warning and returns false; it has no other side effects.
func (v Verifier) Check(reported string) bool {
	if v.Expected == "" {
		return true
	}
	if reported == v.Expected {
		return true
	}

	logger := v.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("calibration checksum does not match the connected robot; motion accuracy will be degraded",
		"expected", v.Expected,
		"reported", reported)
	return false
}
