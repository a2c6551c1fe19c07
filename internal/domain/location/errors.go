package location

import "errors"

var (
	// ErrPermissionDenied signals missing location permission.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrHardwareUnavailable signals disabled positioning hardware (GPS off).
	ErrHardwareUnavailable = errors.New("positioning hardware unavailable")
	// ErrStoreUnavailable signals a transient geo-store failure.
	ErrStoreUnavailable = errors.New("geo store unavailable")
	// ErrProfileNotFound signals a missing or unresolvable profile.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrInvalidFilter signals a malformed discovery filter.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrInvalidState signals an operation that does not apply to the current
	// subscription mode.
	ErrInvalidState = errors.New("invalid subscription state")
	// ErrNoFix signals that no device position has been reported yet.
	ErrNoFix = errors.New("no position fix")
	// ErrUnknownCategory signals an unknown vocabulary category.
	ErrUnknownCategory = errors.New("unknown vocabulary category")
	// ErrSessionNotFound signals a missing session.
	ErrSessionNotFound = errors.New("session not found")
)
