package overlay

import "fmt"

// ErrorKind classifies failures at the privileged display boundary.
type ErrorKind string

const (
	// KindPermissionDenied: the current permission snapshot disallows
	// drawing over other applications.
	KindPermissionDenied ErrorKind = "permission_denied"

	// KindStartRestricted: the host actively refused surface creation or
	// elevation (background-start throttling, liveness timeout).
	KindStartRestricted ErrorKind = "start_restricted"

	// KindSurfaceLost: an existing surface disappeared unexpectedly
	// (host killed it, rotation, low memory).
	KindSurfaceLost ErrorKind = "surface_lost"
)

// Error is the only error class that changes externally observable
// behavior: the coordinator reacts to it by falling back to the
// in-process dialog for the remainder of the current expiry.
type Error struct {
	Kind  ErrorKind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("overlay %s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("overlay %s", e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any overlay Error of the same kind, so
// errors.Is(err, overlay.ErrSurfaceLost) works regardless of cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinel instances for errors.Is checks.
var (
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrStartRestricted  = &Error{Kind: KindStartRestricted}
	ErrSurfaceLost      = &Error{Kind: KindSurfaceLost}
)

func permissionDenied() error {
	return &Error{Kind: KindPermissionDenied}
}

func startRestricted(cause error) error {
	return &Error{Kind: KindStartRestricted, Cause: cause}
}

func surfaceLost(cause error) error {
	return &Error{Kind: KindSurfaceLost, Cause: cause}
}
