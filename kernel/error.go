package kernel

// Error describes a kernel error. Code that runs before the Go allocator is
// available cannot call errors.New or fmt.Errorf, so every kernel error is
// declared up front as a package-level *Error and callers identify a failure
// by comparing pointers against these sentinels.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target is the same sentinel as e. It allows kernel
// errors that were wrapped by host-side tooling to be matched with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t == e
}
