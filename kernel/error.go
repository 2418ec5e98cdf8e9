package kernel

// Error describes a kernel-internal error raised outside the invocation
// result-code path (see package invoke for that contract). Kernel errors
// are defined as package-level *Error values close to their failure site,
// following the teacher's convention of a fixed {Module, Message} pair
// rather than ad-hoc formatted strings.
type Error struct {
	// Module names the subsystem that raised the error.
	Module string

	// Message is the human-readable description.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
