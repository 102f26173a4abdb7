package multiboot

import "mb2os/kernel"

// Parse failures. All of them are terminal: the InformationList passed to
// the parser is left empty when any of these is returned.
var (
	// ErrInvalidMagic is returned when the value passed by the bootloader
	// does not match BootloaderMagic. The info address is never read in
	// this case.
	ErrInvalidMagic = &kernel.Error{Module: "multiboot", Message: "invalid bootloader magic"}

	// ErrInvalidAddress is returned when the info address is nil or not
	// 8-byte aligned.
	ErrInvalidAddress = &kernel.Error{Module: "multiboot", Message: "invalid boot info address"}

	// ErrTruncatedHeader is returned when the readable region cannot hold
	// the 8-byte boot info header or the header declares a total size
	// outside the readable region.
	ErrTruncatedHeader = &kernel.Error{Module: "multiboot", Message: "truncated boot info header"}

	// ErrMalformedTag is returned for any structural violation inside a
	// tag.
	ErrMalformedTag = &kernel.Error{Module: "multiboot", Message: "malformed boot info tag"}

	// ErrMissingTerminator is returned when the tag list ends without an
	// end tag.
	ErrMissingTerminator = &kernel.Error{Module: "multiboot", Message: "missing end tag"}

	// ErrCapacityExceeded is returned when the decoded tags do not fit in
	// the fixed storage of an InformationList.
	ErrCapacityExceeded = &kernel.Error{Module: "multiboot", Message: "boot info exceeds list capacity"}
)
