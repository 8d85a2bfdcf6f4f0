package addrspace

import "errors"

// Errors surfaced by Load and the VM string helper.
var (
	ErrFragmented = errors.New("addrspace: loadable sections are not contiguous starting at vpn 0")
	ErrArgsTooLong = errors.New("addrspace: argv does not fit in one page")
	ErrOutOfMemory = errors.New("addrspace: insufficient physical frames")
	ErrNotTerminated = errors.New("addrspace: string not NUL-terminated within window")
)
