// Package transport carries the JSON-over-HTTP envelope served by the
// memoria and io binaries (cpu only pings /health, and the kernel reuses
// Server for its admin endpoints), grounded in the reference project's
// utils.Mensaje / utils.HTTPClient / utils.HTTPServer trio.
package transport

// Envelope is the wire message exchanged between modules: a message kind
// tag, the originating module's name, and an opaque JSON payload.
type Envelope struct {
	Kind string `json:"kind"`
	Origin string `json:"origin"`
	Body interface{} `json:"body"`
}

// Message kinds, as string tags instead of the reference project's wide
// numeric enum. Only KindAllocate and KindFree have handlers in this
// repository (cmd/memoria); the other kinds are declared but served by no
// binary, and cmd/io registers its own "device_busy" kind.
const (
	KindHandshake = "handshake"
	KindLoad = "load"
	KindUnload = "unload"
	KindReadVM = "read_vm"
	KindWriteVM = "write_vm"
	KindPageFault = "page_fault"
	KindConsoleRead = "console_read"
	KindConsoleWrite = "console_write"
	KindFSOpen = "fs_open"
	KindFSCreate = "fs_create"
	KindFSRemove = "fs_remove"
	KindFSReadAt = "fs_read_at"
	KindFSWriteAt = "fs_write_at"
	KindFSSeek = "fs_seek"
	KindFSClose = "fs_close"
	KindAllocate = "allocate"
	KindFree = "free"
)
