package process

import (
	"sync"

	"github.com/nachos-go/kernel/internal/machine"
)

// FDTable is a per-process sparse small-integer -> open-file mapping.
// Indices 0 and 1 are pre-populated with the console at construction and
// may be closed and reused like any other fd.
type FDTable struct {
	mu sync.Mutex
	files map[int]machine.OpenFile
	next int // set to 2 at construction; Allocate does not read it and always scans from 0
}

// NewFDTable creates a table with fd 0 bound to stdin and fd 1 to stdout,
// both backed by the same synchronized console handle.
func NewFDTable(console machine.Console) *FDTable {
	t := &FDTable{files: make(map[int]machine.OpenFile)}
	t.files[0] = consoleFile{console: console, name: "stdin"}
	t.files[1] = consoleFile{console: console, name: "stdout"}
	t.next = 2
	return t
}

// Allocate returns the smallest non-negative integer not currently in use,
// binding it to f.
func (t *FDTable) Allocate(f machine.OpenFile) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	fd := 0
	for {
		if _, used := t.files[fd]; !used {
			break
		}
		fd++
	}
	t.files[fd] = f
	return fd
}

// Get returns the file bound to fd, if any.
func (t *FDTable) Get(fd int) (machine.OpenFile, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.files[fd]
	return f, ok
}

// Close removes fd's mapping, closing the underlying file. Closing an
// already-closed or never-opened fd is a no-op reported via the bool.
func (t *FDTable) Close(fd int) bool {
	t.mu.Lock()
	f, ok := t.files[fd]
	if ok {
		delete(t.files, fd)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	_ = f.Close()
	return true
}

// CloseAll closes every remaining fd, idempotently, called from the exit path.
func (t *FDTable) CloseAll() {
	t.mu.Lock()
	fds := make([]int, 0, len(t.files))
	for fd := range t.files {
		fds = append(fds, fd)
	}
	t.mu.Unlock()

	for _, fd := range fds {
		t.Close(fd)
	}
}

// consoleFile adapts the shared machine.Console into the OpenFile shape so
// fd 0/1 can live in the same map as regular files.
type consoleFile struct {
	console machine.Console
	name string
}

func (c consoleFile) Read(buf []byte, off int64, length int) (int, error) {
	return c.console.Read(buf[:length])
}

func (c consoleFile) Write(buf []byte, off int64, length int) (int, error) {
	return c.console.Write(buf[:length])
}

func (c consoleFile) Seek(pos int64) error { return nil }
func (c consoleFile) Close() error { return nil }
func (c consoleFile) Name() string { return c.name }
