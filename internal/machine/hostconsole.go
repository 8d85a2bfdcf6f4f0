package machine

import (
	"io"
	"sync"
)

// HostConsole is the stdio-backed Console every process's fd 0/1 shares.
// Grounded on the standard io.Reader/io.Writer pair for the same reason as
// HostFileSystem: this is a host boundary primitive, not a domain concern
// any example repo's dependency stack addresses.
type HostConsole struct {
	mu sync.Mutex
	in io.Reader
	out io.Writer
}

// NewHostConsole builds a console over the given streams (typically
// os.Stdin / os.Stdout), serializing access since every user thread reads
// and writes the same shared stream.
func NewHostConsole(in io.Reader, out io.Writer) *HostConsole {
	return &HostConsole{in: in, out: out}
}

func (c *HostConsole) Read(buf []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.in.Read(buf)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

func (c *HostConsole) Write(buf []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(buf)
}
