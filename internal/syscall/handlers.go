package syscall

import (
	"encoding/binary"

	"github.com/nachos-go/kernel/internal/process"
)

// exec implements syscall 2: read the filename, then argc
// pointers, then each pointed-to argv string, and hand off to the
// lifecycle implementation.
func (d *Dispatcher) exec(p *process.Process, nameVAddr, argc, argvVAddr uint32) int32 {
	name, err := p.AddrSpace.ReadVMString(nameVAddr, maxStringLen)
	if err != nil {
		d.log.Warn("exec: unterminated filename", "pid", p.PID)
		return -1
	}

	argv := make([]string, 0, argc)
	ptrs := make([]byte, 4*argc)
	if n := p.AddrSpace.ReadVM(argvVAddr, ptrs, 0, len(ptrs)); n != len(ptrs) {
		d.log.Warn("exec: argv pointer table truncated", "pid", p.PID, "argc", argc)
		return -1
	}
	for i := uint32(0); i < argc; i++ {
		strVAddr := binary.LittleEndian.Uint32(ptrs[i*4 : i*4+4])
		arg, err := p.AddrSpace.ReadVMString(strVAddr, maxStringLen)
		if err != nil {
			d.log.Warn("exec: unterminated argv string", "pid", p.PID, "index", i)
			return -1
		}
		argv = append(argv, arg)
	}

	childPID, ok := d.lifecycle.Exec(p.PID, name, argv)
	if !ok {
		return -1
	}
	return int32(childPID)
}

// join implements syscall 3: block until the target child
// exits, then write its status back into user memory.
func (d *Dispatcher) join(p *process.Process, childPID, statusVAddr uint32) int32 {
	status, result := d.lifecycle.Join(p.PID, int(childPID))
	if result == -1 {
		return -1
	}

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(status))
	if n := p.AddrSpace.WriteVM(statusVAddr, buf[:], 0, 4); n != 4 {
		d.log.Warn("join: failed to write status back to caller", "pid", p.PID)
		return -1
	}
	return int32(result)
}

// creat implements syscall 4: create-or-truncate.
func (d *Dispatcher) creat(p *process.Process, nameVAddr uint32) int32 {
	name, err := p.AddrSpace.ReadVMString(nameVAddr, maxStringLen)
	if err != nil {
		return -1
	}
	f, err := d.fs.Open(name, true)
	if err != nil {
		d.log.Warn("creat failed", "pid", p.PID, "name", name, "err", err)
		return -1
	}
	return int32(p.FDs.Allocate(f))
}

// open implements syscall 5: open an existing file.
func (d *Dispatcher) open(p *process.Process, nameVAddr uint32) int32 {
	name, err := p.AddrSpace.ReadVMString(nameVAddr, maxStringLen)
	if err != nil {
		return -1
	}
	f, err := d.fs.Open(name, false)
	if err != nil {
		d.log.Warn("open failed", "pid", p.PID, "name", name, "err", err)
		return -1
	}
	return int32(p.FDs.Allocate(f))
}

// read implements syscall 6.
func (d *Dispatcher) read(p *process.Process, fd, bufVAddr, count uint32) int32 {
	if int32(count) < 0 {
		d.log.Warn("read: negative count", "pid", p.PID, "fd", fd)
		return -1
	}

	f, ok := p.FDs.Get(int(fd))
	if !ok {
		return -1
	}

	chunk := make([]byte, count)
	n, err := f.Read(chunk, -1, int(count))
	if err != nil {
		d.log.Warn("read failed", "pid", p.PID, "fd", fd, "err", err)
		return -1
	}

	if written := p.AddrSpace.WriteVM(bufVAddr, chunk, 0, n); written != n {
		d.log.Warn("read: short write into user buffer", "pid", p.PID, "fd", fd)
		return -1
	}
	return int32(n)
}

// write implements syscall 7.
func (d *Dispatcher) write(p *process.Process, fd, bufVAddr, count uint32) int32 {
	if int32(count) < 0 {
		d.log.Warn("write: negative count", "pid", p.PID, "fd", fd)
		return -1
	}

	f, ok := p.FDs.Get(int(fd))
	if !ok {
		return -1
	}

	chunk := make([]byte, count)
	read := p.AddrSpace.ReadVM(bufVAddr, chunk, 0, int(count))

	n, err := f.Write(chunk[:read], -1, read)
	if err != nil {
		d.log.Warn("write failed", "pid", p.PID, "fd", fd, "err", err)
		return -1
	}
	return int32(n)
}

// close implements syscall 8.
func (d *Dispatcher) close(p *process.Process, fd uint32) int32 {
	if !p.FDs.Close(int(fd)) {
		return -1
	}
	return 0
}

// unlink implements syscall 9.
func (d *Dispatcher) unlink(p *process.Process, nameVAddr uint32) int32 {
	name, err := p.AddrSpace.ReadVMString(nameVAddr, maxStringLen)
	if err != nil {
		return -1
	}
	if !d.fs.Remove(name) {
		return -1
	}
	return 0
}
