// Package syscall implements the syscall dispatcher: it reads register
// v0/a0-a3, invokes the matching handler, writes the return value back to
// v0, and advances PC — grounded in
// nachos/userprog/UserProcessSyscalls.java's handleSyscall switch and
// cmd/cpu/instrucciones.go's trap-dispatch loop, generalized from a
// fixed two-syscall set to a closed ten-syscall table.
package syscall

import (
	"log/slog"

	"github.com/nachos-go/kernel/internal/machine"
	"github.com/nachos-go/kernel/internal/process"
)

// The closed syscall number set the dispatcher recognizes.
const (
	Halt = 0
	Exit = 1
	Exec = 2
	Join = 3
	Creat = 4
	Open = 5
	Read = 6
	Write = 7
	Close = 8
	Unlink = 9
)

// maxStringLen bounds every string argument read from user memory to a
// fixed cap of at least 256 bytes.
const maxStringLen = 256

// Lifecycle is the process-lifecycle capability the dispatcher needs for
// the four syscalls (halt, exit, exec, join) that don't reduce to a plain
// FD-table or filesystem operation, implemented by internal/lifecycle.
type Lifecycle interface {
	Halt(callerPID int) bool
	Exec(callerPID int, name string, argv []string) (childPID int, ok bool)
	Exit(pid int, status int, abnormal bool)
	Join(callerPID, childPID int) (status int, result int) // result: 1 clean, 0 abnormal, -1 not-a-child
}

// Dispatcher wires the syscall table to a process table, a lifecycle
// implementation, and a host filesystem.
type Dispatcher struct {
	log *slog.Logger
	processes *process.Table
	lifecycle Lifecycle
	fs machine.FileSystem
}

// NewDispatcher builds a Dispatcher over the given collaborators.
func NewDispatcher(log *slog.Logger, processes *process.Table, lifecycle Lifecycle, fs machine.FileSystem) *Dispatcher {
	return &Dispatcher{log: log, processes: processes, lifecycle: lifecycle, fs: fs}
}

// resyncer is implemented by process.VirtualMemory backends (currently only
// paging.AddressSpace) that share physical frames with other processes
// through an eviction sweep, and so need their local page table
// resynchronized every time this process is dispatched to run.
type resyncer interface {
	ResyncFromInverted()
}

// Handle services one TrapSyscall raised by pid, mutating regs in place:
// v0 receives the return value and PC advances past the syscall
// instruction. It is a no-op (beyond logging) if pid is
// not currently registered, which can happen if exit raced the trap.
func (d *Dispatcher) Handle(pid int, regs *machine.Registers) {
	p, ok := d.processes.Lookup(pid)
	if !ok {
		d.log.Warn("syscall trap for unregistered process", "pid", pid)
		return
	}

	// Mirrors restoreState being called whenever a thread is dispatched to
	// run: this process may not have executed since another process's fault
	// evicted one of its frames, so its page table needs to catch up before
	// any of this trap's handlers trust it.
	if r, ok := p.AddrSpace.(resyncer); ok {
		r.ResyncFromInverted()
	}

	var result int32
	switch regs.V0 {
	case Halt:
		result = d.halt(pid)
	case Exit:
		result = d.exit(pid, int32(regs.A0))
	case Exec:
		result = d.exec(p, regs.A0, regs.A1, regs.A2)
	case Join:
		result = d.join(p, regs.A0, regs.A1)
	case Creat:
		result = d.creat(p, regs.A0)
	case Open:
		result = d.open(p, regs.A0)
	case Read:
		result = d.read(p, regs.A0, regs.A1, regs.A2)
	case Write:
		result = d.write(p, regs.A0, regs.A1, regs.A2)
	case Close:
		result = d.close(p, regs.A0)
	case Unlink:
		result = d.unlink(p, regs.A0)
	default:
		d.log.Error("unrecognized syscall number, treating as fatal", "pid", pid, "v0", regs.V0)
		d.lifecycle.Exit(pid, -1, true)
		return
	}

	regs.V0 = uint32(result)
	regs.PC = regs.NextPC
	regs.NextPC += 4
}

// HandleTrap services a non-syscall exception: ReadOnly,
// BusError, AddressError, and IllegalInstruction terminate the offending
// process abnormally. Any other cause panics, including TrapSyscall (serviced
// by Handle) and TrapTLBMiss: page faults are not routed through this method.
func (d *Dispatcher) HandleTrap(pid int, cause machine.TrapCause) {
	switch cause {
	case machine.TrapReadOnly, machine.TrapBusError, machine.TrapAddressError, machine.TrapIllegalInstruction:
		d.log.Warn("abnormal termination", "pid", pid, "cause", cause.String())
		d.lifecycle.Exit(pid, -1, true)
	default:
		panic("syscall: unrecognized trap cause " + cause.String())
	}
}

func (d *Dispatcher) halt(pid int) int32 {
	if d.lifecycle.Halt(pid) {
		return 0
	}
	d.log.Warn("halt attempted by non-owning process", "pid", pid)
	return 0
}

func (d *Dispatcher) exit(pid int, status int32) int32 {
	d.lifecycle.Exit(pid, int(status), false)
	return 0
}
