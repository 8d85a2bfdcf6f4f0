// Package lifecycle implements process creation, exec, exit, and join,
// plus abnormal trap termination, tying together the process table, an
// address space backend, the FD table, and the frame allocator into the
// operations the syscall dispatcher calls.
//
// Grounded in nachos/userprog/UserProcess.java's execute/exitProcess/join
// and cmd/kernel/pcb.go's process-creation sequence, adapted from
// HTTP-triggered process creation to a direct in-process call: the loader,
// process table, and frame allocator need to stay tightly coupled in one
// address space.
package lifecycle

import (
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/nachos-go/kernel/internal/elf32"
	"github.com/nachos-go/kernel/internal/machine"
	"github.com/nachos-go/kernel/internal/process"
)

// ExecutableSource resolves a guest filename to a random-access reader for
// the ELF loader.
type ExecutableSource interface {
	OpenExecutable(name string) (io.ReaderAt, io.Closer, error)
}

// AddressSpaceFactory builds a fresh, unloaded address space for a new
// process. internal/kernel supplies either the eager (addrspace.New) or
// demand-paged (paging.New) constructor here, selecting the backend for
// the whole run.
type AddressSpaceFactory func(pid int) process.VirtualMemory

// Kernel implements the syscall.Lifecycle contract plus the exec/exit/join
// bodies the dispatcher's four lifecycle syscalls delegate to.
type Kernel struct {
	log *slog.Logger
	processes *process.Table
	console machine.Console
	binaries ExecutableSource
	newSpace AddressSpaceFactory
	pageSize uint32

	// byPID holds every process this kernel has ever created, keyed by its
	// PID, independent of process.Table's own registry. process.Table frees
	// a PID for reuse the instant a process exits (resolution
	// of the signed-cursor race), but a parent may not call join until well
	// after that; resolving join's target through this map instead of
	// through the table means a recycled PID can never be mistaken for the
	// exited child. Entries are removed once a parent reaps them.
	mu sync.Mutex
	byPID map[int]*process.Process

	onHalt func()
}

// New builds a Kernel. onHalt stops the simulated run, invoked both when the
// last process exits (via process.NewTable's own onHalt, wired by the
// caller) and immediately when PID 1 calls halt(), matching
// nachos/machine/Machine.java's halt() stopping the simulation on the spot
// rather than waiting for every thread to finish. pageSize must match the
// value the caller's frame allocator and address-space factory were built
// with, since it also sizes every ELF section load here.
func New(log *slog.Logger, processes *process.Table, console machine.Console, binaries ExecutableSource, newSpace AddressSpaceFactory, pageSize uint32, onHalt func()) *Kernel {
	return &Kernel{
		log: log,
		processes: processes,
		console: console,
		binaries: binaries,
		newSpace: newSpace,
		pageSize: pageSize,
		byPID: make(map[int]*process.Process),
		onHalt: onHalt,
	}
}

func (k *Kernel) track(p *process.Process) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.byPID[p.PID] = p
}

func (k *Kernel) forget(pid int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.byPID, pid)
}

func (k *Kernel) findChild(pid int) (*process.Process, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	p, ok := k.byPID[pid]
	return p, ok
}

// Boot loads the initial program as PID 1's process, the machine's first
// runnable thread.
func (k *Kernel) Boot(name string, argv []string) (*process.Process, error) {
	pid, err := k.processes.Assign()
	if err != nil {
		return nil, err
	}
	p := process.New(pid, 0, process.NewFDTable(k.console))
	p.TraceID = uuid.NewString()
	if err := k.load(p, name, argv); err != nil {
		k.processes.Release(pid)
		return nil, err
	}
	k.processes.Register(p)
	k.track(p)
	return p, nil
}

// Halt implements syscall 0: only PID 1 may halt, and doing so stops the
// machine immediately rather than waiting for every process to exit on its
// own.
func (k *Kernel) Halt(callerPID int) bool {
	if callerPID != 1 {
		return false
	}
	k.onHalt()
	return true
}

// Exec allocates a PID, builds a process bound to this kernel, inserts
// pre-opened stdin/stdout, and attempts to load the named program; on
// failure it cleans up and reports -1 by way of ok=false.
func (k *Kernel) Exec(callerPID int, name string, argv []string) (int, bool) {
	parent, ok := k.processes.Lookup(callerPID)
	if !ok {
		return 0, false
	}

	pid, err := k.processes.Assign()
	if err != nil {
		k.log.Error("exec: PID space exhausted", "caller", callerPID)
		return 0, false
	}

	child := process.New(pid, callerPID, process.NewFDTable(k.console))
	child.TraceID = uuid.NewString()
	if err := k.load(child, name, argv); err != nil {
		k.log.Warn("exec: load failed", "caller", callerPID, "child", pid, "name", name, "err", err)
		k.processes.Release(pid)
		return 0, false
	}

	k.processes.Register(child)
	k.track(child)
	parent.AddChild(pid)
	child.Log(k.log).Info("exec succeeded", "caller", callerPID, "name", name)
	return pid, true
}

func (k *Kernel) load(p *process.Process, name string, argv []string) error {
	r, closer, err := k.binaries.OpenExecutable(name)
	if err != nil {
		return err
	}
	defer closer.Close()

	reader, err := elf32.NewReader(r, k.pageSize)
	if err != nil {
		return err
	}

	space := k.newSpace(p.PID)
	if loader, ok := space.(interface {
		Load(*elf32.Reader, []string) error
	}); ok {
		if err := loader.Load(reader, argv); err != nil {
			return err
		}
	}
	p.AddrSpace = space
	return nil
}

// Exit releases FDs, unloads the address space, wakes a waiting parent,
// and removes the process from the table.
func (k *Kernel) Exit(pid int, status int, abnormal bool) {
	p, ok := k.processes.Lookup(pid)
	if !ok {
		return
	}

	p.FDs.CloseAll()
	if p.AddrSpace != nil {
		p.AddrSpace.Unload()
	}
	p.MarkExit(status, abnormal)

	k.processes.Terminate(p, func() {})
	p.Log(k.log).Info("process exited", "status", status, "abnormal", abnormal)
}

// Join rejects unless the target is a live-or-zombie child of the caller
// and the caller isn't already joined; otherwise it blocks until the
// child exits and translates its status.
func (k *Kernel) Join(callerPID, childPID int) (status int, result int) {
	parent, ok := k.processes.Lookup(callerPID)
	if !ok {
		return 0, -1
	}
	if !parent.IsChild(childPID) {
		return 0, -1
	}
	if !parent.TryJoin(childPID) {
		return 0, -1
	}
	defer parent.ClearJoin()

	child, ok := k.findChild(childPID)
	if !ok {
		// Already reaped by a racing join; nothing more to report.
		return 0, -1
	}

	code, abnormal := child.WaitExit()
	child.MarkReaped()
	parent.RemoveChild(childPID)
	k.forget(childPID)

	if abnormal {
		return code, 0
	}
	return code, 1
}
