// Package process implements the process table: PID assignment,
// parent/child bookkeeping, and the per-process resources a syscall
// touches (its address space handle, FD table, and exit state).
//
// Grounded in cmd/kernel/pcb.go (PCB) but stripped of the scheduling-state
// machine that file layers on top of it — process lifecycle here only
// ever tracks Runnable / Zombie / Reaped, not a short-term scheduler's
// ready/blocked queues.
package process

import (
	"log/slog"
	"sync"
)

// State is the coarse lifecycle names.
type State int

const (
	StateRunnable State = iota
	StateZombie
	StateReaped
)

// VirtualMemory is the subset of an address space a syscall handler or trap
// handler needs, satisfied by both internal/addrspace.AddressSpace (eager)
// and internal/paging.AddressSpace (demand-paged): a kernel picks one
// implementation at startup and every process in that kernel uses the same
// backend, rather than the two coexisting per-process.
type VirtualMemory interface {
	ReadVM(vaddr uint32, buf []byte, off, length int) int
	WriteVM(vaddr uint32, buf []byte, off, length int) int
	ReadVMString(vaddr uint32, maxLen int) (string, error)
	Unload()
}

// Process owns everything lists for one user process. Its lock
// serializes FD-table and page-table-pointer mutations against concurrent
// syscalls from sibling kernel threads.
type Process struct {
	mu sync.Mutex

	PID int
	ParentPID int // 0 means no parent
	TraceID string

	AddrSpace VirtualMemory
	FDs *FDTable

	children map[int]struct{}

	state State
	exitCode int
	abnormalTermination bool

	// joined holds the pid this process is waiting on in Join (0 when none).
	// exitSignal is closed by MarkExit when this process exits, waking every
	// caller blocked in its WaitExit (normally its parent).
	joined int
	exitSignal chan struct{}
}

// New creates a Runnable process with no children yet.
func New(pid, parentPID int, fds *FDTable) *Process {
	return &Process{
		PID: pid,
		ParentPID: parentPID,
		FDs: fds,
		children: make(map[int]struct{}),
		state: StateRunnable,
		exitSignal: make(chan struct{}),
	}
}

// AddChild records pid as a child of this process.
func (p *Process) AddChild(pid int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.children[pid] = struct{}{}
}

// RemoveChild forgets pid, called once the parent has reaped it.
func (p *Process) RemoveChild(pid int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.children, pid)
}

// IsChild reports whether pid is (still) a recorded child of this process.
func (p *Process) IsChild(pid int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.children[pid]
	return ok
}

// TryJoin records that this process is now waiting on childPID, or reports
// AlreadyJoined-equivalent failure if a join is already in flight.
func (p *Process) TryJoin(childPID int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.joined != 0 {
		return false
	}
	p.joined = childPID
	return true
}

// ClearJoin releases the in-flight join marker after the caller reads the
// child's status.
func (p *Process) ClearJoin() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.joined = 0
}

// MarkExit transitions the process to Zombie, records its exit status, and
// closes exitSignal to release any parent blocked in Join. It is safe to
// call at most once; the lifecycle package enforces that invariant.
func (p *Process) MarkExit(code int, abnormal bool) {
	p.mu.Lock()
	p.state = StateZombie
	p.exitCode = code
	p.abnormalTermination = abnormal
	p.mu.Unlock()

	close(p.exitSignal)
}

// WaitExit blocks until MarkExit has run, then returns the stored status.
func (p *Process) WaitExit() (code int, abnormal bool) {
	<-p.exitSignal
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.abnormalTermination
}

// State reports the current lifecycle state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// MarkReaped transitions a Zombie to Reaped. lifecycle.Kernel.Join calls it
// once the parent has collected the status; nothing calls it when a parent
// exits without joining, so such a child stays Zombie.
func (p *Process) MarkReaped() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateReaped
}

// Log returns a slog.Logger enriched with this process's identity, for
// handlers that want per-call structured logging without threading pid
// through every call site.
func (p *Process) Log(base *slog.Logger) *slog.Logger {
	return base.With("pid", p.PID, "trace_id", p.TraceID)
}
