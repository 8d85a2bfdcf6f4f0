package process

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrExhausted is returned by Table.Assign when every PID has been used and
// none are free to recycle.
var ErrExhausted = errors.New("process: PID space exhausted")

// Table is the kernel-global process table. PID assignment uses an
// unsigned monotonic cursor plus a dense free-list of reclaimed PIDs, so a
// wraparound can never mint a negative PID.
type Table struct {
	mu sync.Mutex
	log *slog.Logger
	processes map[int]*Process
	nextPID uint32
	freePIDs []int

	onHalt func()
}

// NewTable creates an empty table. onHalt is invoked by every Terminate call
// that leaves no live process; the table does not deduplicate these calls.
func NewTable(log *slog.Logger, onHalt func()) *Table {
	return &Table{
		log: log,
		processes: make(map[int]*Process),
		nextPID: 1,
		onHalt: onHalt,
	}
}

// Assign reserves and returns the next unused positive PID, preferring a
// recycled one from the free-list (LIFO, so recently-freed low PIDs come
// back first, matching PCB reuse behavior) over minting a new
// one from the monotonic cursor.
func (t *Table) Assign() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.freePIDs); n > 0 {
		pid := t.freePIDs[n-1]
		t.freePIDs = t.freePIDs[:n-1]
		return pid, nil
	}

	if t.nextPID == 0 { // wrapped all the way around uint32
		return 0, ErrExhausted
	}
	pid := int(t.nextPID)
	t.nextPID++
	return pid, nil
}

// Register inserts p under its own PID.
func (t *Table) Register(p *Process) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processes[p.PID] = p
	t.log.Info("process registered", "pid", p.PID, "live", len(t.processes))
}

// Unregister removes pid and returns its PID to the free-list for reuse.
func (t *Table) Unregister(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.processes[pid]; !ok {
		return
	}
	delete(t.processes, pid)
	t.freePIDs = append(t.freePIDs, pid)
	t.log.Info("process unregistered", "pid", pid, "live", len(t.processes))
}

// Release returns pid to the free-list without touching the registry,
// for a PID that Assign handed out but that never made it to Register (a
// failed exec's ELF load, for instance). Unregister can't do this: it only
// releases PIDs it finds registered, so a never-registered PID would
// otherwise be leaked from the free-list forever.
func (t *Table) Release(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.freePIDs = append(t.freePIDs, pid)
	t.log.Info("assigned PID released unused", "pid", pid)
}

// Lookup returns the process registered under pid, if any.
func (t *Table) Lookup(pid int) (*Process, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.processes[pid]
	return p, ok
}

// LiveCount reports the number of currently registered processes.
func (t *Table) LiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.processes)
}

// Terminate unregisters p and, if no live process remains, invokes onHalt.
// release is called with the lock NOT held, so it may
// safely call back into the table (e.g. to free a child's resources).
func (t *Table) Terminate(p *Process, release func()) {
	release()

	t.mu.Lock()
	delete(t.processes, p.PID)
	t.freePIDs = append(t.freePIDs, p.PID)
	remaining := len(t.processes)
	t.mu.Unlock()

	t.log.Info("process terminated", "pid", p.PID, "remaining", remaining)

	if remaining == 0 && t.onHalt != nil {
		t.onHalt()
	}
}
