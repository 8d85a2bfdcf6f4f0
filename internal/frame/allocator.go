// Package frame owns every physical frame in the simulated machine and
// tracks per-owner allocation, grounded in the reference project's
// cmd/memoria/marcos.go (marcosLibres / marcosAsignadosPorProceso) but
// rewritten as an ownership-tracked allocator rather than a
// bare free-count.
package frame

import (
	"fmt"
	"log/slog"
	"sync"
)

// ErrEmpty is returned by Allocate when fewer than n frames are free.
var ErrEmpty = fmt.Errorf("frame: not enough free frames")

// Allocator is the kernel-global physical frame pool.
type Allocator struct {
	mu sync.Mutex
	log *slog.Logger
	total int
	free map[int]struct{}
	ownedBy map[int]int // ppn -> pid; absent entry means free
}

// New creates an Allocator over frames [0, numFrames).
func New(numFrames int, log *slog.Logger) *Allocator {
	free := make(map[int]struct{}, numFrames)
	for i := 0; i < numFrames; i++ {
		free[i] = struct{}{}
	}
	return &Allocator{
		total: numFrames,
		free: free,
		ownedBy: make(map[int]int),
		log: log,
	}
}

// Total reports the fixed physical frame count.
func (a *Allocator) Total() int { return a.total }

// FreeCount reports the number of currently unowned frames.
func (a *Allocator) FreeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.free)
}

// Allocate atomically reserves n frames for pid, in deterministic
// (ascending ppn) order, or returns ErrEmpty leaving the pool unchanged.
func (a *Allocator) Allocate(pid int, n int) ([]int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.free) < n {
		a.log.Error("frame allocation failed", "pid", pid, "requested", n, "free", len(a.free))
		return nil, ErrEmpty
	}

	out := make([]int, 0, n)
	for ppn := 0; ppn < a.total && len(out) < n; ppn++ {
		if _, ok := a.free[ppn]; ok {
			out = append(out, ppn)
		}
	}

	for _, ppn := range out {
		delete(a.free, ppn)
		a.ownedBy[ppn] = pid
	}

	a.log.Info("frames allocated", "pid", pid, "count", n, "frames", out)
	return out, nil
}

// Free returns ppn to the pool iff pid owns it. A mismatched or double free
// is logged and ignored rather than panicking, so a buggy caller can never
// corrupt another process's memory by racing a stray free.
func (a *Allocator) Free(pid int, ppn int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	owner, owned := a.ownedBy[ppn]
	if !owned {
		a.log.Warn("double free ignored", "pid", pid, "ppn", ppn)
		return
	}
	if owner != pid {
		a.log.Warn("free by non-owner ignored", "pid", pid, "ppn", ppn, "owner", owner)
		return
	}

	delete(a.ownedBy, ppn)
	a.free[ppn] = struct{}{}
	a.log.Info("frame freed", "pid", pid, "ppn", ppn)
}

// FreeAll releases every frame owned by pid.
func (a *Allocator) FreeAll(pid int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var freed []int
	for ppn, owner := range a.ownedBy {
		if owner == pid {
			delete(a.ownedBy, ppn)
			a.free[ppn] = struct{}{}
			freed = append(freed, ppn)
		}
	}
	a.log.Info("all frames freed", "pid", pid, "count", len(freed))
}

// OwnerOf reports the pid owning ppn, if any.
func (a *Allocator) OwnerOf(ppn int) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pid, ok := a.ownedBy[ppn]
	return pid, ok
}

// PinnedAccountingSnapshot returns (free, owned, total) for property-based
// tests that check frame conservation: free+owned == total. A frame pinned
// in a paging.PinSet stays owned by its process, so it is counted in owned.
func (a *Allocator) PinnedAccountingSnapshot() (free int, owned int, total int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.free), len(a.ownedBy), a.total
}
