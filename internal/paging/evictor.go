package paging

import (
	"fmt"
	"math/rand"

	"github.com/nachos-go/kernel/internal/machine"
)

// Evictor selects a physical frame to reclaim when the frame allocator has
// none free, implementing the clock-style sweep of nachos/vm/VMKernel.java's
// getVictimFrame, generalized to the frame-indexed InvertedTable: scanning
// by physical frame rather than by walking each process's page table keeps
// eviction correct even when PIDs are sparse.
type Evictor struct {
	inverted *InvertedTable
	pins *PinSet
	swap *SwapFile
	mem *machine.PhysicalMemory
	rng *rand.Rand
}

// NewEvictor builds an evictor; the number of frames to sweep is passed to
// each Evict call. src seeds the
// randomized starting hand position (so repeated runs don't always evict
// starting from frame 0); pass rand.NewSource(1) or similar for
// deterministic tests.
func NewEvictor(inverted *InvertedTable, pins *PinSet, swap *SwapFile, mem *machine.PhysicalMemory, src rand.Source) *Evictor {
	return &Evictor{
		inverted: inverted,
		pins: pins,
		swap: swap,
		mem: mem,
		rng: rand.New(src),
	}
}

// Evict picks a victim frame among numFrames candidates, writes its
// contents to swap (unless it is a clean read-only page, which is simply
// discarded since it can be re-loaded from the executable), updates the
// inverted table, and returns the reclaimed frame number along with the
// (pid, vpn) that used to own it, so the caller can release the frame's
// allocator ownership before reassigning it.
//
// Sweep order: the first pass accepts only a frame that is both unused and
// clean, clearing the used bit of every used frame it passes (second
// chance); the second pass accepts any unused frame, dirty or not. A pinned
// frame is never chosen.
// If every frame is pinned, Evict blocks on the pin set until one is
// unpinned rather than reporting failure.
func (e *Evictor) Evict(numFrames int) (ppn int, evicted Key, hadOwner bool, err error) {
	if numFrames == 0 {
		return 0, Key{}, false, fmt.Errorf("paging: no frames to evict from")
	}

	start := e.rng.Intn(numFrames)

	if p, ok := e.sweep(numFrames, start, true); ok {
		return e.reclaim(p)
	}
	if p, ok := e.sweep(numFrames, start, false); ok {
		return e.reclaim(p)
	}

	// Every frame is currently pinned by an in-flight transfer. Block until
	// at least one is unpinned rather than failing the fault outright, then
	// give the sweep one more pass.
	all := make([]int, numFrames)
	for i := range all {
		all[i] = i
	}
	e.pins.WaitWhileAllPinned(all)

	if p, ok := e.sweep(numFrames, start, false); ok {
		return e.reclaim(p)
	}
	return 0, Key{}, false, fmt.Errorf("paging: every frame is pinned, nothing evictable")
}

// sweep walks numFrames frames starting at start, one full loop. When
// requireClean is true it only accepts unused+clean frames and clears the
// used bit of any busy one it passes (second-chance). When false it accepts
// any unused frame regardless of dirty state.
func (e *Evictor) sweep(numFrames, start int, requireClean bool) (int, bool) {
	for i := 0; i < numFrames; i++ {
		ppn := (start + i) % numFrames
		if e.pins.Pinned(ppn) {
			continue
		}
		key, entry, ok := e.inverted.ScanFrame(ppn)
		if !ok {
			return ppn, true // unowned frame, take it
		}
		if entry.Used {
			if requireClean {
				e.inverted.ClearUsed(key)
			}
			continue
		}
		if requireClean && entry.Dirty {
			continue
		}
		return ppn, true
	}
	return 0, false
}

// reclaim evicts whatever currently occupies ppn (if anything) and returns
// ppn ready for reuse, plus the key (and whether one existed) that used to
// own it. It only removes the victim from the inverted table, the
// machine-wide source of truth for residency; the victim's own
// AddressSpace.table entry is left stale on purpose and catches up lazily,
// the next time that process touches the page or is dispatched to run
// (AddressSpace.resync / ResyncFromInverted).
func (e *Evictor) reclaim(ppn int) (int, Key, bool, error) {
	key, entry, ok := e.inverted.ScanFrame(ppn)
	if !ok {
		return ppn, Key{}, false, nil
	}

	if !entry.ReadOnly && entry.Dirty {
		if err := e.swap.WriteOut(key, e.mem.Page(ppn)); err != nil {
			return 0, Key{}, false, fmt.Errorf("paging: evict pid=%d vpn=%d: %w", key.PID, key.VPN, err)
		}
	} else if !entry.ReadOnly {
		// Clean writable page: still needs a swap slot so a future fault
		// can find its last-written contents rather than re-zeroing it.
		if _, bound := e.swap.Bound(key); !bound {
			if err := e.swap.WriteOut(key, e.mem.Page(ppn)); err != nil {
				return 0, Key{}, false, fmt.Errorf("paging: evict pid=%d vpn=%d: %w", key.PID, key.VPN, err)
			}
		}
	}
	// Read-only pages (executable text/rodata) are simply discarded: the
	// fault handler reloads them straight from the ELF section on demand.

	e.inverted.Remove(key)
	return ppn, key, true, nil
}
