// Package paging implements demand paging: an inverted page table, a
// pre-sized swap file, a reference-counted pin set, and a clock-style
// eviction policy, replacing internal/addrspace's eager frame allocation
// with lazy fault-driven allocation.
//
// Grounded in nachos/vm/{VMKernel,VMProcess}.java for the fault-handling
// and eviction algorithm, and in cmd/memoria/swap.go for the on-disk
// swap-file mechanics, generalized from a PID-keyed string map to a
// (pid, vpn)-keyed inverted table.
package paging

import (
	"sync"

	"github.com/nachos-go/kernel/internal/addrspace"
)

// Key identifies one resident virtual page across the whole machine.
type Key struct {
	PID int
	VPN uint32
}

// InvertedTable maps every currently-resident (pid, vpn) to its
// TranslationEntry, and its reverse (ppn -> Key) for the eviction scanner,
// which requires to be indexed directly by frame rather than by
// walking a possibly-sparse per-pid list.
type InvertedTable struct {
	mu sync.Mutex
	byKey map[Key]addrspace.TranslationEntry
	byFrame map[int]Key
	numFrames int
}

// NewInvertedTable creates an empty table sized for numFrames physical frames.
func NewInvertedTable(numFrames int) *InvertedTable {
	return &InvertedTable{
		byKey: make(map[Key]addrspace.TranslationEntry),
		byFrame: make(map[int]Key),
		numFrames: numFrames,
	}
}

// Lookup returns the entry resident for key, if any.
func (t *InvertedTable) Lookup(key Key) (addrspace.TranslationEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byKey[key]
	return e, ok
}

// Insert records key as resident in entry.PPN. It is an invariant violation
// to insert two keys onto the same frame without first Removing the prior
// occupant; callers (the fault handler and evictor) are responsible for
// that ordering.
func (t *InvertedTable) Insert(key Key, entry addrspace.TranslationEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byKey[key] = entry
	t.byFrame[entry.PPN] = key
}

// Remove drops key's residency, if present.
func (t *InvertedTable) Remove(key Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.byKey[key]; ok {
		delete(t.byKey, key)
		delete(t.byFrame, e.PPN)
	}
}

// RemoveFrame drops whatever key currently occupies ppn, returning it.
func (t *InvertedTable) RemoveFrame(ppn int) (Key, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key, ok := t.byFrame[ppn]
	if !ok {
		return Key{}, false
	}
	delete(t.byFrame, ppn)
	delete(t.byKey, key)
	return key, true
}

// KeyForFrame reports which (pid, vpn) currently occupies ppn.
func (t *InvertedTable) KeyForFrame(ppn int) (Key, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key, ok := t.byFrame[ppn]
	return key, ok
}

// UpdateFlags mutates the Used/Dirty bits of the entry resident at key, if any.
func (t *InvertedTable) UpdateFlags(key Key, used, dirty bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byKey[key]
	if !ok {
		return
	}
	e.Used = e.Used || used
	e.Dirty = e.Dirty || dirty
	t.byKey[key] = e
}

// ClearUsed unconditionally resets the used bit of the entry resident at
// key, used by the evictor's second-chance sweep. Unlike UpdateFlags (which
// only ORs bits in from a fresh reference), this can turn a set bit back
// off.
func (t *InvertedTable) ClearUsed(key Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byKey[key]
	if !ok {
		return
	}
	e.Used = false
	t.byKey[key] = e
}

// ScanFrame reports the entry currently resident in ppn, for the evictor's
// frame-indexed sweep.
func (t *InvertedTable) ScanFrame(ppn int) (Key, addrspace.TranslationEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key, ok := t.byFrame[ppn]
	if !ok {
		return Key{}, addrspace.TranslationEntry{}, false
	}
	return key, t.byKey[key], true
}

// RemoveProcess drops every entry belonging to pid, called from exit.
func (t *InvertedTable) RemoveProcess(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, e := range t.byKey {
		if key.PID == pid {
			delete(t.byKey, key)
			delete(t.byFrame, e.PPN)
		}
	}
}
