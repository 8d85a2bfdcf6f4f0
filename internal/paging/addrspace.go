package paging

import (
	"log/slog"
	"math/rand"

	"github.com/nachos-go/kernel/internal/addrspace"
	"github.com/nachos-go/kernel/internal/elf32"
	"github.com/nachos-go/kernel/internal/frame"
	"github.com/nachos-go/kernel/internal/machine"
)

const stackPages = 8

// AddressSpace is the demand-paged counterpart of addrspace.AddressSpace:
// its page table starts entirely invalid and pages are populated one at a
// time by HandleFault. It shares the machine-contract
// PhysicalMemory and frame.Allocator with the eager variant so both can
// coexist behind a single kernel configuration flag.
type AddressSpace struct {
	pid int
	pageSize uint32
	mem *machine.PhysicalMemory
	alloc *frame.Allocator
	inverted *InvertedTable
	swap *SwapFile
	pins *PinSet
	evictor *Evictor
	log *slog.Logger

	table []addrspace.TranslationEntry
	sections []*elf32.Section

	argv []string
	argvPageVPN int
	numPages int

	EntryPoint uint32
	InitialSP uint32
	Argc uint32
	ArgvVAddr uint32
}

// New constructs a demand-paged address space over the shared paging
// infrastructure. src seeds the evictor's randomized clock-hand start.
func New(pid int, pageSize uint32, mem *machine.PhysicalMemory, alloc *frame.Allocator, inverted *InvertedTable, swap *SwapFile, pins *PinSet, src rand.Source, log *slog.Logger) *AddressSpace {
	return &AddressSpace{
		pid: pid,
		pageSize: pageSize,
		mem: mem,
		alloc: alloc,
		inverted: inverted,
		swap: swap,
		pins: pins,
		evictor: NewEvictor(inverted, pins, swap, mem, src),
		log: log,
	}
}

// NumPages reports the page table length.
func (as *AddressSpace) NumPages() int { return as.numPages }

// Table returns the live page table slice. Faults update it directly; an
// eviction only updates the inverted table, so an entry can stay stale until
// resync or ResyncFromInverted catches it up.
func (as *AddressSpace) Table() []addrspace.TranslationEntry { return as.table }

// Load parses the ELF image and sizes the address space exactly as
// addrspace.AddressSpace.Load does, but reserves no frames: every page
// (section-backed, stack, or argv) is left invalid until first touched.
// The section that backs each page is recorded up front from the ELF
// section table so a later fault always knows how to refill it, rather
// than depending on runtime state that can go stale.
func (as *AddressSpace) Load(r *elf32.Reader, argv []string) error {
	var loadable []*elf32.Section
	for _, s := range r.Sections {
		if s.Loadable() {
			loadable = append(loadable, s)
		}
	}

	var running uint32
	for _, s := range loadable {
		if s.FirstVPN != running {
			as.log.Error("sections not contiguous from vpn 0", "pid", as.pid, "section", s.Name, "want_vpn", running, "got_vpn", s.FirstVPN)
			return addrspace.ErrFragmented
		}
		running += s.NumPages
	}

	argvBytes := 0
	for _, a := range argv {
		argvBytes += 4 + len(a) + 1
	}
	if argvBytes > int(as.pageSize) {
		return addrspace.ErrArgsTooLong
	}

	if ph, ok := r.ProgramEntryForType(elf32.PTLoad); ok {
		wantPages := (ph.MemSz + as.pageSize - 1) / as.pageSize
		if wantPages > running {
			as.log.Warn("PT_LOAD memsz exceeds declared section pages", "pid", as.pid, "memsz_pages", wantPages, "section_pages", running)
		}
	}

	numPages := int(running) + stackPages + 1 // +1 argv page
	as.table = make([]addrspace.TranslationEntry, numPages)
	as.sections = make([]*elf32.Section, numPages)
	for vpn := range as.table {
		as.table[vpn] = addrspace.TranslationEntry{VPN: uint32(vpn), Valid: false}
	}

	for _, s := range loadable {
		for spn := uint32(0); spn < s.NumPages; spn++ {
			as.sections[s.FirstVPN+spn] = s
		}
	}

	as.numPages = numPages
	as.argv = argv
	as.argvPageVPN = numPages - 1

	as.EntryPoint = r.EntryPoint
	as.InitialSP = uint32(numPages) * as.pageSize
	as.Argc = uint32(len(argv))
	as.ArgvVAddr = uint32(as.argvPageVPN) * as.pageSize

	as.log.Info("paging address space loaded", "pid", as.pid, "pages", numPages, "entry", as.EntryPoint, "argc", as.Argc)
	return nil
}

// HandleFault services a TLB-miss/page-fault trap at vaddr: consult the
// swap-slot table first, otherwise identify whether the page is
// section-backed, the argv page, or zero-fill stack, allocate (evicting if
// necessary) and populate a frame, and mark the page resident. The local
// entry is resynced against the inverted table first, so a page this
// process's own eviction reclaimed doesn't panic as "already resident." A
// fault on a genuinely still-resident page is a caller bug and panics.
func (as *AddressSpace) HandleFault(vaddr uint32) error {
	vpn := vaddr / as.pageSize
	if int(vpn) >= as.numPages {
		return addrspace.ErrOutOfMemory
	}
	as.resync(vpn)
	if as.table[vpn].Valid {
		panic("paging: HandleFault called for an already-resident page")
	}

	key := Key{PID: as.pid, VPN: vpn}

	ppn, err := as.ensureFrame()
	if err != nil {
		return err
	}

	readOnly := false
	switch {
	case as.swapBound(key):
		if err := as.swap.ReadIn(key, as.mem.Page(ppn)); err != nil {
			as.alloc.Free(as.pid, ppn)
			return err
		}
	case vpn == uint32(as.argvPageVPN):
		as.writeArgvPage(ppn)
	case as.sections[vpn] != nil:
		s := as.sections[vpn]
		spn := vpn - s.FirstVPN
		if err := s.LoadPage(spn, as.mem.Page(ppn)); err != nil {
			as.alloc.Free(as.pid, ppn)
			return err
		}
		readOnly = s.ReadOnly()
	default:
		page := as.mem.Page(ppn)
		for i := range page {
			page[i] = 0
		}
	}

	entry := addrspace.TranslationEntry{VPN: vpn, PPN: ppn, Valid: true, ReadOnly: readOnly}
	as.table[vpn] = entry
	as.inverted.Insert(key, entry)

	as.log.Debug("page fault resolved", "pid", as.pid, "vpn", vpn, "ppn", ppn, "read_only", readOnly)
	return nil
}

func (as *AddressSpace) swapBound(key Key) bool {
	_, ok := as.swap.Bound(key)
	return ok
}

// ensureFrame reserves one frame for this process, evicting a victim (per
// the clock sweep) if the pool is exhausted.
func (as *AddressSpace) ensureFrame() (int, error) {
	frames, err := as.alloc.Allocate(as.pid, 1)
	if err == nil {
		return frames[0], nil
	}
	if err != frame.ErrEmpty {
		return 0, err
	}

	ppn, evicted, hadOwner, evErr := as.evictor.Evict(as.alloc.Total())
	if evErr != nil {
		return 0, evErr
	}
	if hadOwner {
		as.alloc.Free(evicted.PID, ppn)
	}

	frames, err = as.alloc.Allocate(as.pid, 1)
	if err != nil {
		return 0, err
	}
	return frames[0], nil
}

func (as *AddressSpace) writeArgvPage(ppn int) {
	page := as.mem.Page(ppn)
	for i := range page {
		page[i] = 0
	}

	argvPageVAddr := uint32(as.argvPageVPN) * as.pageSize
	ptrTableSize := 4 * len(as.argv)
	strCursor := ptrTableSize

	for i, a := range as.argv {
		strVAddr := argvPageVAddr + uint32(strCursor)
		putLE32(page[i*4:i*4+4], strVAddr)
		copy(page[strCursor:], a)
		strCursor += len(a) + 1
	}
}

func putLE32(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

// translate returns the resident entry for vpn, or ok=false if it is not
// currently mapped (the caller must fault it in first).
func (as *AddressSpace) translate(vpn uint32) (*addrspace.TranslationEntry, bool) {
	if int(vpn) >= len(as.table) {
		return nil, false
	}
	if _, ok := as.resync(vpn); !ok {
		return nil, false
	}
	return &as.table[vpn], true
}

// resync reconciles as.table[vpn] against the inverted table, the
// machine-wide authority on what is actually resident. A locally-valid
// entry whose key the inverted table no longer attributes to this (pid,
// vpn) means an eviction sweep reclaimed the frame while this process
// wasn't looking — possibly to serve a fault of its own, possibly to serve
// an unrelated process — so the local entry is stale and is invalidated
// rather than left pointing at a frame that now belongs to someone else.
func (as *AddressSpace) resync(vpn uint32) (addrspace.TranslationEntry, bool) {
	if !as.table[vpn].Valid {
		return as.table[vpn], false
	}
	entry, ok := as.inverted.Lookup(Key{PID: as.pid, VPN: vpn})
	if !ok {
		as.table[vpn] = addrspace.TranslationEntry{VPN: vpn, Valid: false}
		return as.table[vpn], false
	}
	as.table[vpn] = entry
	return entry, true
}

// ResyncFromInverted reconciles every entry in this process's page table
// against the inverted table, invalidating whichever ones an eviction
// reclaimed since the last time this process ran. Grounded in
// nachos/userprog/UserProcess.java's restoreState, called by the dispatcher
// when this process is about to run again: TLB entries are invalidated and
// the process page table is resynchronized from the machine-wide inverted
// table, the same event that would otherwise leave a stale, still-"valid"
// local entry pointing at a frame an eviction has since handed to someone
// else.
func (as *AddressSpace) ResyncFromInverted() {
	for vpn := range as.table {
		as.resync(uint32(vpn))
	}
}

// ReadVM mirrors addrspace.AddressSpace.ReadVM but pins each touched frame
// for the duration of the transfer, so a concurrent eviction cannot steal
// a page out from under an in-flight syscall copy. Pages not yet resident
// are faulted
// in first; a fault failure (out of memory with nothing evictable) stops
// the transfer at that point and returns the short count.
func (as *AddressSpace) ReadVM(vaddr uint32, buf []byte, off, length int) int {
	return as.transfer(vaddr, buf, off, length, false)
}

// WriteVM is ReadVM's mirror; writing through a read-only page stops the
// transfer there without faulting further pages.
func (as *AddressSpace) WriteVM(vaddr uint32, buf []byte, off, length int) int {
	return as.transfer(vaddr, buf, off, length, true)
}

func (as *AddressSpace) transfer(vaddr uint32, buf []byte, off, length int, write bool) int {
	if off < 0 || length < 0 || off+length > len(buf) {
		panic("paging: bad off/len for buf")
	}

	transferred := 0
	for transferred < length {
		cur := vaddr + uint32(transferred)
		vpn := cur / as.pageSize
		pageOff := int(cur % as.pageSize)

		entry, ok := as.translate(vpn)
		if !ok {
			if int(vpn) >= as.numPages {
				break
			}
			if err := as.HandleFault(cur - uint32(pageOff)); err != nil {
				break
			}
			entry, ok = as.translate(vpn)
			if !ok {
				break
			}
		}
		if write && entry.ReadOnly {
			break
		}

		as.pins.Pin(entry.PPN)

		n := length - transferred
		if room := int(as.pageSize) - pageOff; n > room {
			n = room
		}

		if write {
			dst := as.mem.ByteAt(entry.PPN, pageOff)
			copy(dst[:n], buf[off+transferred:off+transferred+n])
			entry.Dirty = true
		} else {
			src := as.mem.ByteAt(entry.PPN, pageOff)
			copy(buf[off+transferred:off+transferred+n], src[:n])
		}
		entry.Used = true
		as.inverted.UpdateFlags(Key{PID: as.pid, VPN: vpn}, true, write)

		as.pins.Unpin(entry.PPN)

		transferred += n
	}
	return transferred
}

// ReadVMString reads up to maxLen+1 bytes starting at vaddr and returns the
// prefix up to the first NUL, or ErrNotTerminated if none appears.
func (as *AddressSpace) ReadVMString(vaddr uint32, maxLen int) (string, error) {
	window := make([]byte, maxLen+1)
	n := as.ReadVM(vaddr, window, 0, maxLen+1)
	for i := 0; i < n; i++ {
		if window[i] == 0 {
			return string(window[:i]), nil
		}
	}
	return "", addrspace.ErrNotTerminated
}

// Unload releases every frame owned by this process, forgets any swap
// slots it still holds, and drops its inverted-table entries.
func (as *AddressSpace) Unload() {
	as.alloc.FreeAll(as.pid)
	as.inverted.RemoveProcess(as.pid)
	for vpn := 0; vpn < as.numPages; vpn++ {
		as.swap.Forget(Key{PID: as.pid, VPN: uint32(vpn)})
	}
	as.log.Info("paging address space unloaded", "pid", as.pid)
}
