// Package addrspace builds a process's private virtual address space from
// an ELF32 image and provides the virtual-to-physical translation and
// memory-transfer primitives every syscall and trap handler relies on.
//
// Grounded in nachos/userprog/UserProcess.java (loadSections, readVirtualMemory,
// writeVirtualMemory) and cmd/memoria/{tablas_paginas,direcciones}.go,
// generalized from multi-level table to flat
// dense page table and from network RPC per byte to direct slice copies —
// the tight coupling calls out between loader, translator, and
// frame allocator rules out a wire hop per translated byte.
package addrspace

import (
	"log/slog"

	"github.com/nachos-go/kernel/internal/elf32"
	"github.com/nachos-go/kernel/internal/frame"
	"github.com/nachos-go/kernel/internal/machine"
)

const stackPages = 8

// AddressSpace is one process's page table plus the bookkeeping needed to
// reload argv and to release frames on exit.
type AddressSpace struct {
	pid int
	pageSize uint32
	mem *machine.PhysicalMemory
	allocator *frame.Allocator
	log *slog.Logger

	table []TranslationEntry
	sections []*elf32.Section // parallel structure: which loadable section (if any) backs each page range

	EntryPoint uint32
	InitialSP uint32
	Argc uint32
	ArgvVAddr uint32
}

// New constructs an empty AddressSpace bound to pid; call Load to populate it.
func New(pid int, pageSize uint32, mem *machine.PhysicalMemory, allocator *frame.Allocator, log *slog.Logger) *AddressSpace {
	return &AddressSpace{pid: pid, pageSize: pageSize, mem: mem, allocator: allocator, log: log}
}

// NumPages reports the page table length.
func (as *AddressSpace) NumPages() int { return len(as.table) }

// Table returns the live page table slice; callers (the paging kernel's
// context-switch resync) may mutate entries in place.
func (as *AddressSpace) Table() []TranslationEntry { return as.table }

// Load implements step 1-8: parse the ELF image, verify
// section contiguity from vpn 0, size the address space, reserve frames
// eagerly, copy in section bytes, and write the argv page.
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
			return ErrFragmented
		}
		running += s.NumPages
	}

	if ph, ok := r.ProgramEntryForType(elf32.PTLoad); ok {
		wantPages := (ph.MemSz + as.pageSize - 1) / as.pageSize
		if wantPages > running {
			as.log.Warn("PT_LOAD memsz exceeds declared section pages", "pid", as.pid, "memsz_pages", wantPages, "section_pages", running)
		}
	}

	numPages := int(running) + stackPages + 1 // +1 argv page
	argvBytes := 0
	for _, a := range argv {
		argvBytes += 4 + len(a) + 1
	}
	if argvBytes > int(as.pageSize) {
		return ErrArgsTooLong
	}

	frames, err := as.allocator.Allocate(as.pid, numPages)
	if err != nil {
		as.log.Error("out of memory during load", "pid", as.pid, "pages_needed", numPages)
		return ErrOutOfMemory
	}

	as.table = make([]TranslationEntry, numPages)
	as.sections = make([]*elf32.Section, numPages)
	for vpn, ppn := range frames {
		as.table[vpn] = TranslationEntry{VPN: uint32(vpn), PPN: ppn, Valid: true}
	}

	for _, s := range loadable {
		for spn := uint32(0); spn < s.NumPages; spn++ {
			vpn := s.FirstVPN + spn
			as.table[vpn].ReadOnly = s.ReadOnly()
			as.sections[vpn] = s
			if err := s.LoadPage(spn, as.mem.Page(as.table[vpn].PPN)); err != nil {
				return err
			}
		}
	}

	argvPageVPN := numPages - 1
	argvVAddr := uint32(argvPageVPN) * as.pageSize
	if err := as.writeArgvPage(as.table[argvPageVPN].PPN, argv, argvVAddr); err != nil {
		return err
	}

	as.EntryPoint = r.EntryPoint
	as.InitialSP = uint32(numPages) * as.pageSize
	as.Argc = uint32(len(argv))
	as.ArgvVAddr = argvVAddr

	as.log.Info("address space loaded", "pid", as.pid, "pages", numPages, "entry", as.EntryPoint, "argc", as.Argc)
	return nil
}

// writeArgvPage lays out argc little-endian pointers followed by the
// NUL-terminated argument bytes they point to.
func (as *AddressSpace) writeArgvPage(ppn int, argv []string, argvPageVAddr uint32) error {
	page := as.mem.Page(ppn)
	for i := range page {
		page[i] = 0
	}

	ptrTableSize := 4 * len(argv)
	strCursor := ptrTableSize

	for i, a := range argv {
		strVAddr := argvPageVAddr + uint32(strCursor)
		putLE32(page[i*4:i*4+4], strVAddr)
		copy(page[strCursor:], a)
		strCursor += len(a) + 1 // + NUL, already zeroed above
	}

	return nil
}

func putLE32(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

// translate returns the physical byte range in frame bytes for one virtual
// page, or ok=false if vpn is out of range or invalid.
func (as *AddressSpace) translate(vpn uint32) (entry *TranslationEntry, ok bool) {
	if int(vpn) >= len(as.table) {
		return nil, false
	}
	e := &as.table[vpn]
	if !e.Valid {
		return nil, false
	}
	return e, true
}

// ReadVM copies up to len bytes starting at vaddr into buf[off:off+len],
// stopping at the first unmapped page and returning the short count.
// off/len bounds are a programmer error and panic like a slice index would.
func (as *AddressSpace) ReadVM(vaddr uint32, buf []byte, off, length int) int {
	if off < 0 || length < 0 || off+length > len(buf) {
		panic("addrspace: ReadVM: bad off/len for buf")
	}

	transferred := 0
	for transferred < length {
		cur := vaddr + uint32(transferred)
		vpn := cur / as.pageSize
		pageOff := int(cur % as.pageSize)

		entry, ok := as.translate(vpn)
		if !ok {
			break
		}

		n := length - transferred
		if room := int(as.pageSize) - pageOff; n > room {
			n = room
		}

		src := as.mem.ByteAt(entry.PPN, pageOff)
		copy(buf[off+transferred:off+transferred+n], src[:n])
		entry.Used = true

		transferred += n
	}
	return transferred
}

// WriteVM is ReadVM's mirror. Writing through a read-only entry transfers
// nothing for that page and stops there, returning the short count; the
// caller's ReadOnly trap will have fired separately for a genuine user
// write.
func (as *AddressSpace) WriteVM(vaddr uint32, buf []byte, off, length int) int {
	if off < 0 || length < 0 || off+length > len(buf) {
		panic("addrspace: WriteVM: bad off/len for buf")
	}

	transferred := 0
	for transferred < length {
		cur := vaddr + uint32(transferred)
		vpn := cur / as.pageSize
		pageOff := int(cur % as.pageSize)

		entry, ok := as.translate(vpn)
		if !ok || entry.ReadOnly {
			break
		}

		n := length - transferred
		if room := int(as.pageSize) - pageOff; n > room {
			n = room
		}

		dst := as.mem.ByteAt(entry.PPN, pageOff)
		copy(dst[:n], buf[off+transferred:off+transferred+n])
		entry.Used = true
		entry.Dirty = true

		transferred += n
	}
	return transferred
}

// ReadVMString reads up to maxLen+1 bytes starting at vaddr and returns the
// prefix up to the first NUL, or ErrNotTerminated if none appears in the
// window.
func (as *AddressSpace) ReadVMString(vaddr uint32, maxLen int) (string, error) {
	window := make([]byte, maxLen+1)
	n := as.ReadVM(vaddr, window, 0, maxLen+1)
	for i := 0; i < n; i++ {
		if window[i] == 0 {
			return string(window[:i]), nil
		}
	}
	return "", ErrNotTerminated
}

// Unload returns every frame owned by this process to the allocator.
func (as *AddressSpace) Unload() {
	as.allocator.FreeAll(as.pid)
	as.log.Info("address space unloaded", "pid", as.pid)
}
