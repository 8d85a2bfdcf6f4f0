// Package elf32 parses little-endian, 32-bit-class ELF executables and
// exposes the loadable sections a MIPS user program needs mapped into its
// address space.
//
// Grounded in nachos/machine/Elf.java and nachos/machine/ElfSection.java
// (original_source), re-expressed with debug/elf-style field names but
// hand-decoded (no debug/elf import: that package targets the host's own
// object format assumptions and does not expose the section-must-be-
// contiguous-from-vpn-0 semantics this loader needs).
package elf32

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrBadFormat is returned when the input is not a little-endian, 32-bit
// class ELF header.
var ErrBadFormat = errors.New("elf32: bad format")

const headerSize = 52

// SectionType is the closed set of section types this loader understands.
type SectionType uint32

const (
	SHTNull SectionType = 0
	SHTProgbits SectionType = 1
	SHTSymtab SectionType = 2
	SHTStrtab SectionType = 3
	SHTRela SectionType = 4
	SHTHash SectionType = 5
	SHTDynamic SectionType = 6
	SHTNote SectionType = 7
	SHTNobits SectionType = 8
	SHTRel SectionType = 9
	SHTShlib SectionType = 10
	SHTDynsym SectionType = 11
)

// SectionFlag is a bitmask over the closed set of flags this loader cares
// about: WRITE, ALLOC, EXECINSTR. Stored as a direct bitfield, not an
// enum-set, per "Enumerated bitflags" design note.
type SectionFlag uint32

const (
	FlagWrite SectionFlag = 1 << 0
	FlagAlloc SectionFlag = 1 << 1
	FlagExecInstr SectionFlag = 1 << 2
)

func (f SectionFlag) has(bit SectionFlag) bool { return f&bit != 0 }

// ProgramType is the closed set of program header types this loader
// recognizes; only PT_LOAD is used for the sanity check in
// Reader.ProgramEntryForType.
type ProgramType uint32

const (
	PTNull ProgramType = 0
	PTLoad ProgramType = 1
)

// Section describes one ELF section header plus the derived fields the
// address-space loader needs.
type Section struct {
	Name string
	Type SectionType
	Flags SectionFlag
	VAddr uint32
	Offset uint32
	Size uint32
	Align uint32
	EntSize uint32
	FirstVPN uint32 // valid iff Loadable
	NumPages uint32 // valid iff Loadable
	pageSize uint32
	source io.ReaderAt
}

// Loadable reports whether ALLOC is set.
func (s *Section) Loadable() bool { return s.Flags.has(FlagAlloc) }

// ReadOnly reports whether the section is loadable and not writable.
func (s *Section) ReadOnly() bool { return s.Loadable() && !s.Flags.has(FlagWrite) }

// Executable reports whether the section is loadable and marked EXECINSTR.
func (s *Section) Executable() bool { return s.Loadable() && s.Flags.has(FlagExecInstr) }

// LoadPage copies one page (spn, the section-relative page number) of this
// section's bytes into dst, which must be exactly pageSize bytes. NOBITS
// sections (.bss) are always zero-filled. Otherwise the min of pageSize and
// the bytes remaining in the section is read from file, and the remainder
// of dst is zeroed — including the case where the section size is an exact
// multiple of pageSize, in which case the last page is filled completely
// rather than zeroed (the historic off-by-one calls out).
func (s *Section) LoadPage(spn uint32, dst []byte) error {
	if uint32(len(dst)) != s.pageSize {
		return fmt.Errorf("elf32: LoadPage: dst must be exactly %d bytes, got %d", s.pageSize, len(dst))
	}

	for i := range dst {
		dst[i] = 0
	}

	if s.Type == SHTNobits {
		return nil
	}

	pageStart := spn * s.pageSize
	if pageStart >= s.Size {
		return nil
	}

	remaining := s.Size - pageStart
	n := s.pageSize
	if remaining < n {
		n = remaining
	}

	_, err := s.source.ReadAt(dst[:n], int64(s.Offset+pageStart))
	if err != nil && err != io.EOF {
		return fmt.Errorf("elf32: LoadPage: %w", err)
	}
	return nil
}

// ProgramHeader is one PT_* entry, used only to sanity-check the allocated
// image size against a LOAD segment's declared memsz.
type ProgramHeader struct {
	Type ProgramType
	Offset uint32
	VAddr uint32
	FileSz uint32
	MemSz uint32
	Flags uint32
	Align uint32
}

// Reader holds the parsed header, section table, and program header table
// of one ELF32 executable.
type Reader struct {
	EntryPoint uint32
	Sections []*Section
	Programs []ProgramHeader
	pageSize uint32
}

// NewReader reads and validates the ELF header from src, then loads the
// section and program header tables. src must support ReadAt for random
// access to section/string-table bytes and later page loads.
func NewReader(src io.ReaderAt, pageSize uint32) (*Reader, error) {
	var hdr [headerSize]byte
	if _, err := src.ReadAt(hdr[:], 0); err != nil {
		return nil, fmt.Errorf("elf32: read header: %w", err)
	}

	if hdr[0] != 0x7F || hdr[1] != 'E' || hdr[2] != 'L' || hdr[3] != 'F' {
		return nil, ErrBadFormat
	}
	if hdr[4] != 1 { // ELFCLASS32
		return nil, ErrBadFormat
	}
	if hdr[5] != 1 { // ELFDATA2LSB
		return nil, ErrBadFormat
	}

	ehsize := binary.LittleEndian.Uint16(hdr[40:42])
	if ehsize < headerSize {
		return nil, ErrBadFormat
	}

	entry := binary.LittleEndian.Uint32(hdr[24:28])
	phoff := binary.LittleEndian.Uint32(hdr[28:32])
	shoff := binary.LittleEndian.Uint32(hdr[32:36])
	phentsize := binary.LittleEndian.Uint16(hdr[42:44])
	phnum := binary.LittleEndian.Uint16(hdr[44:46])
	shentsize := binary.LittleEndian.Uint16(hdr[46:48])
	shnum := binary.LittleEndian.Uint16(hdr[48:50])
	shstrndx := binary.LittleEndian.Uint16(hdr[50:52])

	r := &Reader{EntryPoint: entry, pageSize: pageSize}

	if shnum > 0 {
		strTabOff, strTabSize, err := readSectionOffsetSize(src, shoff, shentsize, shstrndx)
		if err != nil {
			return nil, err
		}

		for i := uint16(1); i < shnum; i++ { // skip index 0, the null section
			sec, err := readSection(src, shoff, shentsize, i, strTabOff, strTabSize, pageSize)
			if err != nil {
				return nil, err
			}
			r.Sections = append(r.Sections, sec)
		}
	}

	for i := uint16(0); i < phnum; i++ {
		ph, err := readProgramHeader(src, phoff, phentsize, i)
		if err != nil {
			return nil, err
		}
		r.Programs = append(r.Programs, ph)
	}

	return r, nil
}

// ProgramEntryForType returns the first program header of the given type,
// used by addrspace.Load to sanity-check the allocated image size against a
// PT_LOAD segment's memsz.
func (r *Reader) ProgramEntryForType(t ProgramType) (ProgramHeader, bool) {
	for _, ph := range r.Programs {
		if ph.Type == t {
			return ph, true
		}
	}
	return ProgramHeader{}, false
}

func readSectionOffsetSize(src io.ReaderAt, shoff uint32, shentsize uint16, idx uint16) (uint32, uint32, error) {
	var raw [40]byte
	off := int64(shoff) + int64(idx)*int64(shentsize)
	if _, err := src.ReadAt(raw[:], off); err != nil {
		return 0, 0, fmt.Errorf("elf32: read strtab section header: %w", err)
	}
	return binary.LittleEndian.Uint32(raw[16:20]), binary.LittleEndian.Uint32(raw[20:24]), nil
}

func readSection(src io.ReaderAt, shoff uint32, shentsize uint16, idx uint16, strTabOff, strTabSize uint32, pageSize uint32) (*Section, error) {
	var raw [40]byte
	off := int64(shoff) + int64(idx)*int64(shentsize)
	if _, err := src.ReadAt(raw[:], off); err != nil {
		return nil, fmt.Errorf("elf32: read section header %d: %w", idx, err)
	}

	nameOff := binary.LittleEndian.Uint32(raw[0:4])
	name, err := readCString(src, int64(strTabOff)+int64(nameOff), strTabSize)
	if err != nil {
		return nil, fmt.Errorf("elf32: section %d name: %w", idx, err)
	}

	sec := &Section{
		Name: name,
		Type: SectionType(binary.LittleEndian.Uint32(raw[4:8])),
		Flags: SectionFlag(binary.LittleEndian.Uint32(raw[8:12])),
		VAddr: binary.LittleEndian.Uint32(raw[12:16]),
		Offset: binary.LittleEndian.Uint32(raw[16:20]),
		Size: binary.LittleEndian.Uint32(raw[20:24]),
		Align: binary.LittleEndian.Uint32(raw[32:36]),
		EntSize: binary.LittleEndian.Uint32(raw[36:40]),
		pageSize: pageSize,
		source: src,
	}

	if sec.Loadable() {
		sec.FirstVPN = sec.VAddr / pageSize
		sec.NumPages = (sec.Size + pageSize - 1) / pageSize
	}

	return sec, nil
}

func readProgramHeader(src io.ReaderAt, phoff uint32, phentsize uint16, idx uint16) (ProgramHeader, error) {
	var raw [32]byte
	off := int64(phoff) + int64(idx)*int64(phentsize)
	if _, err := src.ReadAt(raw[:], off); err != nil {
		return ProgramHeader{}, fmt.Errorf("elf32: read program header %d: %w", idx, err)
	}

	return ProgramHeader{
		Type: ProgramType(binary.LittleEndian.Uint32(raw[0:4])),
		Offset: binary.LittleEndian.Uint32(raw[4:8]),
		VAddr: binary.LittleEndian.Uint32(raw[8:12]),
		FileSz: binary.LittleEndian.Uint32(raw[16:20]),
		MemSz: binary.LittleEndian.Uint32(raw[20:24]),
		Flags: binary.LittleEndian.Uint32(raw[24:28]),
		Align: binary.LittleEndian.Uint32(raw[28:32]),
	}, nil
}

func readCString(src io.ReaderAt, at int64, maxLen uint32) (string, error) {
	buf := make([]byte, maxLen)
	n, err := src.ReadAt(buf, at)
	if err != nil && err != io.EOF {
		return "", err
	}
	buf = buf[:n]
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i]), nil
		}
	}
	return string(buf), nil
}
