package addrspace

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nachos-go/kernel/internal/elf32"
	"github.com/nachos-go/kernel/internal/frame"
	"github.com/nachos-go/kernel/internal/machine"
)

const testPageSize = 64

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// buildELF mirrors internal/elf32's test helper: header, one PT_LOAD program
// header, one PROGBITS .data section (writable only when writable is set),
// a string table, and section
// headers, in that byte order.
func buildELF(t *testing.T, dataBytes []byte, writable bool) []byte {
	t.Helper()
	const ehSize, phSize, shSize = 52, 32, 40

	strTab := []byte{0}
	dataNameOff := uint32(len(strTab))
	strTab = append(strTab, []byte(".data\x00")...)
	shstrNameOff := uint32(len(strTab))
	strTab = append(strTab, []byte(".shstrtab\x00")...)

	phoff := uint32(ehSize)
	dataOff := phoff + phSize
	strTabOff := dataOff + uint32(len(dataBytes))
	shoff := strTabOff + uint32(len(strTab))
	total := shoff + 3*shSize

	buf := make([]byte, total)
	copy(buf[dataOff:], dataBytes)
	copy(buf[strTabOff:], strTab)

	buf[0], buf[1], buf[2], buf[3] = 0x7F, 'E', 'L', 'F'
	buf[4], buf[5] = 1, 1
	binary.LittleEndian.PutUint32(buf[24:28], 0) // entry point
	binary.LittleEndian.PutUint32(buf[28:32], phoff)
	binary.LittleEndian.PutUint32(buf[32:36], shoff)
	binary.LittleEndian.PutUint16(buf[40:42], ehSize)
	binary.LittleEndian.PutUint16(buf[42:44], phSize)
	binary.LittleEndian.PutUint16(buf[44:46], 1)
	binary.LittleEndian.PutUint16(buf[46:48], shSize)
	binary.LittleEndian.PutUint16(buf[48:50], 3)
	binary.LittleEndian.PutUint16(buf[50:52], 2)

	ph := buf[phoff : phoff+phSize]
	binary.LittleEndian.PutUint32(ph[0:4], 1)
	binary.LittleEndian.PutUint32(ph[4:8], dataOff)
	binary.LittleEndian.PutUint32(ph[8:12], 0)
	binary.LittleEndian.PutUint32(ph[16:20], uint32(len(dataBytes)))
	binary.LittleEndian.PutUint32(ph[20:24], uint32(len(dataBytes)))

	flags := uint32(2) // ALLOC
	if writable {
		flags |= 1 // WRITE
	}
	writeSH(buf, shoff+1*shSize, dataNameOff, 1, flags, 0, dataOff, uint32(len(dataBytes)))
	writeSH(buf, shoff+2*shSize, shstrNameOff, 3, 0, 0, strTabOff, uint32(len(strTab)))

	return buf
}

func writeSH(buf []byte, at uint32, nameOff, shType, flags, vaddr, offset, size uint32) {
	sh := buf[at : at+40]
	binary.LittleEndian.PutUint32(sh[0:4], nameOff)
	binary.LittleEndian.PutUint32(sh[4:8], shType)
	binary.LittleEndian.PutUint32(sh[8:12], flags)
	binary.LittleEndian.PutUint32(sh[12:16], vaddr)
	binary.LittleEndian.PutUint32(sh[16:20], offset)
	binary.LittleEndian.PutUint32(sh[20:24], size)
}

func newFixture(t *testing.T, numFrames int, dataBytes []byte, writable bool) (*AddressSpace, *elf32.Reader, *frame.Allocator) {
	t.Helper()
	raw := buildELF(t, dataBytes, writable)
	r, err := elf32.NewReader(bytes.NewReader(raw), testPageSize)
	require.NoError(t, err)

	mem := machine.NewPhysicalMemory(numFrames, testPageSize)
	alloc := frame.New(numFrames, testLogger())
	as := New(7, testPageSize, mem, alloc, testLogger())
	return as, r, alloc
}

func TestLoadRejectsFragmentedSections(t *testing.T) {
	raw := buildELF(t, make([]byte, testPageSize), true)

	// Corrupt the .data section header's vaddr field so it doesn't start at
	// vpn 0: shoff (read from the ELF header) + one 40-byte section header
	// (skipping SHT_NULL) + 12 bytes to the vaddr field.
	shoff := binary.LittleEndian.Uint32(raw[32:36])
	vaddrField := shoff + 40 + 12
	binary.LittleEndian.PutUint32(raw[vaddrField:], testPageSize*3)

	r, err := elf32.NewReader(bytes.NewReader(raw), testPageSize)
	require.NoError(t, err)

	mem := machine.NewPhysicalMemory(16, testPageSize)
	alloc := frame.New(16, testLogger())
	as := New(1, testPageSize, mem, alloc, testLogger())

	err = as.Load(r, []string{"prog"})
	require.ErrorIs(t, err, ErrFragmented)
}

func TestLoadFailsOutOfMemoryAndAllocatorUnchanged(t *testing.T) {
	as, r, alloc := newFixture(t, 2, make([]byte, testPageSize), true) // too few frames for data+stack+argv
	err := as.Load(r, []string{"prog"})
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.Equal(t, 2, alloc.FreeCount())
}

func TestArgsTooLongRejected(t *testing.T) {
	as, r, _ := newFixture(t, 32, make([]byte, testPageSize), true)
	longArg := string(make([]byte, testPageSize+1))
	err := as.Load(r, []string{longArg})
	require.ErrorIs(t, err, ErrArgsTooLong)
}

func TestTranslationRoundTrip(t *testing.T) {
	as, r, _ := newFixture(t, 32, make([]byte, testPageSize), true)
	require.NoError(t, as.Load(r, []string{"prog"}))

	data := []byte("round-trip-bytes")
	vaddr := uint32(0) // start of the writable .data section
	n := as.WriteVM(vaddr, data, 0, len(data))
	require.Equal(t, len(data), n)

	out := make([]byte, len(data))
	n = as.ReadVM(vaddr, out, 0, len(data))
	require.Equal(t, len(data), n)
	require.Equal(t, data, out)
}

func TestWriteVMStopsAtReadOnlyPage(t *testing.T) {
	as, r, _ := newFixture(t, 32, make([]byte, testPageSize), false) // read-only .data
	require.NoError(t, as.Load(r, []string{"prog"}))

	n := as.WriteVM(0, []byte("x"), 0, 1)
	require.Equal(t, 0, n, "writes through a read-only entry must transfer nothing")
}

func TestReadVMShortCountPastEndOfPageTable(t *testing.T) {
	as, r, _ := newFixture(t, 32, make([]byte, testPageSize), true)
	require.NoError(t, as.Load(r, []string{"prog"}))

	beyond := uint32(as.NumPages()) * testPageSize
	buf := make([]byte, 10)
	n := as.ReadVM(beyond-5, buf, 0, 10)
	require.Equal(t, 5, n, "transfer must stop at the page-table boundary and report the short count")
}

func TestArgvReconstruction(t *testing.T) {
	as, r, _ := newFixture(t, 32, make([]byte, testPageSize), true)
	argv := []string{"prog", "hello", "world"}
	require.NoError(t, as.Load(r, argv))

	require.Equal(t, uint32(len(argv)), as.Argc)

	ptrs := make([]byte, 4*len(argv))
	n := as.ReadVM(as.ArgvVAddr, ptrs, 0, len(ptrs))
	require.Equal(t, len(ptrs), n)

	for i, want := range argv {
		strVAddr := binary.LittleEndian.Uint32(ptrs[i*4 : i*4+4])
		got, err := as.ReadVMString(strVAddr, 64)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestUnloadReturnsFramesToAllocator(t *testing.T) {
	as, r, alloc := newFixture(t, 32, make([]byte, testPageSize), true)
	require.NoError(t, as.Load(r, []string{"prog"}))
	require.Equal(t, 32-as.NumPages(), alloc.FreeCount())

	as.Unload()
	require.Equal(t, 32, alloc.FreeCount())
}
