package paging

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nachos-go/kernel/internal/addrspace"
	"github.com/nachos-go/kernel/internal/elf32"
	"github.com/nachos-go/kernel/internal/frame"
	"github.com/nachos-go/kernel/internal/machine"
)

const testPageSize = 64

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// buildELF constructs a minimal ELF32 image with one executable, read-only
// PROGBITS ".text" section at vpn 0, mirroring internal/elf32's own test
// fixture but trimmed to what the fault-handling specs below exercise.
func buildELF(textBytes []byte) []byte {
	const ehSize, phSize, shSize = 52, 32, 40

	strTab := []byte{0}
	textNameOff := uint32(len(strTab))
	strTab = append(strTab, []byte(".text\x00")...)
	shstrNameOff := uint32(len(strTab))
	strTab = append(strTab, []byte(".shstrtab\x00")...)

	phoff := uint32(ehSize)
	textOff := phoff + phSize
	strTabOff := textOff + uint32(len(textBytes))
	shoff := strTabOff + uint32(len(strTab))
	total := shoff + 3*shSize

	buf := make([]byte, total)
	copy(buf[textOff:], textBytes)
	copy(buf[strTabOff:], strTab)

	buf[0], buf[1], buf[2], buf[3] = 0x7F, 'E', 'L', 'F'
	buf[4], buf[5] = 1, 1
	binary.LittleEndian.PutUint32(buf[24:28], 0)
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
	binary.LittleEndian.PutUint32(ph[4:8], textOff)
	binary.LittleEndian.PutUint32(ph[16:20], uint32(len(textBytes)))
	binary.LittleEndian.PutUint32(ph[20:24], uint32(len(textBytes)))

	flags := uint32(2) | uint32(4) // ALLOC | EXECINSTR, read-only
	writeSH(buf, shoff+1*shSize, textNameOff, 1, flags, 0, textOff, uint32(len(textBytes)))
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

var _ = Describe("InvertedTable", func() {
	It("tracks residency by key and by frame in lockstep", func() {
		it := NewInvertedTable(4)
		key := Key{PID: 1, VPN: 2}
		entry := addrspace.TranslationEntry{VPN: 2, PPN: 3, Valid: true}

		it.Insert(key, entry)

		got, ok := it.Lookup(key)
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal(entry))

		frameKey, ok := it.KeyForFrame(3)
		Expect(ok).To(BeTrue())
		Expect(frameKey).To(Equal(key))

		removed, ok := it.RemoveFrame(3)
		Expect(ok).To(BeTrue())
		Expect(removed).To(Equal(key))

		_, ok = it.Lookup(key)
		Expect(ok).To(BeFalse())
	})

	It("drops every entry for a process on RemoveProcess", func() {
		it := NewInvertedTable(4)
		it.Insert(Key{PID: 1, VPN: 0}, addrspace.TranslationEntry{PPN: 0, Valid: true})
		it.Insert(Key{PID: 1, VPN: 1}, addrspace.TranslationEntry{PPN: 1, Valid: true})
		it.Insert(Key{PID: 2, VPN: 0}, addrspace.TranslationEntry{PPN: 2, Valid: true})

		it.RemoveProcess(1)

		_, ok := it.Lookup(Key{PID: 1, VPN: 0})
		Expect(ok).To(BeFalse())
		_, ok = it.Lookup(Key{PID: 2, VPN: 0})
		Expect(ok).To(BeTrue())
	})
})

var _ = Describe("SwapFile", func() {
	It("round-trips a page and frees its slot for reuse on read-in", func() {
		path := filepath.Join(GinkgoT().TempDir(), "test.swp")
		sf, err := Open(path, 2, testPageSize)
		Expect(err).NotTo(HaveOccurred())
		defer sf.Close()

		key := Key{PID: 1, VPN: 0}
		payload := bytes.Repeat([]byte{0xAB}, testPageSize)
		Expect(sf.WriteOut(key, payload)).To(Succeed())

		_, bound := sf.Bound(key)
		Expect(bound).To(BeTrue())

		out := make([]byte, testPageSize)
		Expect(sf.ReadIn(key, out)).To(Succeed())
		Expect(out).To(Equal(payload))

		_, bound = sf.Bound(key)
		Expect(bound).To(BeFalse(), "a slot must be released back to the free list once read in")
	})

	It("returns an error once every slot is occupied", func() {
		path := filepath.Join(GinkgoT().TempDir(), "test.swp")
		sf, err := Open(path, 1, testPageSize)
		Expect(err).NotTo(HaveOccurred())
		defer sf.Close()

		page := make([]byte, testPageSize)
		Expect(sf.WriteOut(Key{PID: 1, VPN: 0}, page)).To(Succeed())
		err = sf.WriteOut(Key{PID: 1, VPN: 1}, page)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("PinSet", func() {
	It("reference-counts pins so nested pin/unpin pairs don't unpin early", func() {
		ps := NewPinSet()
		ps.Pin(5)
		ps.Pin(5)
		ps.Unpin(5)
		Expect(ps.Pinned(5)).To(BeTrue())
		ps.Unpin(5)
		Expect(ps.Pinned(5)).To(BeFalse())
	})
})

var _ = Describe("Evictor", func() {
	It("never selects a pinned frame", func() {
		inverted := NewInvertedTable(2)
		pins := NewPinSet()
		mem := machine.NewPhysicalMemory(2, testPageSize)
		path := filepath.Join(GinkgoT().TempDir(), "test.swp")
		sf, err := Open(path, 2, testPageSize)
		Expect(err).NotTo(HaveOccurred())
		defer sf.Close()

		inverted.Insert(Key{PID: 1, VPN: 0}, addrspace.TranslationEntry{PPN: 0, Valid: true, ReadOnly: true})
		inverted.Insert(Key{PID: 1, VPN: 1}, addrspace.TranslationEntry{PPN: 1, Valid: true, ReadOnly: true})
		pins.Pin(0)

		ev := NewEvictor(inverted, pins, sf, mem, rand.NewSource(1))
		ppn, key, hadOwner, err := ev.Evict(2)
		Expect(err).NotTo(HaveOccurred())
		Expect(ppn).To(Equal(1))
		Expect(hadOwner).To(BeTrue())
		Expect(key).To(Equal(Key{PID: 1, VPN: 1}))
	})

	It("discards a clean read-only page instead of writing it to swap", func() {
		inverted := NewInvertedTable(1)
		pins := NewPinSet()
		mem := machine.NewPhysicalMemory(1, testPageSize)
		path := filepath.Join(GinkgoT().TempDir(), "test.swp")
		sf, err := Open(path, 1, testPageSize)
		Expect(err).NotTo(HaveOccurred())
		defer sf.Close()

		key := Key{PID: 1, VPN: 0}
		inverted.Insert(key, addrspace.TranslationEntry{PPN: 0, Valid: true, ReadOnly: true})

		ev := NewEvictor(inverted, pins, sf, mem, rand.NewSource(1))
		_, evicted, hadOwner, err := ev.Evict(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(hadOwner).To(BeTrue())
		Expect(evicted).To(Equal(key))

		_, bound := sf.Bound(key)
		Expect(bound).To(BeFalse(), "a read-only page must never occupy a swap slot")
	})
})

var _ = Describe("AddressSpace demand-paging fault handler", func() {
	var (
		as *AddressSpace
		r *elf32.Reader
		alloc *frame.Allocator
	)

	setup := func(numFrames int) *SwapFile {
		raw := buildELF(bytes.Repeat([]byte{0x11}, testPageSize))
		var err error
		r, err = elf32.NewReader(bytes.NewReader(raw), testPageSize)
		Expect(err).NotTo(HaveOccurred())

		mem := machine.NewPhysicalMemory(numFrames, testPageSize)
		alloc = frame.New(numFrames, testLogger())
		inverted := NewInvertedTable(numFrames)
		pins := NewPinSet()
		path := filepath.Join(GinkgoT().TempDir(), "fault.swp")
		sf, err := Open(path, numFrames, testPageSize)
		Expect(err).NotTo(HaveOccurred())

		as = New(9, testPageSize, mem, alloc, inverted, sf, pins, rand.NewSource(1), testLogger())
		Expect(as.Load(r, []string{"prog"})).To(Succeed())
		return sf
	}

	It("leaves every page invalid until first touched", func() {
		sf := setup(32)
		defer sf.Close()
		Expect(as.NumPages()).To(BeNumerically(">", 0))
		for _, e := range as.Table() {
			Expect(e.Valid).To(BeFalse())
		}
	})

	It("faults in a section-backed page as read-only from the ELF image", func() {
		sf := setup(32)
		defer sf.Close()

		buf := make([]byte, testPageSize)
		n := as.ReadVM(0, buf, 0, testPageSize)
		Expect(n).To(Equal(testPageSize))
		Expect(buf).To(Equal(bytes.Repeat([]byte{0x11}, testPageSize)))

		n = as.WriteVM(0, []byte{0x00}, 0, 1)
		Expect(n).To(Equal(0), "the text section must remain read-only after faulting in")
	})

	It("faults in a fresh stack page as zero-filled and writable", func() {
		sf := setup(32)
		defer sf.Close()

		stackVAddr := as.ArgvVAddr - testPageSize // last stack page, just below argv
		buf := make([]byte, testPageSize)
		n := as.ReadVM(stackVAddr, buf, 0, testPageSize)
		Expect(n).To(Equal(testPageSize))
		Expect(buf).To(Equal(make([]byte, testPageSize)))

		n = as.WriteVM(stackVAddr, []byte{0x42}, 0, 1)
		Expect(n).To(Equal(1))
	})

	It("reconstructs argv lazily through the argv-page fault path", func() {
		sf := setup(32)
		defer sf.Close()

		ptrs := make([]byte, 4)
		n := as.ReadVM(as.ArgvVAddr, ptrs, 0, 4)
		Expect(n).To(Equal(4))

		strVAddr := binary.LittleEndian.Uint32(ptrs)
		got, err := as.ReadVMString(strVAddr, 32)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal("prog"))
	})

	It("evicts a resident page to satisfy a fault when frames are exhausted", func() {
		sf := setup(1) // exactly one frame: the second touched page must evict the first
		defer sf.Close()

		// Fault in the text page first, occupying the sole frame.
		buf := make([]byte, testPageSize)
		Expect(as.ReadVM(0, buf, 0, testPageSize)).To(Equal(testPageSize))
		Expect(alloc.FreeCount()).To(Equal(0))

		// Faulting a stack page now must evict the text page rather than fail.
		stackVAddr := as.ArgvVAddr - testPageSize
		n := as.ReadVM(stackVAddr, buf, 0, testPageSize)
		Expect(n).To(Equal(testPageSize))

		// The text page is no longer resident; touching it again must re-fault
		// (and succeed) by reloading straight from the ELF section.
		n = as.ReadVM(0, buf, 0, testPageSize)
		Expect(n).To(Equal(testPageSize))
		Expect(buf).To(Equal(bytes.Repeat([]byte{0x11}, testPageSize)))
	})

	It("returns every frame to the allocator and forgets swap slots on Unload", func() {
		sf := setup(32)
		defer sf.Close()

		buf := make([]byte, testPageSize)
		Expect(as.ReadVM(0, buf, 0, testPageSize)).To(Equal(testPageSize))
		Expect(alloc.FreeCount()).To(Equal(31))

		as.Unload()
		Expect(alloc.FreeCount()).To(Equal(32))
	})
})
