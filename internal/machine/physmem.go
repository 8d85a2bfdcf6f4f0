package machine

import "fmt"

// PhysicalMemory is the flat byte array backing every physical frame in the
// simulated machine, analogous to Nachos's Machine.mainMemory. The frame
// allocator (internal/frame) owns which pid holds which ppn; PhysicalMemory
// only owns the bytes.
type PhysicalMemory struct {
	bytes []byte
	pageSize int
}

// NewPhysicalMemory allocates numFrames*pageSize zeroed bytes.
func NewPhysicalMemory(numFrames, pageSize int) *PhysicalMemory {
	return &PhysicalMemory{
		bytes: make([]byte, numFrames*pageSize),
		pageSize: pageSize,
	}
}

// PageSize reports the fixed page size this memory was built with.
func (m *PhysicalMemory) PageSize() int { return m.pageSize }

// NumFrames reports the total frame count.
func (m *PhysicalMemory) NumFrames() int { return len(m.bytes) / m.pageSize }

// Page returns a mutable view of frame ppn's bytes.
func (m *PhysicalMemory) Page(ppn int) []byte {
	start := ppn * m.pageSize
	return m.bytes[start : start+m.pageSize]
}

// ByteAt returns a mutable view starting offset bytes into frame ppn,
// clamped to the end of that frame; callers use this for sub-page copies.
func (m *PhysicalMemory) ByteAt(ppn int, offset int) []byte {
	if offset < 0 || offset >= m.pageSize {
		panic(fmt.Sprintf("machine: ByteAt: offset %d out of range for page size %d", offset, m.pageSize))
	}
	start := ppn*m.pageSize + offset
	end := ppn*m.pageSize + m.pageSize
	return m.bytes[start:end]
}
