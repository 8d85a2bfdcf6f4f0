package paging

import (
	"fmt"
	"os"
	"sync"
)

// DefaultSwapFileName is the default persisted swap file name.
const DefaultSwapFileName = "nachos.swp"

// SwapFile is the pre-sized backing store of NumSwapSlots page-sized slots,
// grounded in cmd/memoria/swap.go but keyed by an explicit
// slot index instead of an ever-growing byte offset, so slots are reused
// after swap-in rather than leaking disk space over a long run.
type SwapFile struct {
	mu sync.Mutex
	file *os.File
	pageSize int
	numSlots int
	freeSlots []int
	slotOf map[Key]int
}

// Open pre-allocates path to numSlots*pageSize zero bytes.
func Open(path string, numSlots, pageSize int) (*SwapFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("paging: open swap file: %w", err)
	}

	if err := f.Truncate(int64(numSlots) * int64(pageSize)); err != nil {
		f.Close()
		return nil, fmt.Errorf("paging: preallocate swap file: %w", err)
	}

	free := make([]int, numSlots)
	for i := range free {
		free[i] = numSlots - 1 - i // pop from the tail, so slot 0 is handed out first
	}

	return &SwapFile{
		file: f,
		pageSize: pageSize,
		numSlots: numSlots,
		freeSlots: free,
		slotOf: make(map[Key]int),
	}, nil
}

// Path reports the file path this swap store is backed by (used at
// termination to remove it).
func (s *SwapFile) Path() string {
	return s.file.Name()
}

// Bound reports whether key already occupies a slot, and which.
func (s *SwapFile) Bound(key Key) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slotOf[key]
	return slot, ok
}

// WriteOut writes data (exactly one page) to key's slot, allocating a fresh
// slot on first use and reusing it on subsequent overwrites.
func (s *SwapFile) WriteOut(key Key, data []byte) error {
	s.mu.Lock()
	slot, ok := s.slotOf[key]
	if !ok {
		if len(s.freeSlots) == 0 {
			s.mu.Unlock()
			return fmt.Errorf("paging: swap file exhausted (%d slots)", s.numSlots)
		}
		n := len(s.freeSlots)
		slot = s.freeSlots[n-1]
		s.freeSlots = s.freeSlots[:n-1]
		s.slotOf[key] = slot
	}
	s.mu.Unlock()

	_, err := s.file.WriteAt(data, int64(slot)*int64(s.pageSize))
	return err
}

// ReadIn reads key's slot into dst and frees the slot for reuse, matching
// "slots are reused after swap-in."
func (s *SwapFile) ReadIn(key Key, dst []byte) error {
	s.mu.Lock()
	slot, ok := s.slotOf[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("paging: swap read: %v not bound to a slot", key)
	}
	delete(s.slotOf, key)
	s.freeSlots = append(s.freeSlots, slot)
	s.mu.Unlock()

	_, err := s.file.ReadAt(dst, int64(slot)*int64(s.pageSize))
	return err
}

// Forget drops key's slot binding without reading it back, used when a
// process exits while one of its pages is swapped out.
func (s *SwapFile) Forget(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot, ok := s.slotOf[key]; ok {
		delete(s.slotOf, key)
		s.freeSlots = append(s.freeSlots, slot)
	}
}

// Close closes and removes the swap file; it is deleted at kernel
// termination rather than kept around between runs.
func (s *SwapFile) Close() error {
	name := s.file.Name()
	if err := s.file.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}
