// Package kernel wires the frame allocator, process table, an address-space
// backend, the syscall dispatcher, and the lifecycle implementation into
// one runnable machine, mirroring cmd/kernel/kernel_init.go's
// initialization sequence and cmd/memoria/memoria_init.go's frame-pool
// setup, collapsed into a single process since the loader, process table,
// allocator, and dispatcher need to stay tightly coupled rather than
// separated by a network hop.
package kernel

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sync"

	"github.com/nachos-go/kernel/internal/addrspace"
	"github.com/nachos-go/kernel/internal/frame"
	"github.com/nachos-go/kernel/internal/lifecycle"
	"github.com/nachos-go/kernel/internal/machine"
	"github.com/nachos-go/kernel/internal/paging"
	"github.com/nachos-go/kernel/internal/process"
	"github.com/nachos-go/kernel/internal/syscall"
)

// Config is the subset of a loaded configs/*.json file that shapes machine
// construction, named after cmd/memoria MemoryConfig fields.
type Config struct {
	NumFrames int `json:"NUM_FRAMES"`
	PageSize int `json:"PAGE_SIZE"`
	DemandPaging bool `json:"DEMAND_PAGING"`
	SwapPath string `json:"SWAP_PATH"`
	NumSwapSlots int `json:"NUM_SWAP_SLOTS"`
	ProgramsRoot string `json:"PROGRAMS_ROOT"`
	LogLevel string `json:"LOG_LEVEL"`
}

// Machine is one simulated Nachos machine: its frame pool, process table,
// dispatcher, and (if configured) demand-paging infrastructure.
type Machine struct {
	Log *slog.Logger
	Config Config
	Allocator *frame.Allocator
	Processes *process.Table
	Dispatcher *syscall.Dispatcher
	Lifecycle *lifecycle.Kernel

	// Present only when Config.DemandPaging is set.
	Inverted *paging.InvertedTable
	Swap *paging.SwapFile
	Pins *paging.PinSet

	halted chan struct{}
	haltOnce sync.Once
}

// New builds a Machine from cfg, wiring an eager or demand-paged
// address-space backend according to cfg.DemandPaging.
func New(cfg Config, log *slog.Logger) (*Machine, error) {
	if cfg.NumFrames <= 0 || cfg.PageSize <= 0 {
		return nil, fmt.Errorf("kernel: NumFrames and PageSize must be positive")
	}

	mem := machine.NewPhysicalMemory(cfg.NumFrames, cfg.PageSize)
	alloc := frame.New(cfg.NumFrames, log)
	fs := machine.NewHostFileSystem(cfg.ProgramsRoot)
	console := machine.NewHostConsole(os.Stdin, os.Stdout)

	m := &Machine{Log: log, Config: cfg, Allocator: alloc, halted: make(chan struct{})}
	signalHalted := func() { m.haltOnce.Do(func() { close(m.halted) }) }

	m.Processes = process.NewTable(log, signalHalted)

	var factory lifecycle.AddressSpaceFactory
	if cfg.DemandPaging {
		swapPath := cfg.SwapPath
		if swapPath == "" {
			swapPath = paging.DefaultSwapFileName
		}
		swap, err := paging.Open(swapPath, cfg.NumSwapSlots, cfg.PageSize)
		if err != nil {
			return nil, fmt.Errorf("kernel: open swap file: %w", err)
		}
		m.Swap = swap
		m.Inverted = paging.NewInvertedTable(cfg.NumFrames)
		m.Pins = paging.NewPinSet()

		factory = func(pid int) process.VirtualMemory {
			return paging.New(pid, uint32(cfg.PageSize), mem, alloc, m.Inverted, m.Swap, m.Pins, rand.NewSource(int64(pid)), log)
		}
	} else {
		factory = func(pid int) process.VirtualMemory {
			return addrspace.New(pid, uint32(cfg.PageSize), mem, alloc, log)
		}
	}

	m.Lifecycle = lifecycle.New(log, m.Processes, console, fs, factory, uint32(cfg.PageSize), signalHalted)
	m.Dispatcher = syscall.NewDispatcher(log, m.Processes, m.Lifecycle, fs)
	return m, nil
}

// Boot loads name as the machine's initial process (PID 1).
func (m *Machine) Boot(name string, argv []string) error {
	_, err := m.Lifecycle.Boot(name, argv)
	return err
}

// Halted is closed once the last process exits or PID 1 calls halt().
func (m *Machine) Halted() <-chan struct{} { return m.halted }

// Close releases the swap file, if this machine runs the demand-paging
// backend.
func (m *Machine) Close() error {
	if m.Swap != nil {
		return m.Swap.Close()
	}
	return nil
}
