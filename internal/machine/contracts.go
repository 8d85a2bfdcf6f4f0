// Package machine defines the named contracts the kernel core consumes
// from the simulated MIPS machine and the host. No full instruction-level
// simulator lives here — only the interfaces the core programs against,
// plus the thin host-backed implementations (FileSystem, Console) the core
// genuinely needs to run end-to-end.
package machine

import "context"

// Registers names the MIPS general-purpose registers the kernel core reads
// and writes across a syscall or exec trap.
type Registers struct {
	PC, NextPC uint32
	SP uint32
	A0, A1, A2, A3 uint32
	V0 uint32
}

// TrapCause is the closed set of exceptions the Processor can raise.
type TrapCause int

const (
	TrapSyscall TrapCause = iota
	TrapReadOnly
	TrapBusError
	TrapAddressError
	TrapIllegalInstruction
	TrapTLBMiss // paging kernel only
)

func (c TrapCause) String() string {
	switch c {
	case TrapSyscall:
		return "syscall"
	case TrapReadOnly:
		return "read_only"
	case TrapBusError:
		return "bus_error"
	case TrapAddressError:
		return "address_error"
	case TrapIllegalInstruction:
		return "illegal_instruction"
	case TrapTLBMiss:
		return "tlb_miss"
	default:
		return "unknown_trap"
	}
}

// Processor is the simulated MIPS CPU capability: register access plus the
// hooks the kernel installs to receive page tables and trap notifications.
// Its internal fetch/decode/execute loop is out of scope for this repo.
type Processor interface {
	Registers() Registers
	SetRegisters(Registers)
	SetPageTable(pid int, table interface{})
	SetExceptionHandler(func(TrapCause))
	Run(ctx context.Context) error
}

// Timer is the periodic interrupt source; out of scope beyond this contract.
type Timer interface {
	Now() uint64
	SetInterruptHandler(func())
}

// Console is the synchronized system console: one shared read/write stream
// pre-opened onto file descriptors 0 and 1 of every process.
type Console interface {
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
}

// OpenFile is a host-file handle with the operations a syscall handler
// needs, serialized by the host so the kernel never assumes concurrent-read
// safety.
type OpenFile interface {
	Read(buf []byte, off int64, length int) (int, error)
	Write(buf []byte, off int64, length int) (int, error)
	Seek(pos int64) error
	Close() error
	Name() string
}

// FileSystem is the host-side file system capability.
type FileSystem interface {
	Open(name string, create bool) (OpenFile, error)
	Remove(name string) bool
}
