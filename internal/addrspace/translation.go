package addrspace

// TranslationEntry maps one virtual page to a physical frame plus status
// bits. A process's page table is a dense []TranslationEntry
// indexed by vpn.
type TranslationEntry struct {
	VPN uint32
	PPN int
	Valid bool
	ReadOnly bool
	Used bool
	Dirty bool
}
