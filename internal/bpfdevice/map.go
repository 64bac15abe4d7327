package bpfdevice

import (
	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"
)

// mapKey is read as POD by the BPF program: device_type, major, minor,
// each a u32, with the value a single u32 access mask.
type mapKey struct {
	DeviceType uint32
	Major      uint32
	Minor      uint32
}

const devicePermMapName = "device_perm"

// newPermissionMap creates the kernel hash map backing FilterMap:
// bounded capacity, no preallocation so concurrent kernel reads during a
// supervisor-side update observe either the old or the new value.
func newPermissionMap() (*ebpf.Map, error) {
	return ebpf.NewMap(&ebpf.MapSpec{
		Name:       devicePermMapName,
		Type:       ebpf.Hash,
		KeySize:    12, // sizeof(mapKey)
		ValueSize:  4,
		MaxEntries: 256,
		Flags:      unix_BPF_F_NO_PREALLOC,
	})
}

// unix_BPF_F_NO_PREALLOC avoids importing golang.org/x/sys/unix here just
// for one constant; value matches BPF_F_NO_PREALLOC in linux/bpf.h.
const unix_BPF_F_NO_PREALLOC = 1

// buildMapLookup emits the instructions that look up key{type,major,minor}
// in m, falling back to the wildcard key{type,0,0} on miss, and compares
// the stored mask against the requested access bits in r5 (set up by
// buildProgram). Uses stack slots at FP-12..FP-4 for the 12-byte key.
func buildMapLookup(m *ebpf.Map) asm.Instructions {
	return asm.Instructions{
		// Primary key at FP-12: {type, major, minor}
		asm.StoreMem(asm.RFP, -12, asm.R6, asm.Word),
		asm.StoreMem(asm.RFP, -8, asm.R3, asm.Word),
		asm.StoreMem(asm.RFP, -4, asm.R4, asm.Word),

		asm.Mov.Reg(asm.R2, asm.RFP),
		asm.Add.Imm(asm.R2, -12),
		asm.LoadMapPtr(asm.R1, m.FD()),
		asm.FnMapLookupElem.Call(),

		asm.JEq.Imm(asm.R0, 0, "try-wildcard"),
		// Hit: r1 = *stored_mask
		asm.LoadMem(asm.R1, asm.R0, 0, asm.Word),
		asm.And.Reg(asm.R1, asm.R5),
		asm.JNE.Reg(asm.R1, asm.R5, "deny"),
		asm.Mov.Imm(asm.R0, 1),
		asm.Return(),

		// Wildcard key at FP-12: {type, 0, 0}
		asm.Mov.Imm(asm.R0, 0).WithSymbol("try-wildcard"),
		asm.StoreMem(asm.RFP, -12, asm.R6, asm.Word),
		asm.StoreImm(asm.RFP, -8, 0, asm.Word),
		asm.StoreImm(asm.RFP, -4, 0, asm.Word),
		asm.Mov.Reg(asm.R2, asm.RFP),
		asm.Add.Imm(asm.R2, -12),
		asm.LoadMapPtr(asm.R1, m.FD()),
		asm.FnMapLookupElem.Call(),

		asm.JEq.Imm(asm.R0, 0, "deny"),
		asm.LoadMem(asm.R1, asm.R0, 0, asm.Word),
		asm.And.Reg(asm.R1, asm.R5),
		asm.JNE.Reg(asm.R1, asm.R5, "deny"),
		asm.Mov.Imm(asm.R0, 1),
		asm.Return(),

		asm.Mov.Imm(asm.R0, 0).WithSymbol("deny"),
		asm.Return(),
	}
}
