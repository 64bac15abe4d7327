package bpfdevice

import (
	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"

	"github.com/lowRISC/container-hotplug/internal/device"
)

// defaultDevice is one of the fixed character devices the filter program
// always admits, regardless of the map's contents.
type defaultDevice struct {
	major, minor uint32
}

var defaultDevices = []defaultDevice{
	{1, 3}, // null
	{1, 5}, // zero
	{1, 7}, // full
	{1, 8}, // random
	{1, 9}, // urandom
	{5, 0}, // tty
	{5, 1}, // console
	{5, 2}, // ptmx
}

const ptySlaveMajor = 136

// bpf_cgroup_dev_ctx, as defined by the kernel UAPI: the three fields the
// attached program receives per access check.
const (
	ctxOffAccessType = 0
	ctxOffMajor      = 4
	ctxOffMinor      = 8
)

// Kernel DEVCG_ACC_* / DEVCG_DEV_* bit layout packed into access_type:
// low 16 bits carry the device type, high 16 bits carry the requested
// access bits.
const (
	accTypeShift = 16
)

// buildProgram assembles the cgroup_device program:
// unconditional MKNOD allow, a fixed default-device allowlist, then a map
// lookup with (type,major,minor) falling back to the (type,0,0) wildcard.
// The instruction encoding itself is not a contract surface — treat the
// compiled bytecode as an opaque blob; only the admit/deny decisions it
// reaches for a given (type,major,minor,access) are.
func buildProgram(m *ebpf.Map) asm.Instructions {
	// Registers: r1 = ctx pointer (input). r0 = return value (1 allow, 0 deny).
	insts := asm.Instructions{
		// r2 = access_type (type in low 16 bits, access in high 16 bits)
		asm.LoadMem(asm.R2, asm.R1, ctxOffAccessType, asm.Word),
		// r3 = major
		asm.LoadMem(asm.R3, asm.R1, ctxOffMajor, asm.Word),
		// r4 = minor
		asm.LoadMem(asm.R4, asm.R1, ctxOffMinor, asm.Word),

		// r5 = requested access bits = access_type >> 16
		asm.Mov.Reg(asm.R5, asm.R2),
		asm.RSh.Imm(asm.R5, accTypeShift),
		// r5 &= (READ|WRITE|MKNOD)
		asm.And.Imm(asm.R5, int32(device.Read|device.Write|device.Mknod)),

		// If only MKNOD was requested, allow unconditionally (creation is
		// never restricted; §4.1 item 1).
		asm.JNE.Imm(asm.R5, int32(device.Mknod), "not-mknod-only"),
		asm.Mov.Imm(asm.R0, 1),
		asm.Return(),
		asm.Mov.Imm(asm.R0, 0).WithSymbol("not-mknod-only"),

		// r6 = device type = access_type & 0xffff
		asm.Mov.Reg(asm.R6, asm.R2),
		asm.And.Imm(asm.R6, 0xffff),
	}

	// Fixed default character devices, unconditionally allowed.
	insts = append(insts, asm.JNE.Imm(asm.R6, int32(device.Character), "skip-defaults"))
	for i, d := range defaultDevices {
		label := symbolf("default-next", i)
		insts = append(insts,
			asm.JNE.Imm(asm.R3, int32(d.major), label),
			asm.JNE.Imm(asm.R4, int32(d.minor), label),
			asm.Mov.Imm(asm.R0, 1),
			asm.Return(),
			asm.Mov.Imm(asm.R0, 0).WithSymbol(label),
		)
	}
	insts = append(insts,
		asm.JNE.Imm(asm.R3, ptySlaveMajor, "skip-defaults"),
		asm.Mov.Imm(asm.R0, 1),
		asm.Return(),
		asm.Mov.Imm(asm.R0, 0).WithSymbol("skip-defaults"),
	)

	// Map lookup: key{type,major,minor}; on miss, key{type,0,0}; on both
	// miss deny, on hit compare stored mask against requested bits.
	insts = append(insts, buildMapLookup(m)...)

	return insts
}

func symbolf(prefix string, i int) string {
	const digits = "0123456789"
	if i < 10 {
		return prefix + string(digits[i])
	}
	return prefix + string(digits[i/10]) + string(digits[i%10])
}
