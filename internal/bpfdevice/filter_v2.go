package bpfdevice

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"unsafe"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"golang.org/x/sys/unix"

	"github.com/lowRISC/container-hotplug/internal/device"
	"github.com/lowRISC/container-hotplug/internal/hperr"
	"github.com/lowRISC/container-hotplug/internal/logging"
)

var log = logging.GetLogger("filter")

const pinRoot = "/sys/fs/bpf"

// Driver is the interface both back-ends implement.
type Driver interface {
	SetPermission(t device.Type, major, minor uint32, access device.Access) error
	Close() error
}

// V2Driver owns an attached cgroup-v2 eBPF device filter and its map.
type V2Driver struct {
	dirFd   int
	prog    *ebpf.Program
	m       *ebpf.Map
	pinPath string
}

// NewV2Driver implements the cgroup v2 attachment protocol: enumerate
// existing programs, load and attach ours, pin it, only then detach the
// previously-enumerated ones — so the cgroup is never without a filter.
// When exactly one program was already attached, ours atomically replaces
// it at attach time instead, and there is nothing left to detach.
func NewV2Driver(cgroupPath string) (*V2Driver, error) {
	dirFd, err := unix.Open(cgroupPath, unix.O_DIRECTORY|unix.O_RDONLY, 0)
	if err != nil {
		return nil, hperr.Kernel("open cgroup directory", err)
	}

	m, err := newPermissionMap()
	if err != nil {
		unix.Close(dirFd)
		return nil, hperr.Kernel("create device-permission map", err)
	}

	oldProgs, err := findAttachedPrograms(dirFd)
	if err != nil {
		m.Close()
		unix.Close(dirFd)
		return nil, hperr.Kernel("query attached cgroup-device programs", err)
	}

	// Raise RLIMIT_MEMLOCK for the program+map load; not inherited by the
	// container (runc's own ebpf.go does the same before BPF_PROG_LOAD).
	_ = unix.Setrlimit(unix.RLIMIT_MEMLOCK, &unix.Rlimit{Cur: unix.RLIM_INFINITY, Max: unix.RLIM_INFINITY})

	spec := &ebpf.ProgramSpec{
		Type:         ebpf.CGroupDevice,
		Instructions: buildProgram(m),
		License:      "GPL",
	}
	prog, err := ebpf.NewProgram(spec)
	if err != nil {
		m.Close()
		unix.Close(dirFd)
		return nil, hperr.Kernel("load cgroup-device program", err)
	}

	var replace *ebpf.Program
	if len(oldProgs) == 1 {
		replace = oldProgs[0]
	}
	if err := link.RawAttachProgram(link.RawAttachProgramOptions{
		Target:  dirFd,
		Program: prog,
		Replace: replace,
		Attach:  ebpf.AttachCGroupDevice,
		Flags:   unix.BPF_F_ALLOW_MULTI,
	}); err != nil {
		prog.Close()
		m.Close()
		unix.Close(dirFd)
		return nil, hperr.Kernel("attach cgroup-device program", err)
	}

	pinPath := filepath.Join(pinRoot, pinName(cgroupPath))
	_ = os.Remove(pinPath)
	if err := prog.Pin(pinPath); err != nil {
		detach(dirFd, prog)
		prog.Close()
		m.Close()
		unix.Close(dirFd)
		return nil, hperr.Kernel("pin cgroup-device program", err)
	}

	// Only now is it safe to detach the filter(s) the host runtime
	// installed: ours is live and pinned, so the cgroup is never
	// momentarily unfiltered.
	if len(oldProgs) != 1 {
		for _, old := range oldProgs {
			if err := detach(dirFd, old); err != nil {
				log.WithError(err).Warn("failed to detach pre-existing device filter")
			}
		}
	}
	for _, old := range oldProgs {
		old.Close()
	}

	return &V2Driver{dirFd: dirFd, prog: prog, m: m, pinPath: pinPath}, nil
}

// pinName derives the bpffs pin filename from the cgroup's leaf directory
// name, stripping a trailing ".scope" the way systemd-managed cgroups are
// named.
func pinName(cgroupPath string) string {
	leaf := filepath.Base(strings.TrimRight(cgroupPath, "/"))
	leaf = strings.TrimSuffix(leaf, ".scope")
	return leaf + "-device-filter"
}

func (d *V2Driver) SetPermission(t device.Type, major, minor uint32, access device.Access) error {
	key := mapKey{DeviceType: uint32(t), Major: major, Minor: minor}
	if access == 0 {
		if err := d.m.Delete(&key); err != nil && err != ebpf.ErrKeyNotExist {
			return hperr.Kernel("remove device-permission map entry", err)
		}
		return nil
	}
	value := uint32(access)
	if err := d.m.Put(&key, &value); err != nil {
		return hperr.Kernel("update device-permission map entry", err)
	}
	return nil
}

// Close unpins the filter, releasing the kernel's hold on the program once
// the pin is removed.
func (d *V2Driver) Close() error {
	err := os.Remove(d.pinPath)
	d.prog.Close()
	d.m.Close()
	unix.Close(d.dirFd)
	if err != nil && !os.IsNotExist(err) {
		return hperr.Kernel("remove device-filter pin", err)
	}
	return nil
}

func detach(dirFd int, prog *ebpf.Program) error {
	return link.RawDetachProgram(link.RawDetachProgramOptions{
		Target:  dirFd,
		Program: prog,
		Attach:  ebpf.AttachCGroupDevice,
	})
}

// findAttachedPrograms queries the programs currently attached to the
// cgroup at dirFd via BPF_PROG_QUERY, the way runc's
// findAttachedCgroupDeviceFilters does, retrying on ENOSPC until the
// program-id buffer is large enough.
func findAttachedPrograms(dirFd int) ([]*ebpf.Program, error) {
	type bpfAttrQuery struct {
		TargetFd    uint32
		AttachType  uint32
		QueryType   uint32
		AttachFlags uint32
		ProgIds     uint64
		ProgCnt     uint32
	}

	size := 64
	for retries := 0; retries < 10; retries++ {
		progIDs := make([]uint32, size)
		query := bpfAttrQuery{
			TargetFd:   uint32(dirFd),
			AttachType: uint32(unix.BPF_CGROUP_DEVICE),
			ProgIds:    uint64(uintptr(unsafe.Pointer(&progIDs[0]))),
			ProgCnt:    uint32(len(progIDs)),
		}

		_, _, errno := unix.Syscall(unix.SYS_BPF, uintptr(unix.BPF_PROG_QUERY),
			uintptr(unsafe.Pointer(&query)), unsafe.Sizeof(query))
		size = int(query.ProgCnt)
		runtime.KeepAlive(query)
		if errno != 0 {
			if errno == unix.ENOSPC {
				continue
			}
			return nil, fmt.Errorf("BPF_PROG_QUERY(BPF_CGROUP_DEVICE): %w", errno)
		}

		progIDs = progIDs[:size]
		programs := make([]*ebpf.Program, 0, len(progIDs))
		for _, id := range progIDs {
			prog, err := ebpf.NewProgramFromID(ebpf.ProgramID(id))
			if err != nil {
				return nil, fmt.Errorf("load program from id %d: %w", id, err)
			}
			programs = append(programs, prog)
		}
		runtime.KeepAlive(progIDs)
		return programs, nil
	}
	return nil, fmt.Errorf("could not size BPF_PROG_QUERY buffer after 10 retries")
}
