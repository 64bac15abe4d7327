// Package container wraps one supervised container: its init PID, primary
// identity, cgroup paths, a cgroup-events watcher, and the mknod/symlink/rm/
// device/kill/wait operations the hotplug supervisor drives.
package container

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/lowRISC/container-hotplug/internal/bpfdevice"
	"github.com/lowRISC/container-hotplug/internal/device"
	"github.com/lowRISC/container-hotplug/internal/hperr"
	"github.com/lowRISC/container-hotplug/internal/idmap"
	"github.com/lowRISC/container-hotplug/internal/logging"
	"github.com/lowRISC/container-hotplug/internal/nsexec"
)

var log = logging.GetLogger("container")

const maxUint32 = 0xFFFFFFFF

// Container is immutable after construction except for its filter driver's
// map contents.
type Container struct {
	InitPID uint32
	UID     uint32
	GID     uint32

	mntNSFd      int
	uidMap       idmap.Map
	gidMap       idmap.Map
	rootIdentity *nsexec.Identity

	unifiedPath string
	devicesPath string

	filter bpfdevice.Driver

	populated chan struct{} // closed the first time cgroup.events goes unpopulated

	reaped     chan struct{} // closed once the init process has been wait4'd
	waitStatus unix.WaitStatus
}

// Config carries everything Construction needs from the parsed bundle and
// runtime state.
type Config struct {
	InitPID     uint32
	UID         uint32 // config.process.user.uid, verbatim
	GID         uint32
	UnifiedPath string
	DevicesPath string // "" if the host has no cgroup v1 devices controller
}

// New constructs a Container: rejects u32::MAX identities, opens the
// init process's mount namespace, computes the root identity via the
// id-map (if any), builds the appropriate filter driver, and starts the
// cgroup.events watcher.
func New(cfg Config) (*Container, error) {
	if cfg.UID == maxUint32 || cfg.GID == maxUint32 {
		return nil, hperr.Configuration("validate container identity", fmt.Errorf("uid/gid %d is sentinel u32::MAX", maxUint32))
	}

	mntNSFd, err := unix.Open(fmt.Sprintf("/proc/%d/ns/mnt", cfg.InitPID), unix.O_RDONLY, 0)
	if err != nil {
		return nil, hperr.Namespace("open init mount namespace", err)
	}

	uidMap, gidMap, err := readIDMaps(cfg.InitPID)
	if err != nil {
		unix.Close(mntNSFd)
		return nil, err
	}

	rootIdentity, hasUserNS, err := nsexec.TranslateRoot(uidMap, gidMap)
	if err != nil {
		unix.Close(mntNSFd)
		return nil, err
	}

	filter, err := bpfdevice.New(cfg.UnifiedPath, cfg.DevicesPath)
	if err != nil {
		unix.Close(mntNSFd)
		return nil, err
	}

	c := &Container{
		InitPID:      cfg.InitPID,
		UID:          cfg.UID,
		GID:          cfg.GID,
		mntNSFd:      mntNSFd,
		uidMap:       uidMap,
		gidMap:       gidMap,
		unifiedPath:  cfg.UnifiedPath,
		devicesPath:  cfg.DevicesPath,
		filter:       filter,
		populated:    make(chan struct{}),
		reaped:       make(chan struct{}),
	}
	if hasUserNS {
		c.rootIdentity = &rootIdentity
	}

	mitigateSystemdDropins(cfg.UnifiedPath)

	if hasUserNS {
		if err := remountDev(mntNSFd, rootIdentity); err != nil {
			filter.Close()
			unix.Close(mntNSFd)
			return nil, err
		}
	}

	go c.watchCgroupEvents()
	go c.reap()

	return c, nil
}

// RootIdentity returns the root identity translated through the container's
// user-namespace id-maps, or nil if the container does not use a user
// namespace. Callers (e.g. the uevent sender) need this to act with a
// credential libudev's SCM check accepts as root inside the container.
func (c *Container) RootIdentity() *nsexec.Identity {
	return c.rootIdentity
}

// reap blocks in wait4 on the init PID until it is reaped, so the real exit
// status is available to ExitCode. This only succeeds if the init process
// has been reparented to this one, which requires the caller to have set
// itself as a child subreaper (via PR_SET_CHILD_SUBREAPER) before the
// underlying runtime forked it; otherwise wait4 fails with ECHILD and
// ExitCode falls back to reporting a clean exit.
func (c *Container) reap() {
	defer close(c.reaped)
	var ws unix.WaitStatus
	for {
		_, err := unix.Wait4(int(c.InitPID), &ws, 0, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			log.WithError(err).WithField("pid", c.InitPID).Warn("failed to reap init process; exit code defaults to 0")
			return
		}
		c.waitStatus = ws
		return
	}
}

// ExitCode blocks until the init process has been reaped and returns its
// real exit status, truncated to u8 per wait(2) semantics (128+signal for a
// fatal signal). It returns 0 if the process could not be reaped at all.
func (c *Container) ExitCode() uint8 {
	<-c.reaped
	switch {
	case c.waitStatus.Exited():
		return uint8(c.waitStatus.ExitStatus())
	case c.waitStatus.Signaled():
		return uint8(128 + int(c.waitStatus.Signal()))
	default:
		return 0
	}
}

func readIDMaps(pid uint32) (uidMap, gidMap idmap.Map, err error) {
	uidMap, err = readIDMapFile(fmt.Sprintf("/proc/%d/uid_map", pid))
	if err != nil {
		return nil, nil, err
	}
	gidMap, err = readIDMapFile(fmt.Sprintf("/proc/%d/gid_map", pid))
	if err != nil {
		return nil, nil, err
	}
	return uidMap, gidMap, nil
}

func readIDMapFile(path string) (idmap.Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, hperr.Namespace("open "+filepath.Base(path), err)
	}
	defer f.Close()
	return idmap.Parse(f)
}

// Device delegates the access-mask write to the filter driver.
func (c *Container) Device(t device.Type, num device.DevNum, access device.Access) error {
	return c.filter.SetPermission(t, num.Major, num.Minor, access)
}

// Kill sends signal directly to the init PID via kill(2).
func (c *Container) Kill(signal unix.Signal) error {
	if err := unix.Kill(int(c.InitPID), signal); err != nil {
		if err == unix.ESRCH {
			return hperr.ContainerGone("kill init process", err)
		}
		return hperr.Kernel("kill init process", err)
	}
	return nil
}

// Wait resolves when the cgroup becomes unpopulated.
func (c *Container) Wait() {
	<-c.populated
}

// Close releases the filter and mount-namespace handle. The filter pin is
// removed exactly once per supervisor lifetime.
func (c *Container) Close() error {
	err := c.filter.Close()
	unix.Close(c.mntNSFd)
	return err
}

// translateUID/GID translate the container's primary identity through its
// id-map, for chown operations performed by mknod/symlink.
func (c *Container) translateUID() (uint32, error) {
	if c.uidMap.IsIdentity() {
		return c.UID, nil
	}
	return c.uidMap.Translate(c.UID)
}

func (c *Container) translateGID() (uint32, error) {
	if c.gidMap.IsIdentity() {
		return c.GID, nil
	}
	return c.gidMap.Translate(c.GID)
}
