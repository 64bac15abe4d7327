package container

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/moby/sys/mount"
	"github.com/moby/sys/mountinfo"
	"golang.org/x/sys/unix"

	"github.com/lowRISC/container-hotplug/internal/hperr"
	"github.com/lowRISC/container-hotplug/internal/nsexec"
)

// nestedDevMounts are the well-known submounts of /dev that a container's
// config.json typically mounts independently of /dev itself and which must
// therefore survive the swap.
var nestedDevMounts = []string{"pts", "mqueue", "shm"}

// remountDev restores device-node openability under a user-namespace
// container's freshly created mount namespace, where the kernel marks new
// mounts SB_I_NODEV.
func remountDev(mntNSFd int, root nsexec.Identity) error {
	tmpfsFd, err := openFreshTmpfs()
	if err != nil {
		return err
	}
	defer unix.Close(tmpfsFd)

	return nsexec.EnterMount(mntNSFd, nil, func() error {
		return swapDev(tmpfsFd, root)
	})
}

// openFreshTmpfs runs the fsopen/fsconfig/fsmount protocol in the current
// (init) mount namespace and returns an open mount fd ready for move_mount.
func openFreshTmpfs() (int, error) {
	fd, err := unix.Fsopen("tmpfs", 0)
	if err != nil {
		return -1, hperr.Kernel("fsopen tmpfs", err)
	}
	if err := unix.FsconfigSetString(fd, "source", "devtmpfs"); err != nil {
		unix.Close(fd)
		return -1, hperr.Kernel("fsconfig set source", err)
	}
	if err := unix.FsconfigCreate(fd); err != nil {
		unix.Close(fd)
		return -1, hperr.Kernel("fsconfig create", err)
	}
	mountFd, err := unix.Fsmount(fd, 0, 0)
	unix.Close(fd)
	if err != nil {
		return -1, hperr.Kernel("fsmount", err)
	}
	return mountFd, nil
}

// swapDev performs steps 2-4 of the /dev remount protocol from inside the
// container's mount namespace.
func swapDev(tmpfsFd int, root nsexec.Identity) error {
	const oldDev = "/olddev"

	if err := os.Rename("/dev", oldDev); err != nil {
		return hperr.Kernel("rename /dev to /olddev", err)
	}
	if err := unix.MoveMount(tmpfsFd, "", unix.AT_FDCWD, "/dev", unix.MOVE_MOUNT_F_EMPTY_PATH); err != nil {
		return hperr.Kernel("move_mount tmpfs onto /dev", err)
	}
	if err := unix.Chown("/dev", int(root.UID), int(root.GID)); err != nil {
		log.WithError(err).Warn("failed to chown /dev to container root")
	}
	if err := os.Chmod("/dev", 0o755); err != nil {
		log.WithError(err).Warn("failed to chmod /dev")
	}

	if err := rematerializeConsole(oldDev); err != nil {
		log.WithError(err).Warn("failed to rematerialise /dev/console")
	}
	for _, name := range nestedDevMounts {
		if err := rematerializeNestedMount(oldDev, name); err != nil {
			log.WithError(err).WithField("mount", name).Warn("failed to rematerialise nested /dev mount")
		}
	}
	if err := rematerializeEntries(oldDev); err != nil {
		log.WithError(err).Warn("failed to rematerialise /dev entries")
	}

	if err := mount.Unmount(oldDev); err != nil {
		log.WithError(err).Warn("failed to detach-unmount /olddev")
	}
	if err := os.Remove(oldDev); err != nil {
		log.WithError(err).Warn("failed to remove /olddev")
	}
	return nil
}

// rematerializeConsole bind-moves /olddev/console onto a freshly created
// regular file at /dev/console.
func rematerializeConsole(oldDev string) error {
	src := filepath.Join(oldDev, "console")
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	dst := "/dev/console"
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return hperr.Kernel("create /dev/console placeholder", err)
	}
	f.Close()
	if err := mount.Mount(src, dst, "", "move"); err != nil {
		return hperr.Kernel("bind-move /dev/console", err)
	}
	return nil
}

// rematerializeNestedMount bind-moves a submount of the old /dev (e.g.
// pts, mqueue, shm) onto a freshly created directory of the same name.
func rematerializeNestedMount(oldDev, name string) error {
	src := filepath.Join(oldDev, name)
	mounted, err := mountinfo.Mounted(src)
	if err != nil || !mounted {
		return nil
	}
	dst := filepath.Join("/dev", name)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return hperr.Kernel("mkdir nested dev mount target", err)
	}
	if err := mount.Mount(src, dst, "", "move"); err != nil {
		return hperr.Kernel(fmt.Sprintf("bind-move /dev/%s", name), err)
	}
	_ = mount.Unmount(src)
	return nil
}

// rematerializeEntries recreates symlinks verbatim and character devices
// with their original rdev/mode from the old /dev tree into the new one,
// skipping nested-mount directories and the console placeholder already
// handled above.
func rematerializeEntries(oldDev string) error {
	entries, err := os.ReadDir(oldDev)
	if err != nil {
		return hperr.Kernel("read /olddev", err)
	}
	skip := map[string]bool{"console": true}
	for _, name := range nestedDevMounts {
		skip[name] = true
	}

	for _, entry := range entries {
		if skip[entry.Name()] {
			continue
		}
		src := filepath.Join(oldDev, entry.Name())
		dst := filepath.Join("/dev", entry.Name())

		info, err := os.Lstat(src)
		if err != nil {
			continue
		}
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(src)
			if err != nil {
				continue
			}
			if err := os.Symlink(target, dst); err != nil {
				log.WithError(err).WithField("path", dst).Debug("failed to recreate symlink")
			}
		case info.Mode()&os.ModeCharDevice != 0:
			stat, ok := info.Sys().(*unix.Stat_t)
			if !ok {
				continue
			}
			if err := unix.Mknodat(unix.AT_FDCWD, dst, uint32(unix.S_IFCHR|uint32(info.Mode().Perm())), int(stat.Rdev)); err != nil {
				log.WithError(err).WithField("path", dst).Debug("failed to recreate character device")
			}
		}
	}
	return nil
}
