package container

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/lowRISC/container-hotplug/internal/device"
	"github.com/lowRISC/container-hotplug/internal/hperr"
	"github.com/lowRISC/container-hotplug/internal/nsexec"
)

// Mknod creates a device node at path inside the container's mount
// namespace: parent directories first, any pre-existing entry removed,
// mode 0644, owned by the container's primary identity translated through
// its id-map.
func (c *Container) Mknod(path string, t device.Type, num device.DevNum) error {
	uid, err := c.translateUID()
	if err != nil {
		return err
	}
	gid, err := c.translateGID()
	if err != nil {
		return err
	}

	mode := uint32(unix.S_IFCHR)
	if t == device.Block {
		mode = unix.S_IFBLK
	}
	mode |= 0o644

	rdev := unix.Mkdev(num.Major, num.Minor)

	return c.enter(func() error {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return hperr.Kernel("mkdir parent of "+path, err)
		}
		os.Remove(path)
		if err := unix.Mknodat(unix.AT_FDCWD, path, mode, int(rdev)); err != nil {
			return hperr.Kernel("mknod "+path, err)
		}
		if err := unix.Chown(path, int(uid), int(gid)); err != nil {
			return hperr.Kernel("chown "+path, err)
		}
		return nil
	})
}

// Symlink creates link -> src inside the container's mount namespace, with
// no ownership change.
func (c *Container) Symlink(src, link string) error {
	return c.enter(func() error {
		if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
			return hperr.Kernel("mkdir parent of "+link, err)
		}
		os.Remove(link)
		if err := os.Symlink(src, link); err != nil {
			return hperr.Kernel("symlink "+link, err)
		}
		return nil
	})
}

// Rm best-effort removes path inside the container's mount namespace:
// errors other than the entry already being gone are logged, not
// propagated — this is always called during best-effort teardown.
func (c *Container) Rm(path string) {
	err := c.enter(func() error {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return hperr.Kernel("rm "+path, err)
		}
		return nil
	})
	if err != nil {
		log.WithError(err).WithField("path", path).Debug("best-effort remove failed")
	}
}

// enter runs f on a worker thread with the container's mount namespace
// entered, per the concurrency model's rule that namespace-entered work
// never runs on the supervisor's own goroutine.
func (c *Container) enter(f func() error) error {
	return nsexec.EnterMount(c.mntNSFd, nil, f)
}
