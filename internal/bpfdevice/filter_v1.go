package bpfdevice

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lowRISC/container-hotplug/internal/device"
	"github.com/lowRISC/container-hotplug/internal/hperr"
)

// V1Driver is the legacy cgroup-v1 fallback: it writes `devices.deny` then
// `devices.allow` lines. It carries no kernel-enforced ordering guarantee
// beyond write order, and no MKNOD-is-allowed invariant.
type V1Driver struct {
	devicesPath string
}

// NewV1Driver wraps the cgroup v1 devices controller directory.
func NewV1Driver(devicesPath string) *V1Driver {
	return &V1Driver{devicesPath: devicesPath}
}

func (d *V1Driver) SetPermission(t device.Type, major, minor uint32, access device.Access) error {
	typeChar := 'c'
	if t == device.Block {
		typeChar = 'b'
	}

	var allowed, denied string
	if access.Admits(device.Read) {
		allowed += "r"
	} else {
		denied += "r"
	}
	if access.Admits(device.Write) {
		allowed += "w"
	} else {
		denied += "w"
	}
	if access.Admits(device.Mknod) {
		allowed += "m"
	} else {
		denied += "m"
	}

	// Open Question: writes are not coalesced. The device is
	// transiently fully denied between the deny write and the allow write
	// when both are non-empty.
	if denied != "" {
		if err := d.write("devices.deny", typeChar, major, minor, denied); err != nil {
			return err
		}
	}
	if allowed != "" {
		if err := d.write("devices.allow", typeChar, major, minor, allowed); err != nil {
			return err
		}
	}
	return nil
}

func (d *V1Driver) write(file string, typeChar rune, major, minor uint32, chars string) error {
	line := fmt.Sprintf("%c %d:%d %s", typeChar, major, minor, chars)
	if err := os.WriteFile(filepath.Join(d.devicesPath, file), []byte(line), 0o200); err != nil {
		return hperr.Kernel("write "+file, err)
	}
	return nil
}

func (d *V1Driver) Close() error { return nil }
