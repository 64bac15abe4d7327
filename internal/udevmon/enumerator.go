package udevmon

import (
	"strconv"
	"strings"

	"github.com/jochenvg/go-udev"
	"golang.org/x/sys/unix"

	"github.com/lowRISC/container-hotplug/internal/device"
	"github.com/lowRISC/container-hotplug/internal/escape"
)

// snapshot returns one Device per entry currently in the udev database
// under rootSyspath, seeding lastDevices before the monitor starts watching
// for changes.
func snapshot(rootSyspath string) ([]device.Device, error) {
	u := udev.Udev{}
	enum := u.NewEnumerate()
	if err := enum.AddMatchProperty("DEVNAME", "*"); err != nil {
		return nil, err
	}

	devices, err := enum.Devices()
	if err != nil {
		return nil, err
	}

	var out []device.Device
	for _, d := range devices {
		syspath := d.Syspath()
		if !underRoot(syspath, rootSyspath) {
			continue
		}
		out = append(out, fromUdevDevice(d))
	}
	return out, nil
}

func underRoot(syspath, root string) bool {
	return syspath == root || strings.HasPrefix(syspath, root+"/")
}

func fromUdevDevice(d *udev.Device) device.Device {
	props := make(map[string]string)
	for k, v := range d.Properties() {
		// go-udev passes database values through as stored; unescape
		// defensively in case a value still carries udev's raw \xNN form.
		props[k] = escape.Unescape(v)
	}

	devType := device.Character
	if d.Subsystem() == "block" {
		devType = device.Block
	}

	var devNum device.DevNum
	if rdev := d.Devnum(); rdev != 0 {
		devNum = device.DevNum{
			Major: unix.Major(uint64(rdev)),
			Minor: unix.Minor(uint64(rdev)),
		}
	} else if maj, min, ok := majMinorFromProps(props); ok {
		devNum = device.DevNum{Major: maj, Minor: min}
	}

	return device.Device{
		Syspath:    d.Syspath(),
		Type:       devType,
		DevNum:     devNum,
		DevNode:    d.Devnode(),
		Subsystem:  d.Subsystem(),
		Properties: props,
	}
}

func majMinorFromProps(props map[string]string) (uint32, uint32, bool) {
	maj, okA := parseUint(props["MAJOR"])
	min, okB := parseUint(props["MINOR"])
	return maj, min, okA && okB
}

func parseUint(s string) (uint32, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}
