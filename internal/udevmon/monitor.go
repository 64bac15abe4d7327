package udevmon

import (
	"bytes"
	"strconv"
	"strings"
	"syscall"

	"github.com/lowRISC/container-hotplug/internal/device"
	"github.com/lowRISC/container-hotplug/internal/escape"
)

const netlinkKobjectUevent = 15 // NETLINK_KOBJECT_UEVENT

// socket is a raw kernel uevent netlink socket: AF_NETLINK/SOCK_DGRAM bound
// to the kernel broadcast group (group 1), parsed with a libudev-header skip
// and a NUL-delimited KEY=VALUE scan.
type socket struct {
	fd int
}

func openSocket() (*socket, error) {
	fd, err := syscall.Socket(syscall.AF_NETLINK, syscall.SOCK_DGRAM|syscall.SOCK_CLOEXEC, netlinkKobjectUevent)
	if err != nil {
		return nil, err
	}

	addr := &syscall.SockaddrNetlink{Family: syscall.AF_NETLINK, Groups: 1}
	if err := syscall.Bind(fd, addr); err != nil {
		syscall.Close(fd)
		return nil, err
	}
	return &socket{fd: fd}, nil
}

func (s *socket) Close() error {
	return syscall.Close(s.fd)
}

// rawEvent is one parsed kernel uevent message.
type rawEvent struct {
	action  string
	syspath string
	props   map[string]string
}

// sysfsMount is prepended to the kobject path carried in a kernel uevent
// message, which is always relative to it (e.g. "/devices/..."), to match
// the absolute /sys-rooted paths go-udev's Syspath() and the bundle's
// syspath: selectors use.
const sysfsMount = "/sys"

func (s *socket) recv() (*rawEvent, error) {
	buf := make([]byte, 8192)
	for {
		n, _, err := syscall.Recvfrom(s.fd, buf, 0)
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			return nil, err
		}
		if ev := parseRawEvent(buf[:n]); ev != nil {
			return ev, nil
		}
	}
}

// parseRawEvent skips an optional libudev binary header, then splits
// "ACTION@KOBJ\0KEY=VALUE\0..." on NUL.
func parseRawEvent(data []byte) *rawEvent {
	if len(data) == 0 {
		return nil
	}

	if bytes.HasPrefix(data, []byte("libudev")) {
		for i := 0; i < len(data)-1; i++ {
			if data[i] != 0 {
				continue
			}
			rest := data[i+1:]
			if idx := bytes.IndexByte(rest, '@'); idx > 0 && idx < 20 && bytes.IndexByte(rest[:idx], 0) < 0 {
				data = rest
				break
			}
		}
	}

	parts := bytes.Split(data, []byte{0})
	if len(parts) == 0 || len(parts[0]) == 0 {
		return nil
	}

	header := string(parts[0])
	atIdx := strings.Index(header, "@")
	if atIdx < 1 {
		return nil
	}

	ev := &rawEvent{
		action:  header[:atIdx],
		syspath: sysfsMount + header[atIdx+1:],
		props:   make(map[string]string),
	}

	for _, part := range parts[1:] {
		if len(part) == 0 {
			continue
		}
		kv := string(part)
		eq := strings.Index(kv, "=")
		if eq < 1 {
			continue
		}
		ev.props[kv[:eq]] = escape.Unescape(kv[eq+1:])
	}
	return ev
}

func toDevice(syspath string, props map[string]string) device.Device {
	devType := device.Character
	if props["SUBSYSTEM"] == "block" {
		devType = device.Block
	}

	maj, _ := strconv.ParseUint(props["MAJOR"], 10, 32)
	min, _ := strconv.ParseUint(props["MINOR"], 10, 32)

	return device.Device{
		Syspath:    syspath,
		Type:       devType,
		DevNum:     device.DevNum{Major: uint32(maj), Minor: uint32(min)},
		DevNode:    devNodeOf(props),
		Subsystem:  props["SUBSYSTEM"],
		Properties: props,
	}
}

func devNodeOf(props map[string]string) string {
	if name := props["DEVNAME"]; name != "" {
		if strings.HasPrefix(name, "/") {
			return name
		}
		return "/dev/" + name
	}
	return ""
}
