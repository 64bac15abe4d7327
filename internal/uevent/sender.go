package uevent

import (
	"sync/atomic"

	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"

	"github.com/lowRISC/container-hotplug/internal/device"
	"github.com/lowRISC/container-hotplug/internal/hperr"
	"github.com/lowRISC/container-hotplug/internal/logging"
	"github.com/lowRISC/container-hotplug/internal/nsexec"
)

var log = logging.GetLogger("uevent")

const libudevGroup = 2 // KOBJECT_UEVENT multicast group used by libudev

// Sender emits synthesised uevents into one container's network namespace
// with a per-instance monotonic sequence number, starting at 1.
type Sender struct {
	netnsFd  int
	identity *nsexec.Identity
	seq      atomic.Uint64
}

// NewSender opens the container's network namespace file descriptor for
// later entry. identity is nil when the container does not use a user
// namespace (the sender then keeps the supervisor's own root credentials).
func NewSender(pid int, identity *nsexec.Identity) (*Sender, error) {
	ns, err := netns.GetFromPid(pid)
	if err != nil {
		return nil, hperr.Namespace("open container network namespace", err)
	}
	return &Sender{netnsFd: int(ns), identity: identity}, nil
}

// Send builds and emits one uevent for d with the next sequence number,
// returning any error from the send. Because libudev verifies sender credentials via SCM_CREDENTIALS,
// the actual socket send happens on a worker thread that has entered the
// container's user-namespace identity.
func (s *Sender) Send(action string, d device.Device) error {
	seq := s.seq.Add(1)
	msg := Build(action, seq, d.Subsystem, d.Properties["DEVTYPE"], mergeProps(d, action))

	return nsexec.EnterNet(s.netnsFd, s.identity, func() error {
		fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, netlinkKobjectUeventFamily)
		if err != nil {
			return hperr.Kernel("open uevent send socket", err)
		}
		defer unix.Close(fd)

		addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: libudevGroup}
		if err := unix.Sendto(fd, msg, 0, addr); err != nil {
			return hperr.Kernel("send uevent", err)
		}
		log.WithField("action", action).WithField("syspath", d.Syspath).WithField("seqnum", seq).Debug("emitted uevent")
		return nil
	})
}

// Close releases the cached network-namespace file descriptor.
func (s *Sender) Close() error {
	return unix.Close(s.netnsFd)
}

const netlinkKobjectUeventFamily = 15

func mergeProps(d device.Device, action string) map[string]string {
	out := make(map[string]string, len(d.Properties)+4)
	for k, v := range d.Properties {
		out[k] = v
	}
	out["DEVPATH"] = d.Syspath
	out["SUBSYSTEM"] = d.Subsystem
	if d.DevNode != "" {
		out["DEVNAME"] = d.DevNode
	}
	return out
}
