// Package udevmon implements the device enumerator & monitor: a
// unified stream combining an initial udev-database snapshot with a live
// netlink-monitor stream, filtered to one sysfs sub-tree and deduplicated
// by syspath.
package udevmon

import "github.com/lowRISC/container-hotplug/internal/device"

// EventKind distinguishes the two stream events.
type EventKind int

const (
	Add EventKind = iota
	Remove
)

// Event is one item of the unified stream produced by Stream.
type Event struct {
	Kind   EventKind
	Device device.Device
}
