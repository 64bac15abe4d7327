// Package supervisor implements the hotplug orchestration loop: it consumes
// the unified device stream and the container's exit signal, keeps the
// filter, the container's mount namespace and in-container udev consumers
// in sync, and derives the process's final exit code.
package supervisor

import (
	"context"

	"golang.org/x/sys/unix"

	"github.com/lowRISC/container-hotplug/internal/bundle"
	"github.com/lowRISC/container-hotplug/internal/container"
	"github.com/lowRISC/container-hotplug/internal/device"
	"github.com/lowRISC/container-hotplug/internal/logging"
	"github.com/lowRISC/container-hotplug/internal/udevmon"
	"github.com/lowRISC/container-hotplug/internal/uevent"
)

var log = logging.GetLogger("supervisor")

// ExitReason distinguishes why the run loop returned, to let the caller
// derive the process exit code.
type ExitReason int

const (
	// ExitContainerStopped means the container exited under its own logic.
	ExitContainerStopped ExitReason = iota
	// ExitRequiredDeviceRemoved means a required syspath vanished and the
	// supervisor killed the container itself.
	ExitRequiredDeviceRemoved
)

// Result is the run loop's terminal outcome. When the container stopped on
// its own, ContainerExitCode is already its real wait status (see
// Container.ExitCode); after a required-device removal it holds the
// root-unplugged code, and if the device stream could not start it holds
// 125. Resolve still must be called to apply the collision rule before
// using it as the process's own exit code.
type Result struct {
	Reason            ExitReason
	rootUnpluggedCode uint8
	ContainerExitCode uint8
}

// Resolve applies the collision rule to the container's real exit status:
// if it equals the configured root-unplugged code, 1 is substituted so a
// caller can never mistake an ordinary container exit for the root device
// having been pulled.
func (r Result) Resolve() uint8 {
	if r.Reason == ExitRequiredDeviceRemoved {
		return r.ContainerExitCode
	}
	if r.ContainerExitCode == r.rootUnpluggedCode {
		return 1
	}
	return r.ContainerExitCode
}

// live is the supervisor's own bookkeeping for one attached device: the
// symlink paths it created, so Remove can tear them down in the same order.
type live struct {
	device   device.Device
	symlinks []string
}

// Supervisor is the single-threaded cooperative run loop: it consumes
// device events and the container's exit signal one at a time, so no two
// filter/mknod/symlink/uevent sequences ever interleave.
type Supervisor struct {
	c                 *container.Container
	cfg               bundle.Config
	required          map[string]struct{}
	sender            *uevent.Sender
	rootUnpluggedCode uint8

	liveSet map[string]live
}

// New builds a Supervisor ready to Run. requiredSyspaths is the configured
// root device set: its disappearance terminates the container.
// rootUnpluggedCode is the operator-configured exit status to return on
// such a removal.
func New(c *container.Container, cfg bundle.Config, requiredSyspaths []string, sender *uevent.Sender, rootUnpluggedCode uint8) *Supervisor {
	required := make(map[string]struct{}, len(requiredSyspaths))
	for _, s := range requiredSyspaths {
		required[s] = struct{}{}
	}
	return &Supervisor{
		c:                 c,
		cfg:               cfg,
		required:          required,
		sender:            sender,
		rootUnpluggedCode: rootUnpluggedCode,
		liveSet:           make(map[string]live),
	}
}

// Run drives the loop until the container exits, one way or another. rootSyspath
// scopes the monitor sub-tree; onInitialized fires exactly once, at the
// transition from the initial snapshot to live monitoring.
func (s *Supervisor) Run(ctx context.Context, rootSyspath string, onInitialized func()) Result {
	events, err := udevmon.Stream(ctx, rootSyspath, onInitialized)
	if err != nil {
		log.WithError(err).Error("failed to start device stream")
		return Result{Reason: ExitContainerStopped, rootUnpluggedCode: s.rootUnpluggedCode, ContainerExitCode: 125}
	}

	exited := make(chan struct{})
	go func() {
		s.c.Wait()
		close(exited)
	}()

	requiredRemoved := false
	for {
		select {
		case e, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if e.Device.DevNode == "" {
				continue
			}
			switch e.Kind {
			case udevmon.Add:
				s.handleAdd(e.Device)
			case udevmon.Remove:
				if s.handleRemove(e.Device) {
					requiredRemoved = true
					if err := s.c.Kill(unix.SIGKILL); err != nil {
						log.WithError(err).Warn("failed to signal container after required device removal")
					}
					s.c.Wait()
					return Result{Reason: ExitRequiredDeviceRemoved, rootUnpluggedCode: s.rootUnpluggedCode, ContainerExitCode: s.rootUnpluggedCode}
				}
			}
		case <-exited:
			reason := ExitContainerStopped
			if requiredRemoved {
				reason = ExitRequiredDeviceRemoved
			}
			return Result{Reason: reason, rootUnpluggedCode: s.rootUnpluggedCode, ContainerExitCode: s.c.ExitCode()}
		}
	}
}

// handleAdd matches symlink rules, wires the filter, creates the device
// node and symlinks, and announces the change, in the exact order the
// concurrency model requires.
func (s *Supervisor) handleAdd(d device.Device) {
	var links []string
	for _, rule := range s.cfg.Symlinks {
		if rule.Matches(d) {
			links = append(links, rule.Target)
		}
	}

	if err := s.c.Device(d.Type, d.DevNum, device.All); err != nil {
		log.WithError(err).WithField("syspath", d.Syspath).Error("failed to grant device access")
		return
	}
	if err := s.c.Mknod(d.DevNode, d.Type, d.DevNum); err != nil {
		log.WithError(err).WithField("syspath", d.Syspath).Error("failed to create device node")
		return
	}
	for _, link := range links {
		if err := s.c.Symlink(d.DevNode, link); err != nil {
			log.WithError(err).WithField("link", link).Error("failed to create symlink")
		}
	}

	s.liveSet[d.Syspath] = live{device: d, symlinks: links}

	if err := s.sender.Send("add", d); err != nil {
		log.WithError(err).WithField("syspath", d.Syspath).Warn("failed to send add uevent")
	}
}

// handleRemove reverses handleAdd → rm →
// uevent") and reports whether the removed syspath was in the required set.
func (s *Supervisor) handleRemove(d device.Device) bool {
	entry, ok := s.liveSet[d.Syspath]
	if !ok {
		return false
	}
	delete(s.liveSet, d.Syspath)

	if err := s.c.Device(entry.device.Type, entry.device.DevNum, 0); err != nil {
		log.WithError(err).WithField("syspath", d.Syspath).Error("failed to revoke device access")
	}
	s.c.Rm(entry.device.DevNode)
	for _, link := range entry.symlinks {
		s.c.Rm(link)
	}

	if err := s.sender.Send("remove", entry.device); err != nil {
		log.WithError(err).WithField("syspath", d.Syspath).Warn("failed to send remove uevent")
	}

	_, required := s.required[d.Syspath]
	return required
}
