package udevmon

import (
	"context"

	"github.com/lowRISC/container-hotplug/internal/device"
	"github.com/lowRISC/container-hotplug/internal/hperr"
	"github.com/lowRISC/container-hotplug/internal/logging"
)

var log = logging.GetLogger("device")

// Stream produces the unified {Add, Remove} event stream: one
// Add per device already present under rootSyspath, then live netlink
// events filtered to rootSyspath's sub-tree. onSnapshotDone is called
// exactly once, after the last snapshot Add has been sent and before any
// live event is read, so the supervisor can emit its synthetic Initialized
// event at that exact transition.
//
// The netlink socket is opened before the initial enumeration.
func Stream(ctx context.Context, rootSyspath string, onSnapshotDone func()) (<-chan Event, error) {
	sock, err := openSocket()
	if err != nil {
		return nil, hperr.Environment("open uevent netlink socket", err)
	}

	devices, err := snapshot(rootSyspath)
	if err != nil {
		sock.Close()
		return nil, hperr.TransientIO("enumerate udev database", err)
	}

	out := make(chan Event)
	seen := make(map[string]device.Device, len(devices))
	for _, d := range devices {
		seen[d.Syspath] = d
	}

	go func() {
		defer sock.Close()
		defer close(out)

		for _, d := range devices {
			select {
			case out <- Event{Kind: Add, Device: d}:
			case <-ctx.Done():
				return
			}
		}
		if onSnapshotDone != nil {
			onSnapshotDone()
		}

		errs := make(chan error, 1)
		events := make(chan *rawEvent)
		go func() {
			for {
				ev, err := sock.recv()
				if err != nil {
					errs <- err
					return
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case err := <-errs:
				log.WithError(err).Warn("uevent socket read failed")
				return
			case raw := <-events:
				if !underRoot(raw.syspath, rootSyspath) {
					continue
				}

				switch raw.action {
				case "add", "change":
					d := toDevice(raw.syspath, raw.props)
					if existing, ok := seen[raw.syspath]; ok && raw.action == "add" {
						// ReAdd: conservatively
						// remove-then-add.
						log.WithField("syspath", raw.syspath).Debug("re-add for known syspath, removing then adding")
						select {
						case out <- Event{Kind: Remove, Device: existing}:
						case <-ctx.Done():
							return
						}
					}
					seen[raw.syspath] = d
					select {
					case out <- Event{Kind: Add, Device: d}:
					case <-ctx.Done():
						return
					}
				case "remove":
					existing, ok := seen[raw.syspath]
					if !ok {
						continue
					}
					delete(seen, raw.syspath)
					select {
					case out <- Event{Kind: Remove, Device: existing}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return out, nil
}
