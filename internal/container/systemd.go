package container

import (
	"os"
	"path/filepath"
)

// mitigateSystemdDropins deletes the systemd-managed device-allowlist
// drop-ins for unifiedPath's cgroup, if present, so a later daemon-reload
// cannot silently reinstate a device policy that conflicts with the filter
// this handle owns. Errors are ignored: absence of systemd management is
// the common case, not a fault.
//
// No D-Bus call is needed: this only relies on the transient-unit drop-in
// directory convention systemd documents for `systemd-run --scope` /
// container-manager-created units.
func mitigateSystemdDropins(unifiedPath string) {
	dropInDir := filepath.Join("/run/systemd/transient", filepath.Base(unifiedPath)+".d")
	for _, name := range []string{"50-DeviceAllow.conf", "50-DevicePolicy.conf"} {
		path := filepath.Join(dropInDir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.WithError(err).WithField("path", path).Debug("failed to remove systemd device drop-in")
		}
	}
}
