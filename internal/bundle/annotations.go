// Package bundle parses the OCI bundle annotations consumed by the runtime
// integration shim: root device selectors and symlink rules.
package bundle

import (
	"fmt"
	"strings"

	"github.com/lowRISC/container-hotplug/internal/hperr"
)

const (
	annotationDevices       = "org.lowrisc.hotplug.devices"
	annotationDevicesLegacy = "org.lowrisc.hotplug.device"
	annotationSymlinks      = "org.lowrisc.hotplug.symlinks"
)

// SelectorKind distinguishes the three device-selector prefixes.
type SelectorKind int

const (
	SelectorUSB SelectorKind = iota
	SelectorSyspath
	SelectorDevnode
)

// DeviceSelector names a root device by one of three schemes, optionally
// walking up the sysfs tree via repeated `parent-of:` prefixes.
type DeviceSelector struct {
	Kind       SelectorKind
	ParentHops int

	// USB fields (SelectorUSB)
	VendorID  string
	ProductID string
	Serial    string

	// Raw path (SelectorSyspath, SelectorDevnode)
	Path string
}

// SymlinkRule matches a device by its USB vendor/product/interface-number
// udev properties and produces a target path inside the container.
type SymlinkRule struct {
	VendorID  string
	ProductID string
	IfNum     string
	Target    string
}

// Config is everything the shim reads out of config.json's annotations.
type Config struct {
	Devices  []DeviceSelector
	Symlinks []SymlinkRule
}

// ParseAnnotations reads the hotplug-specific annotations, falling back to
// the legacy singular key for devices if the plural key is absent.
func ParseAnnotations(annotations map[string]string) (Config, error) {
	raw := annotations[annotationDevices]
	if raw == "" {
		raw = annotations[annotationDevicesLegacy]
	}

	var cfg Config
	for _, entry := range splitNonEmpty(raw) {
		sel, err := parseDeviceSelector(entry)
		if err != nil {
			return Config{}, hperr.Configuration("parse device selector", err)
		}
		cfg.Devices = append(cfg.Devices, sel)
	}

	for _, entry := range splitNonEmpty(annotations[annotationSymlinks]) {
		rule, err := parseSymlinkRule(entry)
		if err != nil {
			return Config{}, hperr.Configuration("parse symlink rule", err)
		}
		cfg.Symlinks = append(cfg.Symlinks, rule)
	}

	return cfg, nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseDeviceSelector parses "[parent-of:]*<prefix>:<spec>".
func parseDeviceSelector(entry string) (DeviceSelector, error) {
	var sel DeviceSelector
	rest := entry
	for strings.HasPrefix(rest, "parent-of:") {
		sel.ParentHops++
		rest = strings.TrimPrefix(rest, "parent-of:")
	}

	prefix, spec, ok := strings.Cut(rest, ":")
	if !ok {
		return DeviceSelector{}, fmt.Errorf("%q: missing prefix", entry)
	}

	switch prefix {
	case "usb":
		sel.Kind = SelectorUSB
		fields := strings.Split(spec, ":")
		if len(fields) < 1 || len(fields) > 3 {
			return DeviceSelector{}, fmt.Errorf("%q: usb selector takes 1-3 fields", entry)
		}
		sel.VendorID = fields[0]
		if len(fields) > 1 {
			sel.ProductID = fields[1]
		}
		if len(fields) > 2 {
			sel.Serial = fields[2]
		}
		if !isHex4(sel.VendorID) || (sel.ProductID != "" && !isHex4(sel.ProductID)) {
			return DeviceSelector{}, fmt.Errorf("%q: vendor/product id must be 4 hex digits", entry)
		}
	case "syspath":
		sel.Kind = SelectorSyspath
		sel.Path = spec
	case "devnode":
		sel.Kind = SelectorDevnode
		sel.Path = spec
	default:
		return DeviceSelector{}, fmt.Errorf("%q: unknown selector prefix %q", entry, prefix)
	}

	return sel, nil
}

// parseSymlinkRule parses "usb:<vid>:<pid>:<if-num>=<absolute-path>".
func parseSymlinkRule(entry string) (SymlinkRule, error) {
	lhs, target, ok := strings.Cut(entry, "=")
	if !ok || !strings.HasPrefix(target, "/") {
		return SymlinkRule{}, fmt.Errorf("%q: expected <selector>=<absolute-path>", entry)
	}

	prefix, spec, ok := strings.Cut(lhs, ":")
	if !ok || prefix != "usb" {
		return SymlinkRule{}, fmt.Errorf("%q: only the usb:<vid>:<pid>:<if-num> symlink prefix is supported", entry)
	}

	fields := strings.Split(spec, ":")
	if len(fields) != 3 {
		return SymlinkRule{}, fmt.Errorf("%q: usb symlink selector takes exactly vid:pid:if-num", entry)
	}
	if !isHex4(fields[0]) || !isHex4(fields[1]) || len(fields[2]) != 2 {
		return SymlinkRule{}, fmt.Errorf("%q: malformed vid/pid/if-num", entry)
	}

	return SymlinkRule{VendorID: fields[0], ProductID: fields[1], IfNum: fields[2], Target: target}, nil
}

func isHex4(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
