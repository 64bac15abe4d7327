package bundle

import (
	"testing"

	"github.com/lowRISC/container-hotplug/internal/device"
)

func TestSymlinkRuleMatches(t *testing.T) {
	rule := SymlinkRule{VendorID: "2b3e", ProductID: "c310", IfNum: "01"}
	d := device.Device{Properties: map[string]string{
		"ID_VENDOR_ID":          "2b3e",
		"ID_MODEL_ID":           "c310",
		"ID_USB_INTERFACE_NUM":  "01",
	}}
	if !rule.Matches(d) {
		t.Error("expected rule to match")
	}

	d.Properties["ID_USB_INTERFACE_NUM"] = "02"
	if rule.Matches(d) {
		t.Error("expected rule not to match a different interface number")
	}
}

func TestDeviceSelectorMatchesUSB(t *testing.T) {
	sel := DeviceSelector{Kind: SelectorUSB, VendorID: "2b3e", ProductID: "c310"}
	d := device.Device{Properties: map[string]string{"ID_VENDOR_ID": "2b3e", "ID_MODEL_ID": "c310"}}
	if !sel.Matches(d) {
		t.Error("expected usb selector to match")
	}
}

func TestDeviceSelectorMatchesSyspath(t *testing.T) {
	sel := DeviceSelector{Kind: SelectorSyspath, Path: "/sys/devices/fake/hub"}
	if !sel.Matches(device.Device{Syspath: "/sys/devices/fake/hub"}) {
		t.Error("expected syspath selector to match")
	}
	if sel.Matches(device.Device{Syspath: "/sys/devices/other"}) {
		t.Error("expected syspath selector not to match a different path")
	}
}
