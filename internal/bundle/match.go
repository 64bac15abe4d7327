package bundle

import "github.com/lowRISC/container-hotplug/internal/device"

// Matches reports whether d satisfies rule's USB vendor/model/interface
// properties (ID_VENDOR_ID, ID_MODEL_ID, ID_USB_INTERFACE_NUM).
func (rule SymlinkRule) Matches(d device.Device) bool {
	return d.Property("ID_VENDOR_ID") == rule.VendorID &&
		d.Property("ID_MODEL_ID") == rule.ProductID &&
		d.Property("ID_USB_INTERFACE_NUM") == rule.IfNum
}

// Matches reports whether d satisfies a usb selector's vendor/product/
// serial fields (ParentHops resolution happens earlier, while walking the
// sysfs tree; by the time Matches is called d is already the candidate
// root device).
func (sel DeviceSelector) Matches(d device.Device) bool {
	switch sel.Kind {
	case SelectorUSB:
		if d.Property("ID_VENDOR_ID") != sel.VendorID {
			return false
		}
		if sel.ProductID != "" && d.Property("ID_MODEL_ID") != sel.ProductID {
			return false
		}
		if sel.Serial != "" && d.Property("ID_SERIAL_SHORT") != sel.Serial {
			return false
		}
		return true
	case SelectorSyspath:
		return d.Syspath == sel.Path
	case SelectorDevnode:
		return d.DevNode == sel.Path
	default:
		return false
	}
}
