package bundle

import "testing"

func TestParseAnnotationsDevices(t *testing.T) {
	cfg, err := ParseAnnotations(map[string]string{
		annotationDevices: "syspath:/sys/devices/fake/hub, parent-of:usb:2b3e:c310",
	})
	if err != nil {
		t.Fatalf("ParseAnnotations: %v", err)
	}
	if len(cfg.Devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(cfg.Devices))
	}
	if cfg.Devices[0].Kind != SelectorSyspath || cfg.Devices[0].Path != "/sys/devices/fake/hub" {
		t.Errorf("device[0] = %+v", cfg.Devices[0])
	}
	if cfg.Devices[1].Kind != SelectorUSB || cfg.Devices[1].ParentHops != 1 {
		t.Errorf("device[1] = %+v", cfg.Devices[1])
	}
	if cfg.Devices[1].VendorID != "2b3e" || cfg.Devices[1].ProductID != "c310" {
		t.Errorf("device[1] vid/pid = %s/%s", cfg.Devices[1].VendorID, cfg.Devices[1].ProductID)
	}
}

func TestParseAnnotationsLegacyDeviceKey(t *testing.T) {
	cfg, err := ParseAnnotations(map[string]string{
		annotationDevicesLegacy: "devnode:/dev/bus/usb/001/002",
	})
	if err != nil {
		t.Fatalf("ParseAnnotations: %v", err)
	}
	if len(cfg.Devices) != 1 || cfg.Devices[0].Kind != SelectorDevnode {
		t.Errorf("cfg.Devices = %+v", cfg.Devices)
	}
}

func TestParseAnnotationsSymlinks(t *testing.T) {
	cfg, err := ParseAnnotations(map[string]string{
		annotationSymlinks: "usb:2b3e:c310:01=/dev/ttyACM_CW310_0",
	})
	if err != nil {
		t.Fatalf("ParseAnnotations: %v", err)
	}
	if len(cfg.Symlinks) != 1 {
		t.Fatalf("got %d symlinks, want 1", len(cfg.Symlinks))
	}
	rule := cfg.Symlinks[0]
	if rule.VendorID != "2b3e" || rule.ProductID != "c310" || rule.IfNum != "01" || rule.Target != "/dev/ttyACM_CW310_0" {
		t.Errorf("rule = %+v", rule)
	}
}

func TestParseAnnotationsRejectsBadVendorID(t *testing.T) {
	_, err := ParseAnnotations(map[string]string{annotationDevices: "usb:xyz"})
	if err == nil {
		t.Error("expected error for non-hex vendor id")
	}
}

func TestParseAnnotationsRejectsUnknownPrefix(t *testing.T) {
	_, err := ParseAnnotations(map[string]string{annotationDevices: "bogus:foo"})
	if err == nil {
		t.Error("expected error for unknown selector prefix")
	}
}

func TestParseAnnotationsEmpty(t *testing.T) {
	cfg, err := ParseAnnotations(map[string]string{})
	if err != nil {
		t.Fatalf("ParseAnnotations: %v", err)
	}
	if len(cfg.Devices) != 0 || len(cfg.Symlinks) != 0 {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}
