package udevmon

import "testing"

func TestParseRawEvent(t *testing.T) {
	msg := "add@/devices/fake/hub/port1\x00ACTION=add\x00SUBSYSTEM=usb\x00MAJOR=189\x00MINOR=0\x00DEVNAME=bus/usb/001/002\x00"

	ev := parseRawEvent([]byte(msg))
	if ev == nil {
		t.Fatal("parseRawEvent returned nil")
	}
	if ev.action != "add" {
		t.Errorf("action = %q, want %q", ev.action, "add")
	}
	if ev.syspath != "/sys/devices/fake/hub/port1" {
		t.Errorf("syspath = %q, want %q", ev.syspath, "/sys/devices/fake/hub/port1")
	}
	if ev.props["MAJOR"] != "189" {
		t.Errorf("props[MAJOR] = %q, want %q", ev.props["MAJOR"], "189")
	}
}

func TestParseRawEventWithLibudevHeader(t *testing.T) {
	header := "libudev\x00" + string([]byte{0xFE, 0xED, 0xCA, 0xFE}) + "\x00\x00\x00\x00"
	msg := header + "add@/devices/fake/hub/port1\x00ACTION=add\x00"

	ev := parseRawEvent([]byte(msg))
	if ev == nil {
		t.Fatal("parseRawEvent returned nil for libudev-prefixed message")
	}
	if ev.action != "add" {
		t.Errorf("action = %q, want %q", ev.action, "add")
	}
}

func TestParseRawEventEmpty(t *testing.T) {
	if parseRawEvent(nil) != nil {
		t.Error("expected nil for empty input")
	}
}

func TestParseRawEventMalformedHeader(t *testing.T) {
	if parseRawEvent([]byte("no-at-sign\x00FOO=bar\x00")) != nil {
		t.Error("expected nil when header lacks '@'")
	}
}

func TestToDevice(t *testing.T) {
	props := map[string]string{
		"SUBSYSTEM": "tty",
		"MAJOR":     "4",
		"MINOR":     "64",
		"DEVNAME":   "ttyS0",
	}
	d := toDevice("/devices/platform/serial8250/tty/ttyS0", props)

	if d.DevNode != "/dev/ttyS0" {
		t.Errorf("DevNode = %q, want %q", d.DevNode, "/dev/ttyS0")
	}
	if d.DevNum.Major != 4 || d.DevNum.Minor != 64 {
		t.Errorf("DevNum = %+v, want {4 64}", d.DevNum)
	}
}

func TestParseRawEventSyspathMatchesSysRoot(t *testing.T) {
	msg := "add@/devices/fake/hub/port1\x00ACTION=add\x00"
	ev := parseRawEvent([]byte(msg))
	if ev == nil {
		t.Fatal("parseRawEvent returned nil")
	}
	if !underRoot(ev.syspath, "/sys/devices/fake/hub") {
		t.Errorf("live event syspath %q did not match /sys-rooted root, breaking the entire hotplug path", ev.syspath)
	}
}

func TestUnderRoot(t *testing.T) {
	tests := []struct {
		syspath, root string
		want          bool
	}{
		{"/devices/fake/hub", "/devices/fake/hub", true},
		{"/devices/fake/hub/port1", "/devices/fake/hub", true},
		{"/devices/other", "/devices/fake/hub", false},
		{"/devices/fake/hubbed", "/devices/fake/hub", false},
	}
	for _, tt := range tests {
		if got := underRoot(tt.syspath, tt.root); got != tt.want {
			t.Errorf("underRoot(%q, %q) = %v, want %v", tt.syspath, tt.root, got, tt.want)
		}
	}
}
