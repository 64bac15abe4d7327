package bpfdevice

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lowRISC/container-hotplug/internal/device"
)

func TestV1DriverWritesAllowAndDeny(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "devices.allow"), nil, 0o200); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "devices.deny"), nil, 0o200); err != nil {
		t.Fatal(err)
	}

	d := NewV1Driver(dir)
	if err := d.SetPermission(device.Character, 189, 0, device.Read|device.Write); err != nil {
		t.Fatalf("SetPermission: %v", err)
	}

	allow, err := os.ReadFile(filepath.Join(dir, "devices.allow"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(allow), "c 189:0 rw"; got != want {
		t.Errorf("devices.allow = %q, want %q", got, want)
	}

	deny, err := os.ReadFile(filepath.Join(dir, "devices.deny"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(deny), "c 189:0 m"; got != want {
		t.Errorf("devices.deny = %q, want %q", got, want)
	}
}

func TestV1DriverBlockType(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "devices.allow"), nil, 0o200)
	os.WriteFile(filepath.Join(dir, "devices.deny"), nil, 0o200)

	d := NewV1Driver(dir)
	if err := d.SetPermission(device.Block, 8, 1, device.All); err != nil {
		t.Fatalf("SetPermission: %v", err)
	}
	allow, _ := os.ReadFile(filepath.Join(dir, "devices.allow"))
	if got, want := string(allow), "b 8:1 rwm"; got != want {
		t.Errorf("devices.allow = %q, want %q", got, want)
	}
}

func TestV1DriverEmptyMaskDeniesAll(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "devices.allow"), nil, 0o200)
	os.WriteFile(filepath.Join(dir, "devices.deny"), nil, 0o200)

	d := NewV1Driver(dir)
	if err := d.SetPermission(device.Character, 1, 1, 0); err != nil {
		t.Fatalf("SetPermission: %v", err)
	}
	deny, _ := os.ReadFile(filepath.Join(dir, "devices.deny"))
	if got, want := string(deny), "c 1:1 rwm"; got != want {
		t.Errorf("devices.deny = %q, want %q", got, want)
	}
}
