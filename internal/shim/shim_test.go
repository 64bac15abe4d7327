package shim

import (
	"os"
	"testing"

	"github.com/lowRISC/container-hotplug/internal/bundle"
)

func TestIsChildAbsent(t *testing.T) {
	os.Unsetenv(childRoleEnv)
	if _, ok := IsChild(); ok {
		t.Error("expected IsChild=false when env var unset")
	}
}

func TestIsChildPresent(t *testing.T) {
	t.Setenv(childRoleEnv, "3")
	fd, ok := IsChild()
	if !ok || fd != 3 {
		t.Errorf("IsChild() = %d, %v; want 3, true", fd, ok)
	}
}

func TestRequiredSyspathsOfFiltersSyspathSelectors(t *testing.T) {
	cfg := bundle.Config{Devices: []bundle.DeviceSelector{
		{Kind: bundle.SelectorSyspath, Path: "/sys/devices/fake/hub"},
		{Kind: bundle.SelectorUSB, VendorID: "2b3e", ProductID: "c310"},
	}}
	got := requiredSyspathsOf(cfg)
	if len(got) != 1 || got[0] != "/sys/devices/fake/hub" {
		t.Errorf("requiredSyspathsOf = %v", got)
	}
}
