package runtimestate

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	doc := `{
		"init_process_pid": 4242,
		"cgroup_paths": {
			"": "/sys/fs/cgroup/system.slice/docker-abc.scope",
			"devices": "/sys/fs/cgroup/devices/docker/abc"
		}
	}`

	s, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.InitProcessPid != 4242 {
		t.Errorf("InitProcessPid = %d, want 4242", s.InitProcessPid)
	}
	if s.UnifiedPath() != "/sys/fs/cgroup/system.slice/docker-abc.scope" {
		t.Errorf("UnifiedPath = %q", s.UnifiedPath())
	}
	path, ok := s.DevicesPath()
	if !ok || path != "/sys/fs/cgroup/devices/docker/abc" {
		t.Errorf("DevicesPath = %q, %v", path, ok)
	}
}

func TestParseMissingPid(t *testing.T) {
	if _, err := Parse(strings.NewReader(`{"cgroup_paths": {"": "/x"}}`)); err == nil {
		t.Error("expected error for missing init_process_pid")
	}
}

func TestParseNoDevicesPath(t *testing.T) {
	s, err := Parse(strings.NewReader(`{"init_process_pid": 1, "cgroup_paths": {"": "/x"}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := s.DevicesPath(); ok {
		t.Error("expected DevicesPath ok=false when absent")
	}
}
