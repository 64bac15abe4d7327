package bpfdevice

import "testing"

func TestPinName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/sys/fs/cgroup/system.slice/docker-abc123.scope", "docker-abc123-device-filter"},
		{"/sys/fs/cgroup/mycontainer", "mycontainer-device-filter"},
		{"/sys/fs/cgroup/foo/", "foo-device-filter"},
	}
	for _, tt := range tests {
		if got := pinName(tt.path); got != tt.want {
			t.Errorf("pinName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
