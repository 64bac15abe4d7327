package bpfdevice

// New selects the v2 eBPF back-end when a cgroup v2 unified path is given,
// falling back to the v1 text back-end otherwise.
func New(v2Path, v1DevicesPath string) (Driver, error) {
	if v2Path != "" {
		return NewV2Driver(v2Path)
	}
	return NewV1Driver(v1DevicesPath), nil
}
