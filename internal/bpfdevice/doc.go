// Package bpfdevice implements the device-access filter driver of spec
// §4.1: a cgroup v2 `cgroup_device` eBPF program and its backing map
// (github.com/cilium/ebpf, github.com/cilium/ebpf/asm,
// github.com/cilium/ebpf/link — grounded on runc's own attach/detach/pin
// protocol in the retrieval pack's libcontainer/cgroups/ebpf/ebpf.go), plus
// a cgroup v1 devices.allow/devices.deny fallback for legacy hosts.
package bpfdevice
