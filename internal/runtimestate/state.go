// Package runtimestate parses runc's <root>/<id>/state.json:
// the init PID and cgroup paths needed to construct a Container handle.
// This is runc-specific state beyond the OCI runtime-spec State type
// (which has no cgroup_paths field), so it is decoded with a dedicated
// struct rather than opencontainers/runtime-spec's specs.State.
package runtimestate

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/lowRISC/container-hotplug/internal/hperr"
)

// State is the subset of state.json this module consumes.
type State struct {
	InitProcessPid uint32            `json:"init_process_pid"`
	CgroupPaths    map[string]string `json:"cgroup_paths"`
}

// UnifiedPath returns the cgroup v2 unified path, keyed by the empty
// string in cgroup_paths.
func (s State) UnifiedPath() string {
	return s.CgroupPaths[""]
}

// DevicesPath returns the cgroup v1 devices-controller path, if any.
func (s State) DevicesPath() (string, bool) {
	p, ok := s.CgroupPaths["devices"]
	return p, ok
}

// Load reads and parses <root>/<id>/state.json.
func Load(root, id string) (State, error) {
	path := filepath.Join(root, id, "state.json")
	f, err := os.Open(path)
	if err != nil {
		return State{}, hperr.Configuration("open state.json", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse decodes a state.json document from r.
func Parse(r io.Reader) (State, error) {
	var s State
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return State{}, hperr.Configuration("parse state.json", err)
	}
	if s.InitProcessPid == 0 {
		return State{}, hperr.Configuration("parse state.json", errMissingPid)
	}
	return s, nil
}

var errMissingPid = stateError("state.json missing init_process_pid")

type stateError string

func (e stateError) Error() string { return string(e) }
