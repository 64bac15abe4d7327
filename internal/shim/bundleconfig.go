package shim

import (
	"encoding/json"
	"os"
	"path/filepath"

	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/lowRISC/container-hotplug/internal/hperr"
)

// ociSpec is the subset of config.json this module reads: the standard OCI
// runtime-spec process/user fields plus the annotations map the bundle
// selectors and symlink rules are encoded in.
type ociSpec struct {
	Process     *specs.Process    `json:"process"`
	Annotations map[string]string `json:"annotations"`
}

func readSpec(bundleDir string) (ociSpec, error) {
	path := filepath.Join(bundleDir, "config.json")
	f, err := os.Open(path)
	if err != nil {
		return ociSpec{}, hperr.Configuration("open config.json", err)
	}
	defer f.Close()

	var s ociSpec
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return ociSpec{}, hperr.Configuration("parse config.json", err)
	}
	return s, nil
}

func readBundleAnnotations(bundleDir string) (map[string]string, error) {
	s, err := readSpec(bundleDir)
	if err != nil {
		return nil, err
	}
	return s.Annotations, nil
}

// bundleUser returns config.process.user.uid/gid, verbatim.
func bundleUser(bundleDir string) (uid, gid uint32, err error) {
	s, err := readSpec(bundleDir)
	if err != nil {
		return 0, 0, err
	}
	if s.Process == nil {
		return 0, 0, nil
	}
	return uint32(s.Process.User.UID), uint32(s.Process.User.GID), nil
}
