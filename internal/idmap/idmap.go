// Package idmap parses Linux /proc/<pid>/{uid,gid}_map files and translates
// ids through them, as used by the namespace executor to map a
// host id into a container's user-namespace view.
package idmap

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/lowRISC/container-hotplug/internal/hperr"
)

// Entry is one line of an id-map file: ids in [Inside, Inside+Count) map to
// [Outside, Outside+Count) piecewise.
type Entry struct {
	Inside  uint32
	Outside uint32
	Count   uint32
}

// Map is a parsed id-map, kept in file order; translation scans linearly
// since id-maps are typically a handful of entries.
type Map []Entry

// Parse reads an id-map in the kernel's "<inside> <outside> <count>" per-line
// format.
func Parse(r io.Reader) (Map, error) {
	var m Map
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var inside, outside, count uint64
		if _, err := fmt.Sscanf(line, "%d %d %d", &inside, &outside, &count); err != nil {
			return nil, hperr.Configuration("parse id-map line", fmt.Errorf("%q: %w", line, err))
		}
		if inside > 0xFFFFFFFF || outside > 0xFFFFFFFF || count > 0xFFFFFFFF {
			return nil, hperr.Configuration("parse id-map line", fmt.Errorf("%q: value out of uint32 range", line))
		}
		if inside+count > 0xFFFFFFFF {
			return nil, hperr.Configuration("parse id-map line", fmt.Errorf("%q: inside+count overflow", line))
		}
		m = append(m, Entry{Inside: uint32(inside), Outside: uint32(outside), Count: uint32(count)})
	}
	if err := scanner.Err(); err != nil {
		return nil, hperr.TransientIO("read id-map", err)
	}
	return m, nil
}

// Translate maps id through m, returning an error if id falls outside every
// entry's range or the translated value overflows uint32.
func (m Map) Translate(id uint32) (uint32, error) {
	for _, e := range m {
		if id < e.Inside || id >= e.Inside+e.Count {
			continue
		}
		offset := id - e.Inside
		outside := e.Outside + offset
		if outside < e.Outside {
			return 0, hperr.Namespace("translate id", fmt.Errorf("id %d: outside overflow", id))
		}
		return outside, nil
	}
	return 0, hperr.Namespace("translate id", fmt.Errorf("id %d not covered by id-map", id))
}

// IsIdentity reports whether m is the trivial identity mapping (a single
// entry 0 0 4294967295; no other map counts as identity), used by the namespace executor to
// decide whether a container uses a user namespace at all.
func (m Map) IsIdentity() bool {
	if len(m) != 1 {
		return false
	}
	e := m[0]
	return e.Inside == 0 && e.Outside == 0 && e.Count == 0xFFFFFFFF
}
