// Package uevent implements the libudev-compatible netlink uevent sender
// libudev expects: bit-exact 40-byte header, NUL-terminated property records,
// monotonic sequence numbers, sent with the container's namespace identity.
package uevent

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

const (
	headerSize   = 40
	libudevMagic = 0xFEEDCAFE
)

var libudevPrefix = [8]byte{'l', 'i', 'b', 'u', 'd', 'e', 'v', 0}

// buildHeader lays out the fixed 40-byte libudev header: little-endian
// native layout with the magic stored in network byte order, matching what
// libudev itself expects on the receiving end.
func buildHeader(propsLen int, subsystem, devtype string) [headerSize]byte {
	var h [headerSize]byte
	copy(h[0:8], libudevPrefix[:])

	binary.BigEndian.PutUint32(h[8:12], libudevMagic)
	binary.LittleEndian.PutUint32(h[12:16], headerSize)
	binary.LittleEndian.PutUint32(h[16:20], headerSize) // properties offset
	binary.LittleEndian.PutUint32(h[20:24], uint32(propsLen))

	var subHash, devHash uint32
	if subsystem != "" {
		subHash = murmur3.Sum32WithSeed([]byte(subsystem), 0)
	}
	if devtype != "" {
		devHash = murmur3.Sum32WithSeed([]byte(devtype), 0)
	}
	binary.BigEndian.PutUint32(h[24:28], subHash)
	binary.BigEndian.PutUint32(h[28:32], devHash)

	// Tag bloom filter: conservative all-ones ("matches every tag").
	binary.LittleEndian.PutUint32(h[32:36], 0xFFFFFFFF)
	binary.LittleEndian.PutUint32(h[36:40], 0xFFFFFFFF)

	return h
}
