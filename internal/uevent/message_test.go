package uevent

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

func TestBuildHeaderPrefixAndMagic(t *testing.T) {
	msg := Build("add", 1, "usb", "usb_device", nil)

	wantPrefix := []byte{0x6C, 0x69, 0x62, 0x75, 0x64, 0x65, 0x76, 0x00}
	if !bytes.Equal(msg[0:8], wantPrefix) {
		t.Errorf("prefix = % X, want % X", msg[0:8], wantPrefix)
	}

	wantMagic := []byte{0xFE, 0xED, 0xCA, 0xFE}
	if !bytes.Equal(msg[8:12], wantMagic) {
		t.Errorf("magic = % X, want % X", msg[8:12], wantMagic)
	}

	if got := binary.LittleEndian.Uint32(msg[12:16]); got != headerSize {
		t.Errorf("header size field = %d, want %d", got, headerSize)
	}
}

func TestBuildPropertiesBeginActionSeqnum(t *testing.T) {
	msg := Build("remove", 42, "tty", "", map[string]string{"FOO": "bar"})
	props := msg[headerSize:]

	if !bytes.HasPrefix(props, []byte("ACTION=remove\x00SEQNUM=42\x00")) {
		t.Errorf("properties do not begin with ACTION/SEQNUM: %q", props)
	}
}

func TestBuildDropsCallerSuppliedActionSeqnum(t *testing.T) {
	msg := Build("add", 7, "usb", "", map[string]string{"ACTION": "bogus", "SEQNUM": "999"})
	props := string(msg[headerSize:])

	if strings.Count(props, "ACTION=") != 1 {
		t.Errorf("expected exactly one ACTION= record, got: %q", props)
	}
	if strings.Count(props, "SEQNUM=") != 1 {
		t.Errorf("expected exactly one SEQNUM= record, got: %q", props)
	}
	if !strings.Contains(props, "ACTION=add\x00") {
		t.Errorf("caller-supplied ACTION should be overridden: %q", props)
	}
}

func TestBuildEmptySubsystemZeroHash(t *testing.T) {
	msg := Build("add", 1, "", "", nil)
	subHash := binary.BigEndian.Uint32(msg[24:28])
	if subHash != 0 {
		t.Errorf("subsystem hash with empty subsystem = %d, want 0", subHash)
	}
}

func TestBuildTagBloomAllOnes(t *testing.T) {
	msg := Build("add", 1, "usb", "", nil)
	hi := binary.LittleEndian.Uint32(msg[32:36])
	lo := binary.LittleEndian.Uint32(msg[36:40])
	if hi != 0xFFFFFFFF || lo != 0xFFFFFFFF {
		t.Errorf("tag bloom = %x %x, want all-ones", hi, lo)
	}
}
