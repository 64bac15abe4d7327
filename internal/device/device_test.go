package device

import "testing"

func TestAccessAdmits(t *testing.T) {
	tests := []struct {
		mask, requested Access
		want            bool
	}{
		{Read | Write, Read, true},
		{Read | Write, Write, true},
		{Read, Write, false},
		{0, Read, false},
		{All, All, true},
		{Read, 0, true},
	}
	for _, tt := range tests {
		if got := tt.mask.Admits(tt.requested); got != tt.want {
			t.Errorf("Access(%v).Admits(%v) = %v, want %v", tt.mask, tt.requested, got, tt.want)
		}
	}
}

func TestTypeString(t *testing.T) {
	if Block.String() != "block" {
		t.Errorf("Block.String() = %q, want %q", Block.String(), "block")
	}
	if Character.String() != "char" {
		t.Errorf("Character.String() = %q, want %q", Character.String(), "char")
	}
}

func TestDeviceProperty(t *testing.T) {
	d := Device{Properties: map[string]string{"ID_VENDOR_ID": "2b3e"}}
	if got := d.Property("ID_VENDOR_ID"); got != "2b3e" {
		t.Errorf("Property = %q, want %q", got, "2b3e")
	}
	if got := d.Property("MISSING"); got != "" {
		t.Errorf("Property(missing) = %q, want empty", got)
	}
}
