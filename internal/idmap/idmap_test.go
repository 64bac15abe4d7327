package idmap

import (
	"strings"
	"testing"
)

func TestParseAndTranslate(t *testing.T) {
	m, err := Parse(strings.NewReader("0 1000 65536\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	tests := []struct {
		id      uint32
		want    uint32
		wantErr bool
	}{
		{0, 1000, false},
		{65535, 66535, false},
		{65536, 0, true},
	}

	for _, tt := range tests {
		got, err := m.Translate(tt.id)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Translate(%d) = %d, want error", tt.id, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Translate(%d): unexpected error: %v", tt.id, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Translate(%d) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestParseIdentity(t *testing.T) {
	m, err := Parse(strings.NewReader("0 0 4294967295\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !m.IsIdentity() {
		t.Error("expected identity map")
	}

	got, err := m.Translate(1234)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != 1234 {
		t.Errorf("Translate(1234) = %d, want 1234", got)
	}
}

func TestParseOverflow(t *testing.T) {
	if _, err := Parse(strings.NewReader("4294967290 0 100\n")); err == nil {
		t.Error("expected overflow error on inside+count")
	}
}

func TestParseMalformed(t *testing.T) {
	if _, err := Parse(strings.NewReader("not a map line\n")); err == nil {
		t.Error("expected parse error on malformed line")
	}
}

func TestTranslateOutOfRange(t *testing.T) {
	m, err := Parse(strings.NewReader("0 1000 10\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := m.Translate(10); err == nil {
		t.Error("expected error translating id outside every range")
	}
}
