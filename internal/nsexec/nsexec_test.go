package nsexec

import (
	"strings"
	"testing"

	"github.com/lowRISC/container-hotplug/internal/idmap"
)

func mustParse(t *testing.T, s string) idmap.Map {
	t.Helper()
	m, err := idmap.Parse(strings.NewReader(s))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return m
}

func TestTranslateRootIdentityMapping(t *testing.T) {
	uidMap := mustParse(t, "0 0 4294967295\n")
	gidMap := mustParse(t, "0 0 4294967295\n")

	_, ok, err := TranslateRoot(uidMap, gidMap)
	if err != nil {
		t.Fatalf("TranslateRoot: %v", err)
	}
	if ok {
		t.Error("identity mapping should report ok=false (no user namespace in effect)")
	}
}

func TestTranslateRootUserNamespace(t *testing.T) {
	uidMap := mustParse(t, "0 1000 65536\n")
	gidMap := mustParse(t, "0 2000 65536\n")

	identity, ok, err := TranslateRoot(uidMap, gidMap)
	if err != nil {
		t.Fatalf("TranslateRoot: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true for a non-identity mapping")
	}
	if identity.UID != 1000 {
		t.Errorf("UID = %d, want 1000", identity.UID)
	}
	if identity.GID != 2000 {
		t.Errorf("GID = %d, want 2000", identity.GID)
	}
}
