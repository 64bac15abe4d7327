package hperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	cause := errors.New("no such file")
	err := Kernel("attach filter", cause)

	want := "KERNEL: attach filter: no such file"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorMessageNoCause(t *testing.T) {
	err := New(KindEnvironment, "check cgroup v2", nil)
	want := "ENVIRONMENT: check cgroup v2"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Namespace("enter mount ns", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", ContainerGone("remove node", errors.New("cgroup empty")))

	kind, ok := KindOf(err)
	if !ok {
		t.Fatal("KindOf did not find a *Error")
	}
	if kind != KindContainerGone {
		t.Errorf("kind = %v, want %v", kind, KindContainerGone)
	}
}

func TestKindOfNotFound(t *testing.T) {
	if _, ok := KindOf(errors.New("plain error")); ok {
		t.Error("KindOf should not find a kind in a plain error")
	}
}

func TestExceptional(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{Environment("no bpffs", nil), true},
		{Kernel("load program", nil), true},
		{Namespace("open ns fd", nil), true},
		{Configuration("bad annotation", nil), true},
		{ContainerGone("remove node", nil), false},
		{TransientIO("read cgroup.events", nil), false},
		{errors.New("plain"), false},
	}

	for _, tt := range tests {
		if got := Exceptional(tt.err); got != tt.want {
			t.Errorf("Exceptional(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestSwallowed(t *testing.T) {
	if !Swallowed(ContainerGone("rm device node", nil)) {
		t.Error("container-gone error should be swallowed")
	}
	if Swallowed(Kernel("attach filter", nil)) {
		t.Error("kernel error should not be swallowed")
	}
}
