// Package hperr implements the error-kind taxonomy used across the hotplug
// supervisor and runtime shim: a single wrapped-error type keyed by a code,
// rather than a family of distinct Go types per failure.
package hperr

import "fmt"

// Kind classifies an error by the policy that applies to it (see Policy
// below), not by its call site.
type Kind string

const (
	// KindConfiguration covers bad bundle annotations or missing runtime
	// state; always fatal before the fork.
	KindConfiguration Kind = "CONFIGURATION"
	// KindEnvironment covers a host that cannot run the supervisor at all:
	// no cgroup v2, no bpffs, not running as root.
	KindEnvironment Kind = "ENVIRONMENT"
	// KindKernel covers eBPF load/attach, map operations, mknod, mount.
	KindKernel Kind = "KERNEL"
	// KindNamespace covers namespace open/enter and id-map translation.
	KindNamespace Kind = "NAMESPACE"
	// KindContainerGone covers a cgroup that depopulated mid-operation.
	KindContainerGone Kind = "CONTAINER_GONE"
	// KindTransientIO covers udev socket reads and cgroup.events reads.
	KindTransientIO Kind = "TRANSIENT_IO"
)

// Error wraps an underlying error with the kind and operation it occurred
// in: a Kind/Op/Err triple.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Op)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Kind and, if
// target's Op is non-empty, the same Op, so callers can match by kind with
// errors.Is(err, &hperr.Error{Kind: hperr.KindKernel}).
func (e *Error) Is(target error) bool {
	k, ok := target.(*Error)
	if !ok {
		return false
	}
	if k.Op != "" && k.Op != e.Op {
		return false
	}
	return k.Kind == e.Kind
}

// New builds an *Error for the given kind, operation and cause.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Configuration, Environment, Kernel, Namespace, ContainerGone and
// TransientIO are convenience constructors matching spec's taxonomy names.
func Configuration(op string, cause error) *Error { return New(KindConfiguration, op, cause) }
func Environment(op string, cause error) *Error   { return New(KindEnvironment, op, cause) }
func Kernel(op string, cause error) *Error        { return New(KindKernel, op, cause) }
func Namespace(op string, cause error) *Error     { return New(KindNamespace, op, cause) }
func ContainerGone(op string, cause error) *Error { return New(KindContainerGone, op, cause) }
func TransientIO(op string, cause error) *Error   { return New(KindTransientIO, op, cause) }

// KindOf extracts the Kind of err, walking Unwrap, and reports whether a
// *Error was found at all.
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return "", false
		}
		err = u.Unwrap()
	}
	return "", false
}

// Exceptional reports whether err belongs to the kinds that abort the
// supervisor on startup: configuration, environment, kernel and
// namespace failures encountered before the supervisor is live.
func Exceptional(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case KindEnvironment, KindKernel, KindNamespace, KindConfiguration:
		return true
	default:
		return false
	}
}

// Swallowed reports whether err should be discarded silently because it
// occurred during a best-effort reverse operation against a container that
// is already gone.
func Swallowed(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindContainerGone
}
