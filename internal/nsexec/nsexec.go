// Package nsexec runs closures inside one of a container's namespaces
// (mount or network, and, optionally, its user-namespace identity) on a
// dedicated worker thread, without disturbing the supervisor's own
// namespaces.
package nsexec

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/lowRISC/container-hotplug/internal/hperr"
	"github.com/lowRISC/container-hotplug/internal/idmap"
	"github.com/lowRISC/container-hotplug/internal/logging"
)

var log = logging.GetLogger("nsexec")

// Identity carries the UID/GID the worker thread should assume once it has
// entered the target namespace, translated through the container's id-map.
// A nil *Identity means "keep the current credentials", used when the
// container does not use a user namespace.
type Identity struct {
	UID uint32
	GID uint32
}

// TranslateRoot computes the Identity for host-root (uid/gid 0) as seen
// through uidMap/gidMap. Returns ok=false when both maps are identity
// mappings (no user namespace in effect).
func TranslateRoot(uidMap, gidMap idmap.Map) (Identity, bool, error) {
	if uidMap.IsIdentity() && gidMap.IsIdentity() {
		return Identity{}, false, nil
	}
	uid, err := uidMap.Translate(0)
	if err != nil {
		return Identity{}, false, hperr.Namespace("translate root uid", err)
	}
	gid, err := gidMap.Translate(0)
	if err != nil {
		return Identity{}, false, hperr.Namespace("translate root gid", err)
	}
	return Identity{UID: uid, GID: gid}, true, nil
}

// EnterMount runs f to completion inside the mount namespace referenced by
// nsFd. See Enter for the worker-thread and identity semantics.
func EnterMount(nsFd int, identity *Identity, f func() error) error {
	return Enter(unix.CLONE_NEWNS, nsFd, identity, f)
}

// EnterNet runs f to completion inside the network namespace referenced by
// nsFd. See Enter for the worker-thread and identity semantics.
func EnterNet(nsFd int, identity *Identity, f func() error) error {
	return Enter(unix.CLONE_NEWNET, nsFd, identity, f)
}

// Enter runs f to completion inside the namespace of the given CLONE_NEW*
// type referenced by nsFd, on a fresh worker goroutine pinned to its own OS
// thread so that entering and (implicitly, on thread exit) leaving the
// namespace never affects any other goroutine. If identity is set, the
// worker also assumes that UID/GID inside the namespace before running f,
// preserving capabilities across the UID/GID change via the thread's
// keep-caps bit.
func Enter(nsType int, nsFd int, identity *Identity, f func() error) error {
	result := make(chan error, 1)

	go func() {
		// Never unlocked: the goroutine exits while locked, so the runtime
		// terminates this thread instead of reusing it.
		runtime.LockOSThread()

		result <- func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic in namespace-entered worker: %v", r)
				}
			}()

			// Detach this thread's filesystem view from the rest of the
			// process so that changing namespaces is permitted.
			if err := unix.Unshare(unix.CLONE_FS); err != nil {
				return hperr.Namespace("unshare CLONE_FS", err)
			}

			if err := unix.Setns(nsFd, nsType); err != nil {
				return hperr.Namespace("setns", err)
			}

			if identity != nil {
				if err := assumeIdentity(*identity); err != nil {
					return err
				}
			}

			return f()
		}()
	}()

	return <-result
}

// assumeIdentity sets the thread's keep-caps secure bit, then its GID and
// UID to identity's translated values. Capabilities are evaluated against
// the init user namespace regardless, so this only changes the
// credentials presented to operations like mknod/chown, not the
// capability set itself.
func assumeIdentity(identity Identity) error {
	if err := unix.Prctl(unix.PR_SET_KEEPCAPS, 1, 0, 0, 0); err != nil {
		return hperr.Namespace("set keep-caps", err)
	}

	if err := unix.Setresgid(-1, int(identity.GID), -1); err != nil {
		return hperr.Namespace("setresgid", err)
	}
	if err := unix.Setresuid(-1, int(identity.UID), -1); err != nil {
		return hperr.Namespace("setresuid", err)
	}

	log.WithField("uid", identity.UID).WithField("gid", identity.GID).Debug("assumed container identity")
	return nil
}
