// Package ttyguard saves and restores the termios state of a file
// descriptor across a modification. The fork-and-delegate shim can leave
// the controlling terminal in raw mode if the forked child dies before the
// terminal is restored, so the parent wraps the console fd in a guard for
// the duration of the handoff.
package ttyguard

import (
	"golang.org/x/sys/unix"

	"github.com/lowRISC/container-hotplug/internal/logging"
)

var log = logging.GetLogger("ttyguard")

// Guard restores a file descriptor's termios state to what it was when the
// guard was constructed, if the fd was a terminal at all. A no-op Restore
// is safe to call on a non-terminal fd.
type Guard struct {
	fd      int
	termios *unix.Termios
}

// New captures fd's current termios state (if it is a terminal) and applies
// mode to a copy, leaving the saved state to be restored by Restore.
// mode is called with the current settings; it mutates them in place.
func New(fd int, mode func(*unix.Termios)) *Guard {
	saved, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		// Not a terminal, or inaccessible: nothing to guard.
		return &Guard{fd: fd}
	}

	modified := *saved
	mode(&modified)
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &modified); err != nil {
		log.WithError(err).Warn("failed to set terminal mode")
		return &Guard{fd: fd}
	}

	return &Guard{fd: fd, termios: saved}
}

// Restore reapplies the termios state captured by New. Safe to call once;
// a second call is a no-op.
func (g *Guard) Restore() {
	if g == nil || g.termios == nil {
		return
	}
	if err := unix.IoctlSetTermios(g.fd, unix.TCSETS, g.termios); err != nil {
		log.WithError(err).Warn("failed to restore terminal mode")
	}
	g.termios = nil
}
