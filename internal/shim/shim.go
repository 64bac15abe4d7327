// Package shim implements the fork-and-delegate runtime integration flow of
// for the `create` verb, a self-reexecuted child runs the real
// OCI runtime to completion, then becomes the hotplug supervisor; the
// original process waits for a one-byte handshake over a pipe and exits
// with the result the upstream container manager expects.
package shim

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"

	"github.com/lowRISC/container-hotplug/internal/bundle"
	"github.com/lowRISC/container-hotplug/internal/container"
	"github.com/lowRISC/container-hotplug/internal/logging"
	"github.com/lowRISC/container-hotplug/internal/runtimestate"
	"github.com/lowRISC/container-hotplug/internal/supervisor"
	"github.com/lowRISC/container-hotplug/internal/ttyguard"
	"github.com/lowRISC/container-hotplug/internal/uevent"
)

var log = logging.GetLogger("shim")

// childRoleEnv marks a re-exec of this binary as the fork-and-delegate
// child; its value is the inherited pipe write-end fd number.
const childRoleEnv = "CONTAINER_HOTPLUG_SHIM_PIPE_FD"

// CreateArgs carries everything the shim needs for one `create` invocation.
type CreateArgs struct {
	RuntimePath       string   // path to the real OCI-runtime binary (e.g. runc)
	RuntimeArgs       []string // `create` argv for the real runtime, rebuilt from the parsed flags
	Bundle            string   // --bundle value
	ContainerID       string   // positional <id>
	Root              string   // --root value
	RootUnpluggedCode uint8
}

// Create runs the fork-and-delegate flow and returns the exit code the
// calling process (standing in for the original OCI-runtime binary) must
// exit with.
func Create(args CreateArgs) int {
	// Guard our own stdin's terminal mode: if the child dies between
	// taking over the controlling terminal and restoring it (e.g. the
	// real runtime crashes mid-handoff), the caller's terminal must not
	// come back in raw mode.
	guard := ttyguard.New(int(os.Stdin.Fd()), func(*unix.Termios) {})
	defer guard.Restore()

	r, w, err := os.Pipe()
	if err != nil {
		log.WithError(err).Error("failed to create handshake pipe")
		return 125
	}

	self, err := os.Executable()
	if err != nil {
		log.WithError(err).Error("failed to resolve own executable path")
		return 125
	}

	child := exec.Command(self, os.Args[1:]...)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	child.ExtraFiles = []*os.File{w}
	child.Env = append(os.Environ(), fmt.Sprintf("%s=%d", childRoleEnv, 3))
	child.SysProcAttr = &unix.SysProcAttr{Setsid: true}

	if err := child.Start(); err != nil {
		log.WithError(err).Error("failed to start shim child")
		r.Close()
		w.Close()
		return 125
	}
	w.Close()

	buf := make([]byte, 1)
	n, readErr := r.Read(buf)
	r.Close()

	if n == 1 {
		// Container is live; detach and let the child keep running as the
		// supervisor. The upstream container manager only cares that
		// `create` succeeded.
		return 0
	}

	_ = readErr // EOF before the handshake byte: the child failed.
	state, waitErr := child.Process.Wait()
	if waitErr != nil {
		log.WithError(waitErr).Error("failed to reap failed shim child")
		return 125
	}
	if state.Success() {
		// The child exited 0 without signalling readiness: treat as an
		// internal error rather than silently reporting success.
		return 125
	}
	return state.ExitCode()
}

// IsChild reports whether this process invocation is the fork-and-delegate
// child (i.e. it should run RunChild instead of Create).
func IsChild() (pipeFD int, ok bool) {
	v := os.Getenv(childRoleEnv)
	if v == "" {
		return 0, false
	}
	var fd int
	if _, err := fmt.Sscanf(v, "%d", &fd); err != nil {
		return 0, false
	}
	return fd, true
}

// RunChild executes the real OCI runtime to completion, then constructs the
// container handle and supervisor and drives them until the container
// exits, signalling the handshake pipe exactly once the device stream's
// initial snapshot has been processed. It returns the process's final
// exit code.
func RunChild(args CreateArgs, pipeFD int) int {
	pipe := os.NewFile(uintptr(pipeFD), "shim-handshake")
	defer pipe.Close()

	// Declare ourselves a child subreaper before forking the underlying
	// runtime: it forks the real init process and then exits once create
	// completes, so without this the init process would reparent to pid 1
	// and its real exit status would be unreapable from here.
	if err := unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0); err != nil {
		log.WithError(err).Warn("failed to set child subreaper; container exit code will default to 0")
	}

	cmd := exec.Command(args.RuntimePath, args.RuntimeArgs...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		log.WithError(err).Error("underlying runtime create failed")
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		return 125
	}

	state, err := runtimestate.Load(args.Root, args.ContainerID)
	if err != nil {
		log.WithError(err).Error("failed to load runtime state after create")
		return 125
	}

	cfg, err := loadBundleConfig(args.Bundle)
	if err != nil {
		log.WithError(err).Error("failed to load bundle annotations")
		return 125
	}

	uid, gid, err := bundleUser(args.Bundle)
	if err != nil {
		log.WithError(err).Error("failed to read process user from config.json")
		return 125
	}

	devicesPath, _ := state.DevicesPath()
	c, err := container.New(container.Config{
		InitPID:     state.InitProcessPid,
		UID:         uid,
		GID:         gid,
		UnifiedPath: state.UnifiedPath(),
		DevicesPath: devicesPath,
	})
	if err != nil {
		log.WithError(err).Error("failed to construct container handle")
		return 125
	}

	sender, err := uevent.NewSender(int(state.InitProcessPid), c.RootIdentity())
	if err != nil {
		log.WithError(err).Error("failed to construct uevent sender")
		c.Close()
		return 125
	}

	requiredSyspaths := requiredSyspathsOf(cfg)
	sup := supervisor.New(c, cfg, requiredSyspaths, sender, args.RootUnpluggedCode)

	redirectStdioToDevNull()

	var firstRequired string
	if len(requiredSyspaths) > 0 {
		firstRequired = requiredSyspaths[0]
	}

	signalled := false
	result := sup.Run(context.Background(), firstRequired, func() {
		if signalled {
			return
		}
		signalled = true
		pipe.Write([]byte{1})
	})

	sender.Close()
	c.Close()

	return int(result.Resolve())
}

func loadBundleConfig(bundleDir string) (bundle.Config, error) {
	doc, err := readBundleAnnotations(bundleDir)
	if err != nil {
		return bundle.Config{}, err
	}
	return bundle.ParseAnnotations(doc)
}

// requiredSyspathsOf derives the required (root) syspath set from the
// bundle's non-parent-of syspath: selectors: a selector with zero
// ParentHops names the root device directly. usb: and devnode: selectors
// are not resolved to syspaths here and contribute nothing to the set.
func requiredSyspathsOf(cfg bundle.Config) []string {
	var out []string
	for _, sel := range cfg.Devices {
		if sel.Kind == bundle.SelectorSyspath && sel.ParentHops == 0 {
			out = append(out, sel.Path)
		}
	}
	return out
}

// redirectStdioToDevNull detaches the shim child's stdio once it has taken
// over as the supervisor, so no shell or init system blocks waiting for it
// to close inherited descriptors.
func redirectStdioToDevNull() {
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		log.WithError(err).Warn("failed to open /dev/null for stdio redirect")
		return
	}
	defer devNull.Close()
	for _, fd := range []uintptr{0, 1, 2} {
		if err := unix.Dup2(int(devNull.Fd()), int(fd)); err != nil {
			log.WithError(err).WithField("fd", fd).Warn("failed to redirect stdio")
		}
	}
}
