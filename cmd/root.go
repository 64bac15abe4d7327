// Package cmd implements the OCI-runtime CLI surface this binary stands in
// for: the intercepted `create` verb plus exec-replace pass-through for
// every other verb, sharing the global flag set runc itself exposes.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/lowRISC/container-hotplug/internal/logging"
)

var log = logging.GetLogger("cmd")

// runtimeEnv names the real OCI-runtime binary this shim delegates to. It
// is not part of the pass-through flag surface, so it is resolved out of
// band the way a drop-in replacement binary conventionally is: the real
// binary addressed by an environment variable rather than a new flag that
// would collide with runc's own.
const runtimeEnv = "CONTAINER_HOTPLUG_RUNTIME"

const defaultRuntimePath = "runc"

// rootUnpluggedCodeEnv configures the exit code returned when the
// container's required device vanishes; likewise out of band for the same
// reason.
const rootUnpluggedCodeEnv = "CONTAINER_HOTPLUG_ROOT_UNPLUGGED_EXIT_CODE"

const defaultRootUnpluggedCode = 127

var globalFlags struct {
	debug         bool
	log           string
	logFormat     string
	root          string
	systemdCgroup bool
}

// globalFlagsTakingValue are the runc global flags that consume a
// following argument, used by splitVerb to skip past them without
// needing a full flag parser for the pass-through path.
var globalFlagsTakingValue = map[string]bool{
	"--log":        true,
	"--log-format": true,
	"--root":       true,
}

// Execute is the process entry point. Every verb but `create` never
// returns: it replaces the process image with the real runtime via
// exec(2), argv untouched.
func Execute() int {
	args := os.Args[1:]
	if verb, _ := splitVerb(args); verb != "create" {
		return passThrough(args)
	}
	return runCreate(args)
}

// splitVerb walks past the known global flags (which always precede the
// verb) to find it, the same convention runc's own CLI follows.
func splitVerb(args []string) (verb string, verbIndex int) {
	i := 0
	for i < len(args) {
		a := args[i]
		if a == "--debug" || a == "--systemd-cgroup" {
			i++
			continue
		}
		if globalFlagsTakingValue[a] {
			i += 2
			continue
		}
		if eq := strings.IndexByte(a, '='); eq > 0 && globalFlagsTakingValue[a[:eq]] {
			i++
			continue
		}
		break
	}
	if i >= len(args) {
		return "", i
	}
	return args[i], i
}

// passThrough forwards argv to the real runtime completely unmodified.
func passThrough(args []string) int {
	if err := execReplace(runtimePath(), args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 125
	}
	return 0
}

// runCreate parses the `create` verb through cobra, for its own
// structured flag set (--bundle/--console-socket/--pid-file).
func runCreate(args []string) int {
	root := &cobra.Command{
		Use:           "container-hotplug",
		Short:         "OCI-runtime wrapper that hotplugs host devices into a running container",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&globalFlags.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVar(&globalFlags.log, "log", "", "log file path")
	root.PersistentFlags().StringVar(&globalFlags.logFormat, "log-format", "text", "log format: text or json")
	root.PersistentFlags().StringVar(&globalFlags.root, "root", "/run/runc", "runtime state root directory")
	root.PersistentFlags().BoolVar(&globalFlags.systemdCgroup, "systemd-cgroup", false, "use systemd cgroup driver")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		initLogging()
	}
	root.AddCommand(newCreateCommand())
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 125
	}
	return 0
}

func initLogging() {
	format := "text"
	if globalFlags.logFormat == "json" {
		format = "json"
	}
	if err := logging.Initialize(logging.Config{Debug: globalFlags.debug, Log: globalFlags.log, Format: format}); err != nil {
		fmt.Fprintf(os.Stderr, "container-hotplug: failed to initialize logging: %v\n", err)
	}
}

func runtimePath() string {
	if v := os.Getenv(runtimeEnv); v != "" {
		return v
	}
	return defaultRuntimePath
}

func rootUnpluggedCode() uint8 {
	v := os.Getenv(rootUnpluggedCodeEnv)
	if v == "" {
		return defaultRootUnpluggedCode
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n < 0 || n > 255 {
		log.WithField("value", v).Warn("invalid root-unplugged exit code override, using default")
		return defaultRootUnpluggedCode
	}
	return uint8(n)
}

// passThroughGlobalArgs reconstructs the global-flag prefix runc itself
// expects, since cobra has already consumed them into globalFlags by the
// time the create command builds the runtime's argv.
func passThroughGlobalArgs() []string {
	var out []string
	if globalFlags.debug {
		out = append(out, "--debug")
	}
	if globalFlags.log != "" {
		out = append(out, "--log", globalFlags.log)
	}
	if globalFlags.logFormat != "" && globalFlags.logFormat != "text" {
		out = append(out, "--log-format", globalFlags.logFormat)
	}
	if globalFlags.root != "" && globalFlags.root != "/run/runc" {
		out = append(out, "--root", globalFlags.root)
	}
	if globalFlags.systemdCgroup {
		out = append(out, "--systemd-cgroup")
	}
	return out
}

// execReplace replaces this process's image with the real runtime.
func execReplace(runtime string, args []string) error {
	argv := append([]string{runtime}, args...)
	return unix.Exec(runtime, argv, os.Environ())
}
