package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lowRISC/container-hotplug/internal/shim"
)

// newCreateCommand builds the intercepted `create` verb. Its flag surface
// mirrors runc's own: --bundle (default cwd), --console-socket, --pid-file,
// and a single positional container id. Unlike every other verb this one is
// never exec-replaced: it drives the fork-and-delegate flow in
// internal/shim instead.
func newCreateCommand() *cobra.Command {
	var bundle, consoleSocket, pidFile string

	cmd := &cobra.Command{
		Use:   "create <container-id>",
		Short: "Create a container and start hotplug supervision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			containerID := args[0]
			if bundle == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				bundle = wd
			}

			createArgs := shim.CreateArgs{
				RuntimePath:       runtimePath(),
				RuntimeArgs:       passThroughCreateArgs(bundle, consoleSocket, pidFile, containerID),
				Bundle:            bundle,
				ContainerID:       containerID,
				Root:              globalFlags.root,
				RootUnpluggedCode: rootUnpluggedCode(),
			}

			if pipeFD, ok := shim.IsChild(); ok {
				os.Exit(shim.RunChild(createArgs, pipeFD))
			}
			os.Exit(shim.Create(createArgs))
			return nil
		},
	}

	cmd.Flags().StringVar(&bundle, "bundle", "", "path to the OCI bundle (default: current directory)")
	cmd.Flags().StringVar(&consoleSocket, "console-socket", "", "path to an AF_UNIX socket for console IO")
	cmd.Flags().StringVar(&pidFile, "pid-file", "", "file to write the container PID to")

	return cmd
}

// passThroughCreateArgs reconstructs the full `create` argv runc expects,
// including the global flags cobra already consumed, since the shim child
// re-execs this same binary and then hands this argv to the real runtime
// unmodified.
func passThroughCreateArgs(bundle, consoleSocket, pidFile, containerID string) []string {
	out := passThroughGlobalArgs()
	out = append(out, "create", "--bundle", bundle)
	if consoleSocket != "" {
		out = append(out, "--console-socket", consoleSocket)
	}
	if pidFile != "" {
		out = append(out, "--pid-file", pidFile)
	}
	out = append(out, containerID)
	return out
}
