package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gophertribe/devtool/build"
)

const binaryPath = "dist/chirp"

// boards the chirp cli is deployed to, as GOOS/GOARCH pairs
var boards = map[string][2]string{
	"nanopi": {"linux", "arm"},
	"rpi":    {"linux", "arm64"},
}

func BuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the chirp cli",
		Long: `Build the chirp cli into dist/chirp.

Native builds use the local toolchain. Builds for another platform run inside
the gobuild docker image, because the MCP2221 adapter links hidapi through cgo.
--board nanopi|rpi is a shorthand for the matching --cross-os/--cross-arch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			goos, _ := cmd.Flags().GetString("os")
			goarch, _ := cmd.Flags().GetString("arch")
			version, _ := cmd.Flags().GetString("version")
			crossOS, _ := cmd.Flags().GetString("cross-os")
			crossArch, _ := cmd.Flags().GetString("cross-arch")
			if board, _ := cmd.Flags().GetString("board"); board != "" {
				target, ok := boards[board]
				if !ok {
					return fmt.Errorf("unknown board %q", board)
				}
				crossOS, crossArch = target[0], target[1]
			}

			if goos != runtime.GOOS || goarch != runtime.GOARCH {
				noCache, err := cmd.Flags().GetBool("no-cache")
				if err != nil {
					return fmt.Errorf("could not get no-cache flag: %w", err)
				}
				return build.Docker(cmd.Context(), fmt.Sprintf("./dev-%s-%s", goos, goarch),
					[]string{"build", "--version", version, "--cross-os", crossOS, "--cross-arch", crossArch},
					build.DockerBuildOpts{
						NoCache: noCache,
						Image:   "gophertribe/gobuild:1.25-bookworm",
					})
			}
			if crossOS != "" && crossArch != "" {
				goos, goarch = crossOS, crossArch
			}
			return build.GoBuild(binaryPath, "./cmd/chirp", build.GoBuildOpts{
				Version:       version,
				InjectVersion: true,
				ConfigPackage: "github.com/mklimuk/chirp/pkg/config",
				EnableCgo:     true,
				Arch:          goarch,
				OS:            goos,
			})
		},
	}
	cmd.Flags().Bool("no-cache", false, "do not use cache when building in docker")
	cmd.Flags().String("version", "latest", "version injected into pkg/config")
	cmd.Flags().String("os", runtime.GOOS, "os of the build host")
	cmd.Flags().String("arch", runtime.GOARCH, "arch of the build host")
	cmd.Flags().String("cross-os", "", "os to cross-compile for")
	cmd.Flags().String("cross-arch", "", "arch to cross-compile for")
	cmd.Flags().String("board", "", "target board: nanopi or rpi")
	return cmd
}
