package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gophertribe/devtool/build"
)

const (
	binary  = "dist/npa700"
	mainPkg = "./cmd/npa700"
)

// targets are the boards the cli is usually deployed to
var targets = map[string][2]string{
	"nanopi": {"linux", "arm"},
	"rpi":    {"linux", "arm64"},
	"host":   {runtime.GOOS, runtime.GOARCH},
}

func BuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build npa700 cli",
		RunE: func(cmd *cobra.Command, args []string) error {
			goos := cmd.Flag("os").Value.String()
			arch := cmd.Flag("arch").Value.String()
			version := cmd.Flag("version").Value.String()
			crossOs := cmd.Flag("cross-os").Value.String()
			crossArch := cmd.Flag("cross-arch").Value.String()
			if target := cmd.Flag("target").Value.String(); target != "" {
				t, ok := targets[target]
				if !ok {
					return fmt.Errorf("unknown target %q", target)
				}
				goos, arch = t[0], t[1]
			}

			// hid needs cgo, foreign targets are built inside docker
			if goos == runtime.GOOS && arch == runtime.GOARCH {
				if crossOs != "" && crossArch != "" {
					goos, arch = crossOs, crossArch
				}
				return build.GoBuild(binary, mainPkg, build.GoBuildOpts{
					Version:       version,
					InjectVersion: true,
					ConfigPackage: "main",
					EnableCgo:     true,
					Arch:          arch,
					OS:            goos,
				})
			}

			noCache, err := cmd.Flags().GetBool("no-cache")
			if err != nil {
				return fmt.Errorf("could not get no-cache flag: %w", err)
			}
			return build.Docker(cmd.Context(), fmt.Sprintf("./dev-%s-%s", goos, arch), []string{"build", "--version", version, "--cross-os", goos, "--cross-arch", arch}, build.DockerBuildOpts{
				NoCache: noCache,
				Image:   "gophertribe/gobuild:1.25-bookworm",
			})
		},
	}
	cmd.Flags().Bool("no-cache", false, "do not use cache when building the app")
	cmd.Flags().String("version", "latest", "version of the cli")
	cmd.Flags().String("os", runtime.GOOS, "os to build for")
	cmd.Flags().String("arch", runtime.GOARCH, "arch to build for")
	cmd.Flags().String("cross-os", "", "os to cross-compile for")
	cmd.Flags().String("cross-arch", "", "arch to cross-compile for")
	cmd.Flags().String("target", "", "named target: nanopi, rpi or host")

	return cmd
}
