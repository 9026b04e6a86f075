package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// set via -ldflags "-X github.com/onflow/batch-verifier/cmd/batchverify/cmd.semver=..."
var (
	semver = "undefined"
	commit = "undefined"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		goVersion := "unknown"
		if info, ok := debug.ReadBuildInfo(); ok {
			goVersion = info.GoVersion
		}
		fmt.Fprintf(cmd.OutOrStdout(), "batchverify %s (commit %s, %s)\n", semver, commit, goVersion)
	},
}
