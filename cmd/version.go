package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/projecteru2/podfleet/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version, git revision, and build timestamp",
	// version works without a valid config
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Print(version.String())
	},
}
