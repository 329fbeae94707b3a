// Package version implements the version command.
package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version and Commit are stamped at build time via -ldflags.
var (
	Version = "dev"
	Commit  = ""
)

// NewCmdVersion creates the version command. It overrides the root
// PersistentPreRun so printing the version never requires a valid
// configuration or database.
func NewCmdVersion() *cobra.Command {
	return &cobra.Command{
		Use:              "version",
		Short:            "Show version information",
		Long:             `Display the deployer version and build commit.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(buildString())
			return nil
		},
	}
}

// buildString renders "0.3.1 (abc1234)" when a commit was stamped in and
// just the version otherwise.
func buildString() string {
	if Commit == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, Commit)
}
