// Package list implements the command listing managed sites.
package list

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webalive/deployer/app"
	"github.com/webalive/deployer/cmd/output"
)

func NewCmdList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all managed sites",
		Long: `Display all sites currently managed by the deployer.

Shows site information in a table format including:
- Domain, identifier and allocated port
- Current status
- Creation timestamp`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sites, err := app.GetSiteRepository().List()
			if err != nil {
				return fmt.Errorf("listing sites: %w", err)
			}

			out, err := output.PrintSiteList(sites)
			if err != nil {
				return fmt.Errorf("formatting site list: %w", err)
			}

			return output.FprintPlain(cmd, "%s", out)
		},
	}
}
