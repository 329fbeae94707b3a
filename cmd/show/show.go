// Package show implements the command showing one site and its deployments.
package show

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/webalive/deployer/app"
	"github.com/webalive/deployer/cmd/output"
)

func NewCmdShow() *cobra.Command {
	return &cobra.Command{
		Use:   "show <domain>",
		Short: "Show details for a site",
		Long: `Display detailed information about a site, including its
configuration and deployment history.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			domainName := args[0]

			site, err := app.GetSiteRepository().FindByDomain(domainName)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("site not found: %s", domainName)
				}
				return fmt.Errorf("retrieving site %s: %w", domainName, err)
			}

			out, err := output.PrintSiteDetails(site, false)
			if err != nil {
				return fmt.Errorf("formatting site details: %w", err)
			}
			if err := output.FprintPlain(cmd, "%s", out); err != nil {
				return err
			}

			deployments, err := app.GetDeploymentRepository().ListBySiteID(site.ID)
			if err != nil {
				return fmt.Errorf("retrieving deployments for %s: %w", domainName, err)
			}

			if len(deployments) == 0 {
				return output.FprintPlain(cmd, "\nNo deployments recorded.")
			}

			history, err := output.PrintDeploymentList(deployments)
			if err != nil {
				return fmt.Errorf("formatting deployments: %w", err)
			}
			if err := output.FprintPlain(cmd, "\nDeployments:"); err != nil {
				return err
			}
			return output.FprintPlain(cmd, "%s", history)
		},
	}
}
