// Package deploy implements the command deploying a site for a domain.
package deploy

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webalive/deployer/app"
	"github.com/webalive/deployer/cmd/output"
	"github.com/webalive/deployer/domain"
)

func NewCmdDeploy() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy <domain>",
		Short: "Deploy a site for a domain",
		Long: `Provision and start a site serving the given domain.

The deployment validates DNS, allocates a port, creates the site's
system user and home directory, copies and builds the template, starts
the systemd service and publishes the route in Caddy. On failure every
provisioned resource is rolled back unless --no-rollback is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, args[0])
		},
	}

	cmd.Flags().String("slug", "", "Override the identifier derived from the domain")
	cmd.Flags().String("template", "", "Local template directory to deploy from")
	cmd.Flags().String("template-repo", "", "Git repository to use as the template")
	cmd.Flags().String("template-branch", "", "Branch to clone from --template-repo")
	cmd.Flags().Bool("force", false, "Redeploy even if the site already exists")
	cmd.Flags().Bool("no-rollback", false, "Keep partially provisioned resources on failure")
	return cmd
}

func runDeploy(cmd *cobra.Command, domainName string) error {
	config := app.GetConfig()
	if err := config.ValidateForDeploy(); err != nil {
		return err
	}

	slugName, _ := cmd.Flags().GetString("slug")
	templatePath, _ := cmd.Flags().GetString("template")
	templateRepo, _ := cmd.Flags().GetString("template-repo")
	templateBranch, _ := cmd.Flags().GetString("template-branch")
	force, _ := cmd.Flags().GetBool("force")
	noRollback, _ := cmd.Flags().GetBool("no-rollback")

	cfg := domain.NewDeployConfig(domainName, domain.TemplateSource{
		Path:    templatePath,
		RepoURL: templateRepo,
		Branch:  templateBranch,
	})
	cfg.Slug = slugName
	cfg.ServerIP = config.ServerIP
	cfg.WildcardDomain = config.WildcardDomain
	cfg.Force = force
	cfg.RollbackOnFailure = !noRollback

	if err := output.FprintPlain(cmd, "Deploying '%s' from %s", domainName, cfg.Template.Describe()); err != nil {
		return err
	}

	result, err := app.GetSiteManager().Deploy(cmd.Context(), cfg)
	if err != nil {
		if deployErr, ok := domain.AsDeployError(err); ok {
			if printErr := output.FprintError(cmd, "Deployment failed during %s: %s", deployErr.Phase, deployErr.Message()); printErr != nil {
				return printErr
			}
			if !cfg.RollbackOnFailure {
				if printErr := output.FprintWarning(cmd, "Rollback disabled: partially provisioned resources were kept"); printErr != nil {
					return printErr
				}
			}
		}
		return fmt.Errorf("deploying %s: %w", domainName, err)
	}

	if err := output.FprintSuccess(cmd, "Site '%s' deployed", result.Domain); err != nil {
		return err
	}
	if err := output.FprintPlain(cmd, "Port: %d", result.Port); err != nil {
		return err
	}
	if err := output.FprintPlain(cmd, "Service: %s", result.ServiceName); err != nil {
		return err
	}

	return nil
}
