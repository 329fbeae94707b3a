// Package teardown implements the command removing a deployed site.
package teardown

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/webalive/deployer/app"
	"github.com/webalive/deployer/cmd/output"
	"github.com/webalive/deployer/domain"
)

func NewCmdTeardown() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teardown <domain>",
		Short: "Tear down a deployed site",
		Long: `Tear down a site deployed for the given domain.

The site's route is removed from Caddy and its service is stopped and
disabled. Unless kept via flags, the site's system user, home directory
and port assignment are removed as well.

The removed data cannot be recovered.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTeardown(cmd, args[0])
		},
	}

	cmd.Flags().BoolP("confirm", "y", false, "Skip confirmation prompt and proceed with teardown")
	cmd.Flags().Bool("keep-user", false, "Keep the site's system user")
	cmd.Flags().Bool("keep-files", false, "Keep the site's home directory")
	cmd.Flags().Bool("keep-port", false, "Keep the site's port assignment")
	return cmd
}

func runTeardown(cmd *cobra.Command, domainName string) error {
	skipConfirmation, _ := cmd.Flags().GetBool("confirm")
	keepUser, _ := cmd.Flags().GetBool("keep-user")
	keepFiles, _ := cmd.Flags().GetBool("keep-files")
	keepPort, _ := cmd.Flags().GetBool("keep-port")

	site, err := app.GetSiteRepository().FindByDomain(domainName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("site not found: %s", domainName)
		}
		return fmt.Errorf("looking up site %s: %w", domainName, err)
	}

	opts := domain.FullTeardown()
	opts.RemoveUser = !keepUser
	opts.RemoveFiles = !keepFiles
	opts.RemovePort = !keepPort

	if err := output.FprintWarning(cmd, "\nWARNING: You are about to tear down the following site:\n"); err != nil {
		return err
	}

	siteInfo, err := output.PrintSiteDetails(site, true)
	if err != nil {
		return fmt.Errorf("formatting site details: %w", err)
	}
	if err := output.FprintPlain(cmd, "%s", siteInfo); err != nil {
		return err
	}

	if err := output.FprintWarning(cmd, "This will permanently remove:"); err != nil {
		return err
	}
	if err := output.FprintPlain(cmd, "Caddy route for %s", site.Domain); err != nil {
		return err
	}
	if err := output.FprintPlain(cmd, "Service %s", site.ServiceName); err != nil {
		return err
	}
	if opts.RemoveFiles {
		if err := output.FprintPlain(cmd, "Site directory and all its data"); err != nil {
			return err
		}
	}
	if opts.RemoveUser {
		if err := output.FprintPlain(cmd, "System user %s", site.Slug); err != nil {
			return err
		}
	}
	if opts.RemovePort {
		if err := output.FprintPlain(cmd, "Port assignment %d", site.Port); err != nil {
			return err
		}
	}

	// Confirmation prompt (unless skipped)
	if !skipConfirmation {
		if !promptConfirmation(cmd, site.Domain) {
			return output.FprintPlain(cmd, "Teardown cancelled.")
		}
	}

	if err := app.GetSiteManager().Teardown(cmd.Context(), domainName, opts); err != nil {
		return fmt.Errorf("tearing down %s: %w", domainName, err)
	}

	return output.FprintSuccess(cmd, "Site '%s' torn down", site.Domain)
}

// promptConfirmation asks the user to confirm teardown by typing the domain
func promptConfirmation(cmd *cobra.Command, domainName string) bool {
	if err := output.FprintWarning(cmd, "Type the domain '%s' to confirm teardown: ", domainName); err != nil {
		return false
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	input, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	return strings.TrimSpace(input) == domainName
}
