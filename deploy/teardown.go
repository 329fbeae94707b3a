package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"gorm.io/gorm"

	"github.com/webalive/deployer/domain"
)

// Teardown dismantles a deployed site outside the failure path. The proxy
// rule is always removed and the service always stopped; opts gates the
// destructive remainder (files, user, port). Step failures are collected
// rather than short-circuiting, so one stuck resource does not leave the
// rest behind, and the joined error tells the operator exactly which
// cleanup is incomplete.
func (o *Orchestrator) Teardown(ctx context.Context, domainName string, opts domain.TeardownOptions) error {
	slugName := domain.DeriveSlug(domainName)

	var site *domain.Site
	found, err := o.sites.FindByDomain(domainName)
	switch {
	case err == nil:
		site = found
		// The recorded slug wins: it is what the user, home and unit were
		// actually created from.
		if site.Slug != "" {
			slugName = site.Slug
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// No row, e.g. a site from before the registry existed. Teardown
		// proceeds with the derived slug.
		slog.Debug("No site record, deriving slug", "domain", domainName, "slug", slugName)
	default:
		return fmt.Errorf("looking up site %s: %w", domainName, err)
	}

	slog.Info("Tearing down site",
		"domain", domainName,
		"slug", slugName,
		"remove_files", opts.RemoveFiles,
		"remove_user", opts.RemoveUser,
		"remove_port", opts.RemovePort)

	if err := o.teardownResources(ctx, domainName, slugName, opts); err != nil {
		o.reporter.CaptureError(err, "teardown of %s incomplete", domainName)
		return err
	}

	if site != nil {
		if opts.RemoveUser && opts.RemoveFiles && opts.RemovePort {
			site.Status = domain.SiteStatusRemoved
		} else {
			site.Status = domain.SiteStatusStopped
		}
		if err := o.sites.Update(site); err != nil {
			return fmt.Errorf("updating site %s after teardown: %w", domainName, err)
		}
	}

	slog.Info("Teardown finished", "domain", domainName)
	return nil
}

// teardownResources reverses the provisioning phases in reverse order:
// proxy rule, service, files, user, port. Every step tolerates resources
// that were never provisioned or are already gone, which is what lets one
// routine serve both rollback (arbitrary partial state) and explicit
// teardown.
func (o *Orchestrator) teardownResources(
	ctx context.Context,
	domainName, slugName string,
	opts domain.TeardownOptions,
) error {
	homeDir := filepath.Join(o.config.HomeRoot, slugName)
	var errs []error

	// Proxy first: stop routing traffic at a site being dismantled.
	if err := o.proxy.Remove(ctx, domainName); err != nil {
		errs = append(errs, fmt.Errorf("removing proxy rule: %w", err))
	}

	if err := o.services.Stop(ctx, slugName); err != nil {
		errs = append(errs, fmt.Errorf("stopping service: %w", err))
	}
	if err := o.services.Disable(ctx, slugName); err != nil {
		errs = append(errs, fmt.Errorf("disabling service: %w", err))
	}

	if opts.RemoveFiles {
		if err := o.filesystem.Remove(homeDir); err != nil {
			errs = append(errs, fmt.Errorf("removing site tree: %w", err))
		}
	}
	if opts.RemoveUser {
		if err := o.users.RemoveUser(ctx, slugName); err != nil {
			errs = append(errs, fmt.Errorf("removing system user: %w", err))
		}
	}
	if opts.RemovePort {
		if err := o.ports.Release(domainName); err != nil {
			errs = append(errs, fmt.Errorf("releasing port: %w", err))
		}
	}

	return errors.Join(errs...)
}
