package deploy

import (
	"strings"

	"github.com/webalive/deployer/domain"
)

// maxSlugLength is the useradd username limit; the slug doubles as the
// site's system user name.
const maxSlugLength = 32

const maxDomainLength = 253

// validateDeployConfig is the pre-flight gate: it rejects structurally bad
// input before any phase runs, so failures here never provision anything
// and never need rollback.
func validateDeployConfig(cfg *domain.DeployConfig) *domain.DeployError {
	if err := validateDomainName(cfg.Domain); err != nil {
		return err
	}

	if cfg.ServerIP == "" {
		return domain.NewInvalidConfigError(cfg.Domain, "server IP is not configured")
	}
	if cfg.WildcardDomain == "" {
		return domain.NewInvalidConfigError(cfg.Domain, "wildcard domain is not configured")
	}
	if cfg.Template.IsZero() {
		return domain.NewInvalidConfigError(cfg.Domain, "template source is required")
	}
	if cfg.Template.Path != "" && cfg.Template.RepoURL != "" {
		return domain.NewInvalidConfigError(cfg.Domain, "template path and repository are mutually exclusive")
	}

	if len(cfg.Slug) > maxSlugLength {
		return domain.NewInvalidDomainError(cfg.Domain, "derived system user name exceeds 32 characters")
	}

	return nil
}

// validateDomainName enforces the strict hostname shape deployable domains
// must have. Path traversal gets its own code: the domain feeds into
// filesystem paths, and a traversal attempt is worth distinguishing from a
// typo in diagnostics.
func validateDomainName(domainName string) *domain.DeployError {
	if domainName == "" {
		return domain.NewInvalidDomainError(domainName, "domain is empty")
	}
	if strings.Contains(domainName, "..") {
		return domain.NewPathTraversalError(domainName)
	}
	if strings.HasPrefix(domainName, "/") || strings.HasPrefix(domainName, ".") {
		return domain.NewPathTraversalError(domainName)
	}
	if len(domainName) > maxDomainLength {
		return domain.NewInvalidDomainError(domainName, "domain exceeds 253 characters")
	}
	if !strings.Contains(domainName, ".") {
		return domain.NewInvalidDomainError(domainName, "domain must contain at least one dot")
	}

	for _, label := range strings.Split(domainName, ".") {
		if err := validateLabel(domainName, label); err != nil {
			return err
		}
	}
	return nil
}

func validateLabel(domainName, label string) *domain.DeployError {
	if label == "" {
		return domain.NewInvalidDomainError(domainName, "domain contains an empty label")
	}
	if len(label) > 63 {
		return domain.NewInvalidDomainError(domainName, "domain label exceeds 63 characters")
	}
	if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
		return domain.NewInvalidDomainError(domainName, "domain label starts or ends with a hyphen")
	}
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return domain.NewInvalidDomainError(domainName, "domain contains characters outside [a-z0-9.-]")
		}
	}
	return nil
}
