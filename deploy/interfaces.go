package deploy

import (
	"context"

	"github.com/webalive/deployer/domain"
)

// SiteManager is the deployment surface the CLI and HTTP layers drive.
// *Orchestrator is the production implementation.
type SiteManager interface {
	Deploy(ctx context.Context, cfg domain.DeployConfig) (*domain.DeployResult, error)
	Teardown(ctx context.Context, domainName string, opts domain.TeardownOptions) error
}

// The orchestrator sequences phases through these contracts rather than
// concrete executors, so its rollback and error mapping are testable
// without touching DNS, the OS user database, systemd or Caddy.

// DomainValidator checks that a hostname routes to this platform.
type DomainValidator interface {
	Validate(ctx context.Context, domainName string) (DNSResult, error)
}

// PortService hands out and releases durable port assignments.
type PortService interface {
	Allocate(domainName string) (port int, isNew bool, err error)
	Release(domainName string) error
}

// UserService manages per-site OS identities.
type UserService interface {
	EnsureUser(ctx context.Context, username, homeDir string) error
	RemoveUser(ctx context.Context, username string) error
}

// TemplateService stages a template source into a local directory. The
// returned cleanup releases staging space and is safe to call exactly once.
type TemplateService interface {
	Resolve(ctx context.Context, source domain.TemplateSource) (dir string, cleanup func(), err error)
}

// FilesystemService materializes and removes site trees.
type FilesystemService interface {
	Provision(ctx context.Context, username, targetDir, templateDir string) error
	Remove(targetDir string) error
}

// BuildService writes the runtime env file and builds the site.
type BuildService interface {
	Build(ctx context.Context, params BuildParams) error
}

// ServiceManager drives the per-site supervised process unit.
type ServiceManager interface {
	UnitName(slug string) string
	EnsureTemplateUnit(ctx context.Context) error
	Start(ctx context.Context, slug string) error
	Stop(ctx context.Context, slug string) error
	Disable(ctx context.Context, slug string) error
	IsActive(ctx context.Context, slug string) (bool, error)
}

// ProxyService maintains the reverse-proxy routing rules.
type ProxyService interface {
	Upsert(ctx context.Context, domainName string, port int) error
	Remove(ctx context.Context, domainName string) error
}
