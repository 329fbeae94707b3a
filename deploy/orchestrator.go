// Package deploy implements the site deployment pipeline: DNS validation,
// port allocation, OS identity, filesystem tree, build, supervised service
// and reverse proxy, executed in strict order with full rollback on any
// failure.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/webalive/deployer/caddy"
	"github.com/webalive/deployer/config"
	"github.com/webalive/deployer/domain"
	"github.com/webalive/deployer/reporting"
	"github.com/webalive/deployer/repository"
)

// Deps bundles the stores and phase executors one orchestrator drives.
// Everything is injected so tests can substitute fakes and several
// orchestrator instances can coexist in one process.
type Deps struct {
	Sites       repository.SiteRepository
	Deployments repository.DeploymentRepository
	DNS         DomainValidator
	Ports       PortService
	Users       UserService
	Templates   TemplateService
	Filesystem  FilesystemService
	Builder     BuildService
	Services    ServiceManager
	Proxy       ProxyService
	Reporter    *reporting.Reporter
}

// Orchestrator sequences the deployment phases for one site at a time.
// Concurrent deployments of different domains are safe; serializing
// deployments of the same domain is the caller's job.
type Orchestrator struct {
	config      *config.Config
	sites       repository.SiteRepository
	deployments repository.DeploymentRepository
	dns         DomainValidator
	ports       PortService
	users       UserService
	templates   TemplateService
	filesystem  FilesystemService
	builder     BuildService
	services    ServiceManager
	proxy       ProxyService
	reporter    *reporting.Reporter
}

func NewOrchestrator(cfg *config.Config, deps Deps) *Orchestrator {
	return &Orchestrator{
		config:      cfg,
		sites:       deps.Sites,
		deployments: deps.Deployments,
		dns:         deps.DNS,
		ports:       deps.Ports,
		users:       deps.Users,
		templates:   deps.Templates,
		filesystem:  deps.Filesystem,
		builder:     deps.Builder,
		services:    deps.Services,
		proxy:       deps.Proxy,
		reporter:    deps.Reporter,
	}
}

// deployState carries the values phases produce for later phases: the
// allocated port, the site home, the staged template.
type deployState struct {
	cfg     *domain.DeployConfig
	homeDir string
	port    int
}

// phaseStep pairs a pipeline phase with its executor. The forward order
// lives in this one table; rollback is a single full teardown, so adding a
// phase cannot desynchronize forward and backward logic.
type phaseStep struct {
	phase domain.Phase
	run   func(ctx context.Context, st *deployState) error
}

func (o *Orchestrator) phases() []phaseStep {
	return []phaseStep{
		{domain.PhaseDNS, o.runDNS},
		{domain.PhasePort, o.runPort},
		{domain.PhaseUser, o.runUser},
		{domain.PhaseFilesystem, o.runFilesystem},
		{domain.PhaseBuild, o.runBuild},
		{domain.PhaseService, o.runService},
		{domain.PhaseCaddy, o.runProxy},
	}
}

// Deploy provisions cfg.Domain end to end and returns the outcome. On any
// phase failure the error is typed with a stable code and, unless rollback
// is disabled, every provisioned resource is torn down before returning.
// The returned result is populated in both outcomes.
func (o *Orchestrator) Deploy(ctx context.Context, cfg domain.DeployConfig) (*domain.DeployResult, error) {
	if cfg.Slug == "" {
		cfg.Slug = domain.DeriveSlug(cfg.Domain)
	}

	result := &domain.DeployResult{Domain: cfg.Domain}

	// Pre-flight: structural validation runs before anything is looked up
	// or provisioned, so these failures never need rollback.
	if derr := validateDeployConfig(&cfg); derr != nil {
		result.FailedPhase = derr.Phase
		result.Err = derr
		return result, derr
	}

	site, err := o.prepareSite(&cfg)
	if err != nil {
		result.FailedPhase = domain.PhaseOf(err)
		result.Err = err
		return result, err
	}

	deployment := domain.NewDeployment(site.ID)
	if err := o.deployments.Create(&deployment); err != nil {
		err = fmt.Errorf("recording deployment: %w", err)
		result.Err = err
		return result, err
	}
	result.DeploymentID = deployment.ID

	slog.Info("Deployment started",
		"domain", cfg.Domain,
		"slug", cfg.Slug,
		"deployment_id", deployment.ID,
		"template", cfg.Template.Describe())

	st := &deployState{
		cfg:     &cfg,
		homeDir: filepath.Join(o.config.HomeRoot, cfg.Slug),
	}

	for _, step := range o.phases() {
		// Cancellation is cooperative and checked between phases; a phase
		// in flight (a build subprocess, say) finishes or fails on its own.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return o.failDeployment(ctx, site, &deployment, st, result,
				domain.NewDeployCancelledError(cfg.Domain, ctxErr))
		}
		if err := step.run(ctx, st); err != nil {
			return o.failDeployment(ctx, site, &deployment, st, result, err)
		}
	}

	return o.completeDeployment(site, &deployment, st, result)
}

// prepareSite records the deployment target: a new site row for a first
// deployment, or the existing row refreshed for a redeploy. An existing
// site that is running or mid-deployment is rejected unless Force is set.
func (o *Orchestrator) prepareSite(cfg *domain.DeployConfig) (*domain.Site, error) {
	site, err := o.sites.FindByDomain(cfg.Domain)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("looking up site %s: %w", cfg.Domain, err)
		}
		created := domain.NewSite(cfg.Domain, cfg.Slug, cfg.Template)
		return o.sites.Create(&created)
	}

	if !cfg.Force &&
		(site.Status == domain.SiteStatusRunning || site.Status == domain.SiteStatusDeploying) {
		return nil, domain.NewSiteExistsError(cfg.Domain)
	}

	// The recorded slug stays authoritative across redeploys: the OS user,
	// home tree and unit name all derive from it.
	if site.Slug != "" && site.Slug != cfg.Slug {
		slog.Debug("Reusing recorded slug", "domain", cfg.Domain, "slug", site.Slug)
	}
	if site.Slug != "" {
		cfg.Slug = site.Slug
	} else {
		site.Slug = cfg.Slug
	}

	site.Status = domain.SiteStatusDeploying
	site.Template = cfg.Template
	if err := o.sites.Update(site); err != nil {
		return nil, fmt.Errorf("updating site %s: %w", cfg.Domain, err)
	}
	return site, nil
}

func (o *Orchestrator) runDNS(ctx context.Context, st *deployState) error {
	result, err := o.dns.Validate(ctx, st.cfg.Domain)
	if err != nil {
		return domain.NewDNSValidationError(st.cfg.Domain, "lookup failed", err)
	}
	if !result.Valid {
		return domain.NewDNSValidationError(st.cfg.Domain, result.Message, nil)
	}
	slog.Debug("DNS validated", "domain", st.cfg.Domain, "detail", result.Message)
	return nil
}

func (o *Orchestrator) runPort(ctx context.Context, st *deployState) error {
	port, isNew, err := o.ports.Allocate(st.cfg.Domain)
	if err != nil {
		return err
	}
	st.port = port
	if !isNew {
		slog.Debug("Reusing existing port assignment", "domain", st.cfg.Domain, "port", port)
	}
	return nil
}

func (o *Orchestrator) runUser(ctx context.Context, st *deployState) error {
	if err := o.users.EnsureUser(ctx, st.cfg.Slug, st.homeDir); err != nil {
		return domain.NewUserCreationError(st.cfg.Domain, st.cfg.Slug, err)
	}
	return nil
}

func (o *Orchestrator) runFilesystem(ctx context.Context, st *deployState) error {
	templateDir, cleanup, err := o.templates.Resolve(ctx, st.cfg.Template)
	if err != nil {
		return domain.NewTemplateFetchError(st.cfg.Domain, st.cfg.Template.Describe(), err)
	}
	defer cleanup()

	if err := o.filesystem.Provision(ctx, st.cfg.Slug, st.homeDir, templateDir); err != nil {
		return domain.NewFilesystemError(st.cfg.Domain, "provisioning site tree", err)
	}
	return nil
}

func (o *Orchestrator) runBuild(ctx context.Context, st *deployState) error {
	err := o.builder.Build(ctx, BuildParams{
		Username: st.cfg.Slug,
		HomeDir:  st.homeDir,
		Domain:   st.cfg.Domain,
		Slug:     st.cfg.Slug,
		Port:     st.port,
	})
	if err != nil {
		if _, ok := domain.AsDeployError(err); ok {
			return err
		}
		return domain.NewBuildError(st.cfg.Domain, "", err)
	}
	return nil
}

func (o *Orchestrator) runService(ctx context.Context, st *deployState) error {
	unit := o.services.UnitName(st.cfg.Slug)
	if err := o.services.EnsureTemplateUnit(ctx); err != nil {
		return domain.NewServiceStartError(st.cfg.Domain, unit, err)
	}
	if err := o.services.Start(ctx, st.cfg.Slug); err != nil {
		return domain.NewServiceStartError(st.cfg.Domain, unit, err)
	}
	return nil
}

func (o *Orchestrator) runProxy(ctx context.Context, st *deployState) error {
	err := o.proxy.Upsert(ctx, st.cfg.Domain, st.port)
	if err == nil {
		return nil
	}
	// Lock contention is retryable and reported distinctly from a broken
	// or unwritable configuration.
	if errors.Is(err, caddy.ErrLockTimeout) {
		return domain.NewCaddyLockTimeoutError(st.cfg.Domain, err)
	}
	return domain.NewCaddyConfigError(st.cfg.Domain, err)
}

// failDeployment finalizes a failed deployment: it classifies the error,
// runs the rollback when enabled, and updates the site and deployment
// records. The original phase error is always what the caller receives;
// rollback problems are logged and reported, never returned.
func (o *Orchestrator) failDeployment(
	ctx context.Context,
	site *domain.Site,
	deployment *domain.Deployment,
	st *deployState,
	result *domain.DeployResult,
	cause error,
) (*domain.DeployResult, error) {
	phase := domain.PhaseOf(cause)
	result.FailedPhase = phase
	result.Err = cause
	result.Port = st.port

	slog.Error("Deployment failed",
		"layer", "deploy",
		"operation", "deploy_site",
		"domain", st.cfg.Domain,
		"phase", phase.String(),
		"error", cause)
	o.reporter.CaptureError(cause, "deployment of %s failed in phase %s", st.cfg.Domain, phase)

	status := domain.DeploymentStatusFailed
	if st.cfg.RollbackOnFailure {
		o.rollback(ctx, st)
		status = domain.DeploymentStatusRolledBack
	}

	o.finishDeployment(deployment, status, phase, cause)

	site.Status = domain.SiteStatusFailed
	if err := o.sites.Update(site); err != nil {
		slog.Error("Failed to update site status after failure",
			"layer", "deploy",
			"operation", "deploy_site",
			"domain", site.Domain,
			"error", err)
	}

	return result, cause
}

// rollback performs the full teardown that restores a clean slate: proxy
// rule, service, files, user and port all go, regardless of which phase
// failed. Errors here are visible to operators but never mask the phase
// error already being reported.
func (o *Orchestrator) rollback(ctx context.Context, st *deployState) {
	// Rollback still runs when the deployment itself was cancelled.
	ctx = context.WithoutCancel(ctx)

	slog.Info("Rolling back deployment", "domain", st.cfg.Domain, "slug", st.cfg.Slug)
	if err := o.teardownResources(ctx, st.cfg.Domain, st.cfg.Slug, domain.FullTeardown()); err != nil {
		slog.Error("Rollback incomplete",
			"layer", "deploy",
			"operation", "rollback",
			"domain", st.cfg.Domain,
			"error", err)
		o.reporter.CaptureError(err, "rollback of %s incomplete", st.cfg.Domain)
	}
}

// completeDeployment records success: the site is running on its port
// under its unit name. The resources are healthy at this point, so
// bookkeeping failures surface as errors without triggering rollback.
func (o *Orchestrator) completeDeployment(
	site *domain.Site,
	deployment *domain.Deployment,
	st *deployState,
	result *domain.DeployResult,
) (*domain.DeployResult, error) {
	unit := o.services.UnitName(st.cfg.Slug)

	result.Port = st.port
	result.ServiceName = unit
	result.Success = true

	o.finishDeployment(deployment, domain.DeploymentStatusCompleted, domain.PhaseUnknown, nil)

	site.Port = st.port
	site.ServiceName = unit
	site.Status = domain.SiteStatusRunning
	if err := o.sites.Update(site); err != nil {
		return result, fmt.Errorf("updating site %s after deployment: %w", site.Domain, err)
	}

	slog.Info("Deployment succeeded",
		"domain", site.Domain,
		"port", st.port,
		"service", unit,
		"deployment_id", deployment.ID)
	return result, nil
}

func (o *Orchestrator) finishDeployment(
	deployment *domain.Deployment,
	status domain.DeploymentStatus,
	phase domain.Phase,
	cause error,
) {
	now := time.Now()
	deployment.Status = status
	deployment.FinishedAt = &now
	if cause != nil {
		deployment.FailedPhase = phase
		deployment.Error = cause.Error()
	}
	if err := o.deployments.Update(deployment); err != nil {
		slog.Error("Failed to update deployment record",
			"layer", "deploy",
			"operation", "finish_deployment",
			"deployment_id", deployment.ID,
			"error", err)
	}
}
