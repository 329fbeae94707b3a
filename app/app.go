// Package app provides the main application context for the deployer,
// managing the database and services.
package app

import (
	"os"

	"gorm.io/gorm"

	"github.com/webalive/deployer/caddy"
	"github.com/webalive/deployer/config"
	"github.com/webalive/deployer/db"
	"github.com/webalive/deployer/deploy"
	"github.com/webalive/deployer/encryption"
	"github.com/webalive/deployer/git"
	"github.com/webalive/deployer/reporting"
	"github.com/webalive/deployer/repository"
	"github.com/webalive/deployer/runner"
	"github.com/webalive/deployer/systemd"
	"github.com/webalive/deployer/template"
	"github.com/webalive/deployer/watcher"
)

var (
	database       *gorm.DB
	appConfig      *config.Config
	siteManager    deploy.SiteManager
	siteRepo       repository.SiteRepository
	deploymentRepo repository.DeploymentRepository
	watcherService *watcher.WatcherService
	reporter       *reporting.Reporter
)

// InitializeWithConfig initializes the app with a pre-configured Config
func InitializeWithConfig(cfg *config.Config) error {
	var err error

	// Store the provided config
	appConfig = cfg

	// Ensure required directories exist
	if err := os.MkdirAll(appConfig.DataDir, 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(appConfig.TmpDir, 0755); err != nil {
		return err
	}

	// Initialize database using config
	database, err = db.InitDB(appConfig.DatabasePath)
	if err != nil {
		return err
	}

	// Run database migrations
	if err := db.AutoMigrateAll(database); err != nil {
		return err
	}

	// Initialize encryption service
	encryptionSvc, err := encryption.NewEncryptionService(appConfig.EncryptionKey)
	if err != nil {
		return err
	}

	// Initialize repositories
	siteRepo = repository.NewSiteRepository(database, encryptionSvc)
	deploymentRepo = repository.NewDeploymentRepository(database)
	portRepo := repository.NewPortAssignmentRepository(database)

	reporter, err = reporting.NewReporter(reporting.Options{DSN: appConfig.SentryDSN})
	if err != nil {
		return err
	}

	// Phase executors share one command runner
	run := runner.NewExecRunner()
	gitService := git.NewGitService(appConfig)
	serviceManager := systemd.NewManager(appConfig, run)
	portMapExporter := caddy.NewPortMapExporter(appConfig, portRepo)

	// Initialize the orchestrator with dependency injection
	siteManager = deploy.NewOrchestrator(appConfig, deploy.Deps{
		Sites:       siteRepo,
		Deployments: deploymentRepo,
		DNS:         deploy.NewDNSValidator(appConfig),
		Ports:       deploy.NewPortAllocator(appConfig, portRepo),
		Users:       deploy.NewSystemUserManager(run),
		Templates:   template.NewResolver(gitService, appConfig),
		Filesystem:  deploy.NewFilesystemProvisioner(run),
		Builder:     deploy.NewBuildExecutor(appConfig, run),
		Services:    serviceManager,
		Proxy:       caddy.NewConfigurator(appConfig, run, portMapExporter),
		Reporter:    reporter,
	})

	watcherService = watcher.NewWatcherService(siteRepo, serviceManager, appConfig.PollInterval)
	return nil
}

func GetSiteManager() deploy.SiteManager {
	return siteManager
}

func GetSiteRepository() repository.SiteRepository {
	return siteRepo
}

func GetDeploymentRepository() repository.DeploymentRepository {
	return deploymentRepo
}

func GetWatcherService() *watcher.WatcherService {
	return watcherService
}

func GetConfig() *config.Config {
	return appConfig
}

func GetReporter() *reporting.Reporter {
	return reporter
}

// SetSiteManagerForTesting allows overriding the site manager for testing purposes
func SetSiteManagerForTesting(m deploy.SiteManager) {
	siteManager = m
}

// SetSiteRepositoryForTesting allows overriding the site repository for testing purposes
func SetSiteRepositoryForTesting(r repository.SiteRepository) {
	siteRepo = r
}

// SetDeploymentRepositoryForTesting allows overriding the deployment repository for testing purposes
func SetDeploymentRepositoryForTesting(r repository.DeploymentRepository) {
	deploymentRepo = r
}

// SetConfigForTesting allows overriding the config for testing purposes
func SetConfigForTesting(cfg *config.Config) {
	appConfig = cfg
}
