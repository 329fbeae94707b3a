package deploy

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webalive/deployer/app"
	"github.com/webalive/deployer/config"
	"github.com/webalive/deployer/domain"
	"github.com/webalive/deployer/testing/mocks"
)

func deployTestConfig() *config.Config {
	return &config.Config{
		ServerIP:       "203.0.113.10",
		WildcardDomain: "alive.example",
	}
}

func runDeployCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCmdDeploy()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestNewCmdDeploy_Success(t *testing.T) {
	manager := &mocks.MockSiteManager{}
	app.SetSiteManagerForTesting(manager)
	app.SetConfigForTesting(deployTestConfig())

	out, err := runDeployCmd(t, "notion.alive.example", "--template", "/srv/templates/bun-starter")
	require.NoError(t, err)

	require.Len(t, manager.Deploys, 1)
	cfg := manager.Deploys[0]
	assert.Equal(t, "notion.alive.example", cfg.Domain)
	assert.Equal(t, "", cfg.Slug)
	assert.Equal(t, "/srv/templates/bun-starter", cfg.Template.Path)
	assert.Equal(t, "203.0.113.10", cfg.ServerIP)
	assert.Equal(t, "alive.example", cfg.WildcardDomain)
	assert.True(t, cfg.RollbackOnFailure)
	assert.False(t, cfg.Force)

	assert.Contains(t, out, "Site 'notion.alive.example' deployed")
	assert.Contains(t, out, "Port: 3333")
	assert.Contains(t, out, "Service: webalive-site@notion-alive-example.service")
}

func TestNewCmdDeploy_FlagsCarryThrough(t *testing.T) {
	manager := &mocks.MockSiteManager{}
	app.SetSiteManagerForTesting(manager)
	app.SetConfigForTesting(deployTestConfig())

	_, err := runDeployCmd(t,
		"notion.alive.example",
		"--slug", "notion-v2",
		"--template-repo", "https://github.com/webalive/bun-starter.git",
		"--template-branch", "main",
		"--force",
		"--no-rollback",
	)
	require.NoError(t, err)

	require.Len(t, manager.Deploys, 1)
	cfg := manager.Deploys[0]
	assert.Equal(t, "notion-v2", cfg.Slug)
	assert.Equal(t, "https://github.com/webalive/bun-starter.git", cfg.Template.RepoURL)
	assert.Equal(t, "main", cfg.Template.Branch)
	assert.True(t, cfg.Force)
	assert.False(t, cfg.RollbackOnFailure)
}

func TestNewCmdDeploy_TypedFailureIsReported(t *testing.T) {
	manager := &mocks.MockSiteManager{
		DeployFunc: func(ctx context.Context, cfg domain.DeployConfig) (*domain.DeployResult, error) {
			return nil, domain.NewDNSValidationError(cfg.Domain, "resolves to 198.51.100.7, expected 203.0.113.10", nil)
		},
	}
	app.SetSiteManagerForTesting(manager)
	app.SetConfigForTesting(deployTestConfig())

	out, err := runDeployCmd(t, "notion.alive.example")
	require.Error(t, err)

	deployErr, ok := domain.AsDeployError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeDNSValidationFailed, deployErr.Code)

	assert.Contains(t, out, "Deployment failed during dns")
	assert.Contains(t, out, "resolves to 198.51.100.7")
	assert.NotContains(t, out, "Rollback disabled")
}

func TestNewCmdDeploy_NoRollbackWarning(t *testing.T) {
	manager := &mocks.MockSiteManager{
		DeployFunc: func(ctx context.Context, cfg domain.DeployConfig) (*domain.DeployResult, error) {
			return nil, domain.NewBuildError(cfg.Domain, "bun install exited 1", nil)
		},
	}
	app.SetSiteManagerForTesting(manager)
	app.SetConfigForTesting(deployTestConfig())

	out, err := runDeployCmd(t, "notion.alive.example", "--no-rollback")
	require.Error(t, err)
	assert.Contains(t, out, "Rollback disabled: partially provisioned resources were kept")
}

func TestNewCmdDeploy_RequiresDeployConfig(t *testing.T) {
	manager := &mocks.MockSiteManager{}
	app.SetSiteManagerForTesting(manager)
	app.SetConfigForTesting(&config.Config{WildcardDomain: "alive.example"})

	_, err := runDeployCmd(t, "notion.alive.example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server IP is required")
	assert.Empty(t, manager.Deploys)
}

func TestNewCmdDeploy_RequiresDomainArgument(t *testing.T) {
	manager := &mocks.MockSiteManager{}
	app.SetSiteManagerForTesting(manager)
	app.SetConfigForTesting(deployTestConfig())

	_, err := runDeployCmd(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arg")
	assert.Empty(t, manager.Deploys)
}
