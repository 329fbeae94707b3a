package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/webalive/deployer/domain"
)

// TeardownCall records one Teardown invocation.
type TeardownCall struct {
	Domain  string
	Options domain.TeardownOptions
}

// MockSiteManager implements deploy.SiteManager for testing. Invocations
// are recorded; the Func fields, when set, control the outcome.
type MockSiteManager struct {
	DeployFunc   func(ctx context.Context, cfg domain.DeployConfig) (*domain.DeployResult, error)
	TeardownFunc func(ctx context.Context, domainName string, opts domain.TeardownOptions) error

	mu        sync.Mutex
	Deploys   []domain.DeployConfig
	Teardowns []TeardownCall
}

func (m *MockSiteManager) Deploy(ctx context.Context, cfg domain.DeployConfig) (*domain.DeployResult, error) {
	m.mu.Lock()
	m.Deploys = append(m.Deploys, cfg)
	m.mu.Unlock()
	if m.DeployFunc != nil {
		return m.DeployFunc(ctx, cfg)
	}
	slugName := cfg.Slug
	if slugName == "" {
		slugName = domain.DeriveSlug(cfg.Domain)
	}
	return &domain.DeployResult{
		Domain:       cfg.Domain,
		Port:         3333,
		ServiceName:  "webalive-site@" + slugName + ".service",
		Success:      true,
		DeploymentID: uuid.New(),
	}, nil
}

func (m *MockSiteManager) Teardown(ctx context.Context, domainName string, opts domain.TeardownOptions) error {
	m.mu.Lock()
	m.Teardowns = append(m.Teardowns, TeardownCall{Domain: domainName, Options: opts})
	m.mu.Unlock()
	if m.TeardownFunc != nil {
		return m.TeardownFunc(ctx, domainName, opts)
	}
	return nil
}
