package deploy

import (
	"context"
	"sync"

	"github.com/webalive/deployer/domain"
)

// callLog records executor invocations across mocks so tests can assert
// the order rollback visits resources in.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) record(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) index(call string) int {
	for i, c := range l.all() {
		if c == call {
			return i
		}
	}
	return -1
}

func (l *callLog) contains(call string) bool {
	return l.index(call) >= 0
}

func (l *callLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

// MockDNSValidator for testing
type MockDNSValidator struct {
	log          *callLog
	ValidateFunc func(ctx context.Context, domainName string) (DNSResult, error)
}

func (m *MockDNSValidator) Validate(ctx context.Context, domainName string) (DNSResult, error) {
	if m.log != nil {
		m.log.record("dns.validate")
	}
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, domainName)
	}
	return DNSResult{Valid: true, Message: "ok"}, nil
}

// MockUserService for testing
type MockUserService struct {
	log            *callLog
	EnsureUserFunc func(ctx context.Context, username, homeDir string) error
	RemoveUserFunc func(ctx context.Context, username string) error

	EnsuredUsers []string
	RemovedUsers []string
}

func (m *MockUserService) EnsureUser(ctx context.Context, username, homeDir string) error {
	if m.log != nil {
		m.log.record("users.ensure")
	}
	m.EnsuredUsers = append(m.EnsuredUsers, username)
	if m.EnsureUserFunc != nil {
		return m.EnsureUserFunc(ctx, username, homeDir)
	}
	return nil
}

func (m *MockUserService) RemoveUser(ctx context.Context, username string) error {
	if m.log != nil {
		m.log.record("users.remove")
	}
	m.RemovedUsers = append(m.RemovedUsers, username)
	if m.RemoveUserFunc != nil {
		return m.RemoveUserFunc(ctx, username)
	}
	return nil
}

// MockTemplateService for testing
type MockTemplateService struct {
	log         *callLog
	ResolveFunc func(ctx context.Context, source domain.TemplateSource) (string, func(), error)

	CleanupCalls int
}

func (m *MockTemplateService) Resolve(
	ctx context.Context,
	source domain.TemplateSource,
) (string, func(), error) {
	if m.log != nil {
		m.log.record("templates.resolve")
	}
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, source)
	}
	return "/tmp/template", func() { m.CleanupCalls++ }, nil
}

// MockFilesystemService for testing
type MockFilesystemService struct {
	log           *callLog
	ProvisionFunc func(ctx context.Context, username, targetDir, templateDir string) error
	RemoveFunc    func(targetDir string) error

	ProvisionedDirs []string
	RemovedDirs     []string
}

func (m *MockFilesystemService) Provision(ctx context.Context, username, targetDir, templateDir string) error {
	if m.log != nil {
		m.log.record("filesystem.provision")
	}
	m.ProvisionedDirs = append(m.ProvisionedDirs, targetDir)
	if m.ProvisionFunc != nil {
		return m.ProvisionFunc(ctx, username, targetDir, templateDir)
	}
	return nil
}

func (m *MockFilesystemService) Remove(targetDir string) error {
	if m.log != nil {
		m.log.record("filesystem.remove")
	}
	m.RemovedDirs = append(m.RemovedDirs, targetDir)
	if m.RemoveFunc != nil {
		return m.RemoveFunc(targetDir)
	}
	return nil
}

// MockBuildService for testing
type MockBuildService struct {
	log       *callLog
	BuildFunc func(ctx context.Context, params BuildParams) error

	Builds []BuildParams
}

func (m *MockBuildService) Build(ctx context.Context, params BuildParams) error {
	if m.log != nil {
		m.log.record("builder.build")
	}
	m.Builds = append(m.Builds, params)
	if m.BuildFunc != nil {
		return m.BuildFunc(ctx, params)
	}
	return nil
}

// MockServiceManager for testing
type MockServiceManager struct {
	log                    *callLog
	EnsureTemplateUnitFunc func(ctx context.Context) error
	StartFunc              func(ctx context.Context, slug string) error
	StopFunc               func(ctx context.Context, slug string) error
	DisableFunc            func(ctx context.Context, slug string) error
	IsActiveFunc           func(ctx context.Context, slug string) (bool, error)

	StartedSlugs []string
	StoppedSlugs []string
}

func (m *MockServiceManager) UnitName(slug string) string {
	return "webalive-site@" + slug + ".service"
}

func (m *MockServiceManager) EnsureTemplateUnit(ctx context.Context) error {
	if m.log != nil {
		m.log.record("services.ensure_unit")
	}
	if m.EnsureTemplateUnitFunc != nil {
		return m.EnsureTemplateUnitFunc(ctx)
	}
	return nil
}

func (m *MockServiceManager) Start(ctx context.Context, slug string) error {
	if m.log != nil {
		m.log.record("services.start")
	}
	m.StartedSlugs = append(m.StartedSlugs, slug)
	if m.StartFunc != nil {
		return m.StartFunc(ctx, slug)
	}
	return nil
}

func (m *MockServiceManager) Stop(ctx context.Context, slug string) error {
	if m.log != nil {
		m.log.record("services.stop")
	}
	m.StoppedSlugs = append(m.StoppedSlugs, slug)
	if m.StopFunc != nil {
		return m.StopFunc(ctx, slug)
	}
	return nil
}

func (m *MockServiceManager) Disable(ctx context.Context, slug string) error {
	if m.log != nil {
		m.log.record("services.disable")
	}
	if m.DisableFunc != nil {
		return m.DisableFunc(ctx, slug)
	}
	return nil
}

func (m *MockServiceManager) IsActive(ctx context.Context, slug string) (bool, error) {
	if m.IsActiveFunc != nil {
		return m.IsActiveFunc(ctx, slug)
	}
	return true, nil
}

// MockProxyService for testing
type MockProxyService struct {
	log        *callLog
	UpsertFunc func(ctx context.Context, domainName string, port int) error
	RemoveFunc func(ctx context.Context, domainName string) error

	Upserts        map[string]int
	RemovedDomains []string
}

func (m *MockProxyService) Upsert(ctx context.Context, domainName string, port int) error {
	if m.log != nil {
		m.log.record("proxy.upsert")
	}
	if m.Upserts == nil {
		m.Upserts = make(map[string]int)
	}
	m.Upserts[domainName] = port
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, domainName, port)
	}
	return nil
}

func (m *MockProxyService) Remove(ctx context.Context, domainName string) error {
	if m.log != nil {
		m.log.record("proxy.remove")
	}
	m.RemovedDomains = append(m.RemovedDomains, domainName)
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, domainName)
	}
	return nil
}
