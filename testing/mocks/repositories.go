package mocks

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/webalive/deployer/domain"
)

// MockSiteRepository implements repository.SiteRepository for testing
type MockSiteRepository struct {
	FindByIDFunc     func(id uuid.UUID) (*domain.Site, error)
	FindByDomainFunc func(domainName string) (*domain.Site, error)
	CreateFunc       func(site *domain.Site) (*domain.Site, error)
	UpdateFunc       func(site *domain.Site) error
	ListFunc         func() ([]*domain.Site, error)
	DeleteFunc       func(id uuid.UUID) error
}

func (m *MockSiteRepository) FindByID(id uuid.UUID) (*domain.Site, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockSiteRepository) FindByDomain(domainName string) (*domain.Site, error) {
	if m.FindByDomainFunc != nil {
		return m.FindByDomainFunc(domainName)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockSiteRepository) Create(site *domain.Site) (*domain.Site, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(site)
	}
	return site, nil
}

func (m *MockSiteRepository) Update(site *domain.Site) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(site)
	}
	return nil
}

func (m *MockSiteRepository) List() ([]*domain.Site, error) {
	if m.ListFunc != nil {
		return m.ListFunc()
	}
	return []*domain.Site{}, nil
}

func (m *MockSiteRepository) Delete(id uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(id)
	}
	return nil
}

// MockDeploymentRepository implements repository.DeploymentRepository for testing
type MockDeploymentRepository struct {
	FindByIDFunc     func(id uuid.UUID) (*domain.Deployment, error)
	CreateFunc       func(deployment *domain.Deployment) error
	UpdateFunc       func(deployment *domain.Deployment) error
	ListBySiteIDFunc func(siteID uuid.UUID) ([]*domain.Deployment, error)
}

func (m *MockDeploymentRepository) FindByID(id uuid.UUID) (*domain.Deployment, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockDeploymentRepository) Create(deployment *domain.Deployment) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(deployment)
	}
	return nil
}

func (m *MockDeploymentRepository) Update(deployment *domain.Deployment) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(deployment)
	}
	return nil
}

func (m *MockDeploymentRepository) ListBySiteID(siteID uuid.UUID) ([]*domain.Deployment, error) {
	if m.ListBySiteIDFunc != nil {
		return m.ListBySiteIDFunc(siteID)
	}
	return []*domain.Deployment{}, nil
}
