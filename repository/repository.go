package repository

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/webalive/deployer/db"
	"github.com/webalive/deployer/domain"
	"github.com/webalive/deployer/encryption"
	"gorm.io/gorm"
)

// SiteRepository persists sites. Lookup misses return
// gorm.ErrRecordNotFound unwrapped so callers can match on it.
type SiteRepository interface {
	FindByID(id uuid.UUID) (*domain.Site, error)
	FindByDomain(domainName string) (*domain.Site, error)
	Create(site *domain.Site) (*domain.Site, error)
	Update(site *domain.Site) error
	List() ([]*domain.Site, error)
	Delete(id uuid.UUID) error
}

type siteRepository struct {
	db     *gorm.DB
	mapper *SiteMapper
}

func (r *siteRepository) List() ([]*domain.Site, error) {
	var models []db.SiteModel
	if err := r.db.Order("domain").Find(&models).Error; err != nil {
		return nil, err
	}

	sites := make([]*domain.Site, len(models))
	for i, model := range models {
		sites[i] = r.mapper.ToDomain(&model)
	}
	return sites, nil
}

func (r *siteRepository) FindByID(id uuid.UUID) (*domain.Site, error) {
	var m db.SiteModel
	if err := r.db.First(&m, id).Error; err != nil {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "find_site",
			"site_id", id,
			"error", err)
		return nil, err
	}
	return r.mapper.ToDomain(&m), nil
}

func (r *siteRepository) FindByDomain(domainName string) (*domain.Site, error) {
	var m db.SiteModel
	if err := r.db.Where("domain = ?", domainName).First(&m).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToDomain(&m), nil
}

func (r *siteRepository) Create(site *domain.Site) (*domain.Site, error) {
	m := r.mapper.ToModel(site)
	res := r.db.Create(m)
	if res.Error != nil {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "create_site",
			"site_id", site.ID,
			"domain", site.Domain,
			"error", res.Error)
		return nil, res.Error
	}
	return r.mapper.ToDomain(m), nil
}

func (r *siteRepository) Update(site *domain.Site) error {
	m := r.mapper.ToModel(site)

	// Select("*") updates zeroed fields too, so clearing template auth
	// actually clears the columns. created_at never changes after insert.
	return r.db.Model(&db.SiteModel{}).
		Where("id = ?", m.ID).
		Select("*").
		Omit("created_at").
		Updates(m).
		Error
}

func (r *siteRepository) Delete(id uuid.UUID) error {
	err := r.db.Delete(&db.SiteModel{}, id).Error
	if err != nil {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "delete_site",
			"site_id", id,
			"error", err)
	}
	return err
}

func NewSiteRepository(db *gorm.DB, encryptionSvc *encryption.EncryptionService) SiteRepository {
	return &siteRepository{
		db:     db,
		mapper: NewSiteMapper(encryptionSvc),
	}
}

// DeploymentRepository records deployment attempts per site, newest first
// in listings.
type DeploymentRepository interface {
	FindByID(id uuid.UUID) (*domain.Deployment, error)
	Create(deployment *domain.Deployment) error
	Update(deployment *domain.Deployment) error
	ListBySiteID(siteID uuid.UUID) ([]*domain.Deployment, error)
}

type deploymentRepository struct {
	db     *gorm.DB
	mapper *DeploymentMapper
}

func (r *deploymentRepository) FindByID(id uuid.UUID) (*domain.Deployment, error) {
	var m db.DeploymentModel
	if err := r.db.First(&m, id).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToDomain(&m), nil
}

func (r *deploymentRepository) Create(deployment *domain.Deployment) error {
	m := r.mapper.ToModel(deployment)
	if err := r.db.Create(m).Error; err != nil {
		return err
	}
	// Copy back the timestamps GORM populated on insert.
	*deployment = *r.mapper.ToDomain(m)
	return nil
}

func (r *deploymentRepository) Update(deployment *domain.Deployment) error {
	m := r.mapper.ToModel(deployment)
	if err := r.db.Save(m).Error; err != nil {
		return err
	}
	// Copy back the timestamps GORM populated on save.
	*deployment = *r.mapper.ToDomain(m)
	return nil
}

func (r *deploymentRepository) ListBySiteID(siteID uuid.UUID) ([]*domain.Deployment, error) {
	var models []db.DeploymentModel
	if err := r.db.Where("site_id = ?", siteID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	deployments := make([]*domain.Deployment, len(models))
	for i, m := range models {
		deployments[i] = r.mapper.ToDomain(&m)
	}
	return deployments, nil
}

func NewDeploymentRepository(db *gorm.DB) DeploymentRepository {
	return &deploymentRepository{
		db:     db,
		mapper: &DeploymentMapper{},
	}
}

// PortAssignmentRepository owns the domain-to-port table whose UNIQUE
// constraints serialize allocation across concurrent deployers.
type PortAssignmentRepository interface {
	FindByDomain(domainName string) (*domain.PortAssignment, error)
	Create(assignment *domain.PortAssignment) error
	List() ([]*domain.PortAssignment, error)
	Delete(domainName string) error
}

type portAssignmentRepository struct {
	db     *gorm.DB
	mapper *PortAssignmentMapper
}

func (r *portAssignmentRepository) FindByDomain(domainName string) (*domain.PortAssignment, error) {
	var m db.PortAssignmentModel
	if err := r.db.Where("domain = ?", domainName).First(&m).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToDomain(&m), nil
}

// Create inserts a new assignment. A gorm.ErrDuplicatedKey return means
// another writer holds either the domain or the port; the allocator treats
// that as a signal to re-read, not as a failure.
func (r *portAssignmentRepository) Create(assignment *domain.PortAssignment) error {
	m := r.mapper.ToModel(assignment)
	return r.db.Create(m).Error
}

func (r *portAssignmentRepository) List() ([]*domain.PortAssignment, error) {
	var models []db.PortAssignmentModel
	if err := r.db.Order("port").Find(&models).Error; err != nil {
		return nil, err
	}

	assignments := make([]*domain.PortAssignment, len(models))
	for i, m := range models {
		assignments[i] = r.mapper.ToDomain(&m)
	}
	return assignments, nil
}

// Delete releases an assignment. Deleting an absent row is not an error.
func (r *portAssignmentRepository) Delete(domainName string) error {
	err := r.db.Where("domain = ?", domainName).Delete(&db.PortAssignmentModel{}).Error
	if err != nil {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "delete_port_assignment",
			"domain", domainName,
			"error", err)
	}
	return err
}

func NewPortAssignmentRepository(db *gorm.DB) PortAssignmentRepository {
	return &portAssignmentRepository{
		db:     db,
		mapper: &PortAssignmentMapper{},
	}
}
