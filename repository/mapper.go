// Package repository provides the data access layer for sites, deployments and port assignments.
package repository

import (
	"log/slog"

	"github.com/webalive/deployer/db"
	"github.com/webalive/deployer/domain"
	"github.com/webalive/deployer/encryption"
)

type SiteMapper struct {
	encryption *encryption.EncryptionService
}

func NewSiteMapper(encryptionSvc *encryption.EncryptionService) *SiteMapper {
	return &SiteMapper{encryption: encryptionSvc}
}

func (m *SiteMapper) ToDomain(s *db.SiteModel) *domain.Site {
	status, err := domain.ParseSiteStatus(s.Status)
	if err != nil {
		status = domain.SiteStatusUnknown
	}

	template := domain.TemplateSource{}
	if s.TemplatePath != nil {
		template.Path = *s.TemplatePath
	}
	if s.TemplateRepoURL != nil {
		template.RepoURL = *s.TemplateRepoURL
	}
	if s.TemplateBranch != nil {
		template.Branch = *s.TemplateBranch
	}

	// Decrypt authentication data if present
	if s.TemplateAuthType != nil && s.TemplateAuthCredentials != nil && m.encryption != nil {
		decryptedAuth, err := m.encryption.DecryptTemplateAuthConfig(*s.TemplateAuthType, *s.TemplateAuthCredentials)
		if err != nil {
			// Log error but don't fail - the site must still be listable
			// and tear-downable. This can happen if the encryption key changed.
			slog.Error("Failed to decrypt template authentication",
				"site_id", s.ID,
				"domain", s.Domain,
				"auth_type", *s.TemplateAuthType,
				"error", err)
		} else {
			template.Auth = decryptedAuth
		}
	}

	return &domain.Site{
		ID:          s.ID,
		Domain:      s.Domain,
		Slug:        s.Slug,
		Port:        s.Port,
		ServiceName: s.ServiceName,
		Status:      status,
		Template:    template,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func (m *SiteMapper) ToModel(s *domain.Site) *db.SiteModel {
	modelObj := &db.SiteModel{
		BaseModel: db.BaseModel{
			ID:        s.ID,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		},
		Domain:      s.Domain,
		Slug:        s.Slug,
		Port:        s.Port,
		ServiceName: s.ServiceName,
		Status:      s.Status.String(),
	}

	if s.Template.Path != "" {
		path := s.Template.Path
		modelObj.TemplatePath = &path
	}
	if s.Template.RepoURL != "" {
		repoURL := s.Template.RepoURL
		modelObj.TemplateRepoURL = &repoURL
	}
	if s.Template.Branch != "" {
		branch := s.Template.Branch
		modelObj.TemplateBranch = &branch
	}

	// Encrypt authentication data if present
	if s.Template.Auth != nil && m.encryption != nil {
		authType, encryptedCredentials, err := m.encryption.EncryptTemplateAuthConfig(s.Template.Auth)
		if err != nil {
			slog.Error("Failed to encrypt template authentication",
				"site_id", s.ID,
				"domain", s.Domain,
				"error", err)
			return modelObj
		}

		if authType != "" && encryptedCredentials != "" {
			modelObj.TemplateAuthType = &authType
			modelObj.TemplateAuthCredentials = &encryptedCredentials
		}
	}

	return modelObj
}

type DeploymentMapper struct{}

func (m *DeploymentMapper) ToDomain(d *db.DeploymentModel) *domain.Deployment {
	status, err := domain.ParseDeploymentStatus(d.Status)
	if err != nil {
		status = domain.DeploymentStatusUnknown
	}

	failedPhase := domain.PhaseUnknown
	if d.FailedPhase != "" {
		if parsed, err := domain.ParsePhase(d.FailedPhase); err == nil {
			failedPhase = parsed
		}
	}

	return &domain.Deployment{
		ID:          d.ID,
		SiteID:      d.SiteID,
		Status:      status,
		FailedPhase: failedPhase,
		Error:       d.Error,
		StartedAt:   d.StartedAt,
		FinishedAt:  d.FinishedAt,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func (m *DeploymentMapper) ToModel(d *domain.Deployment) *db.DeploymentModel {
	failedPhase := ""
	if d.FailedPhase != domain.PhaseUnknown {
		failedPhase = d.FailedPhase.String()
	}

	return &db.DeploymentModel{
		BaseModel: db.BaseModel{
			ID:        d.ID,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		},
		SiteID:      d.SiteID,
		Status:      d.Status.String(),
		FailedPhase: failedPhase,
		Error:       d.Error,
		StartedAt:   d.StartedAt,
		FinishedAt:  d.FinishedAt,
	}
}

type PortAssignmentMapper struct{}

func (m *PortAssignmentMapper) ToDomain(p *db.PortAssignmentModel) *domain.PortAssignment {
	return &domain.PortAssignment{
		Domain:    p.Domain,
		Port:      p.Port,
		CreatedAt: p.CreatedAt,
	}
}

func (m *PortAssignmentMapper) ToModel(p *domain.PortAssignment) *db.PortAssignmentModel {
	return &db.PortAssignmentModel{
		Domain:    p.Domain,
		Port:      p.Port,
		CreatedAt: p.CreatedAt,
	}
}
