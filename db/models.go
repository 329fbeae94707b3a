// Package db provides database models and utilities for the deployer.
package db

import (
	"time"

	"github.com/google/uuid"
)

type BaseModel struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type SiteModel struct {
	BaseModel
	Domain                  string  `gorm:"not null;unique;check:domain <> ''"`
	Slug                    string  `gorm:"not null;check:slug <> ''"`
	Port                    int     `gorm:"not null"`
	ServiceName             string  `gorm:"not null"`            // systemd unit name, e.g. webalive-site@my-slug.service
	Status                  string  `gorm:"not null;check:status <> ''"` // deploying, running, stopped, failed, removed
	TemplatePath            *string `gorm:"type:text"`           // local template directory, if any
	TemplateRepoURL         *string `gorm:"type:text"`           // git template repository, if any
	TemplateBranch          *string
	TemplateAuthType        *string `gorm:"type:varchar(20)"` // "http" or "ssh"
	TemplateAuthCredentials *string `gorm:"type:text"`        // Encrypted JSON blob containing all auth data

	Deployments []DeploymentModel `gorm:"foreignKey:SiteID;constraint:OnDelete:CASCADE"`
}

func (SiteModel) TableName() string {
	return "sites"
}

type DeploymentModel struct {
	BaseModel
	SiteID      uuid.UUID `gorm:"not null;index"`
	Status      string    `gorm:"not null;check:status <> ''"` // started, completed, failed, rolled_back
	FailedPhase string    // phase name when status is failed/rolled_back, empty otherwise
	Error       string    `gorm:"type:text"`
	StartedAt   time.Time `gorm:"not null"`
	FinishedAt  *time.Time

	Site SiteModel `gorm:"foreignKey:SiteID;constraint:OnDelete:CASCADE"`
}

func (DeploymentModel) TableName() string {
	return "deployments"
}

// PortAssignmentModel maps a domain to its reserved localhost port. Rows are
// created on first allocation and never mutated; the unique constraints are
// the serialization point for concurrent allocators.
type PortAssignmentModel struct {
	Domain    string `gorm:"primaryKey;check:domain <> ''"`
	Port      int    `gorm:"not null;uniqueIndex;check:port > 0"`
	CreatedAt time.Time
}

func (PortAssignmentModel) TableName() string {
	return "port_assignments"
}

type MigrationModel struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null;unique"`
	AppliedAt time.Time
}

func (MigrationModel) TableName() string {
	return "migrations"
}
