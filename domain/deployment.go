package domain

import (
	"time"

	"github.com/google/uuid"
)

// Deployment records one deployment attempt for a site: when it ran,
// how it ended, and which phase failed if it did.
type Deployment struct {
	ID          uuid.UUID
	SiteID      uuid.UUID
	Status      DeploymentStatus
	FailedPhase Phase  // PhaseUnknown while running or on success
	Error       string // human-readable failure detail, empty on success
	StartedAt   time.Time
	FinishedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewDeployment(siteID uuid.UUID) Deployment {
	return Deployment{
		ID:        uuid.New(),
		SiteID:    siteID,
		Status:    DeploymentStatusStarted,
		StartedAt: time.Now(),
	}
}
