// Package domain provides core domain types and entities for the deployer.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Site is one hosted site: a domain bound to an OS identity, a home
// tree, an allocated port, and a supervised service unit.
type Site struct {
	ID          uuid.UUID
	Domain      string
	Slug        string
	Port        int
	ServiceName string
	Status      SiteStatus
	Template    TemplateSource
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewSite(domainName, slugName string, template TemplateSource) Site {
	return Site{
		ID:       uuid.New(),
		Domain:   domainName,
		Slug:     slugName,
		Status:   SiteStatusDeploying,
		Template: template,
	}
}

// PortAssignment is the durable domain → port mapping. Assignments are
// created once, never mutated, and removed only by an explicit teardown
// that releases the port.
type PortAssignment struct {
	Domain    string
	Port      int
	CreatedAt time.Time
}

// DeriveSlug converts a domain into its filesystem- and service-safe
// form: "notion.alive.best" becomes "notion-alive-best". The same
// domain always yields the same slug, which is what makes the identity
// and service layers idempotent.
func DeriveSlug(domainName string) string {
	return slug.Make(domainName)
}
