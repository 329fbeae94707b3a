// Package watcher reconciles recorded site status with live systemd state.
// Deployments record what should be true; the watcher periodically asks
// systemd what is true and updates the registry when the two disagree, so
// a crashed site shows as failed and a manually started one as running.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/webalive/deployer/domain"
	"github.com/webalive/deployer/repository"
)

// UnitStatusChecker is the slice of the service manager the watcher needs.
type UnitStatusChecker interface {
	IsActive(ctx context.Context, slug string) (bool, error)
}

type WatcherService struct {
	sites        repository.SiteRepository
	units        UnitStatusChecker
	pollInterval time.Duration
}

func NewWatcherService(
	sites repository.SiteRepository,
	units UnitStatusChecker,
	pollInterval time.Duration,
) *WatcherService {
	return &WatcherService{
		sites:        sites,
		units:        units,
		pollInterval: pollInterval,
	}
}

func (w *WatcherService) Start(ctx context.Context) error {
	slog.Info("Watcher service starting", "poll_interval", w.pollInterval)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Run initial check immediately
	if err := w.checkAllSites(ctx); err != nil {
		slog.Error("Initial site check failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("Watcher service shutting down")
			return nil
		case <-ticker.C:
			if err := w.checkAllSites(ctx); err != nil {
				slog.Error("Site check failed", "error", err)
			}
		}
	}
}

func (w *WatcherService) checkAllSites(ctx context.Context) error {
	slog.Debug("Starting site check cycle")

	sites, err := w.sites.List()
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}

	sitesChecked := 0
	for _, site := range sites {
		if !w.shouldCheck(site) {
			continue
		}
		sitesChecked++
		if err := w.syncSiteStatus(ctx, site); err != nil {
			slog.Error("Failed to sync site status",
				"site_id", site.ID,
				"domain", site.Domain,
				"error", err)
		}
	}

	slog.Debug("Site check cycle completed",
		"total_sites", len(sites),
		"sites_checked", sitesChecked)

	return nil
}

// shouldCheck filters out sites whose status the watcher must not touch:
// a deploying site belongs to the orchestrator mid-pipeline, and a removed
// site has no unit left to ask about.
func (w *WatcherService) shouldCheck(site *domain.Site) bool {
	switch site.Status {
	case domain.SiteStatusDeploying, domain.SiteStatusRemoved:
		slog.Debug("Skipping site",
			"domain", site.Domain,
			"status", site.Status.String())
		return false
	default:
		return true
	}
}

// syncSiteStatus compares the site's recorded status with its unit's
// actual state and updates the database on mismatch.
func (w *WatcherService) syncSiteStatus(ctx context.Context, site *domain.Site) error {
	active, err := w.units.IsActive(ctx, site.Slug)
	if err != nil {
		slog.Error("Failed to get unit state for site",
			"site_id", site.ID,
			"domain", site.Domain,
			"error", err)

		// The truth is unreachable; record that rather than a stale claim.
		if site.Status != domain.SiteStatusUnknown {
			slog.Warn("Updating site status to unknown due to unit state error",
				"site_id", site.ID,
				"domain", site.Domain,
				"previous_status", site.Status.String())

			site.Status = domain.SiteStatusUnknown
			if updateErr := w.sites.Update(site); updateErr != nil {
				return fmt.Errorf("failed to update site status to unknown: %w", updateErr)
			}
		}
		return fmt.Errorf("failed to get unit state: %w", err)
	}

	expected := expectedSiteStatus(site.Status, active)
	if site.Status == expected {
		return nil
	}

	slog.Warn("Site status mismatch detected - updating database",
		"site_id", site.ID,
		"domain", site.Domain,
		"database_status", site.Status.String(),
		"unit_active", active,
		"updating_to", expected.String())

	site.Status = expected
	if err := w.sites.Update(site); err != nil {
		return fmt.Errorf("failed to update site status: %w", err)
	}

	slog.Info("Site status updated successfully",
		"site_id", site.ID,
		"domain", site.Domain,
		"new_status", expected.String())
	return nil
}

// expectedSiteStatus maps a unit's liveness onto the status a site's row
// should carry. An active unit always means running. An inactive unit
// means a running record has crashed, an unknown record has settled into
// stopped, and stopped/failed records are already telling the truth.
func expectedSiteStatus(recorded domain.SiteStatus, active bool) domain.SiteStatus {
	if active {
		return domain.SiteStatusRunning
	}
	switch recorded {
	case domain.SiteStatusRunning:
		return domain.SiteStatusFailed
	case domain.SiteStatusUnknown:
		return domain.SiteStatusStopped
	default:
		return recorded
	}
}
