package deploy

import (
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/webalive/deployer/config"
	"github.com/webalive/deployer/domain"
	"github.com/webalive/deployer/repository"
)

// allocationAttempts bounds the claim-retry loop. Each attempt re-reads
// the assignment table, so losing a race costs one extra read.
const allocationAttempts = 5

// PortAllocator hands out localhost ports from the configured range.
// Assignments are durable rows keyed by domain with a unique port
// column; the database's uniqueness constraints are the arbiter under
// concurrent allocation, so multiple deployer processes stay safe.
type PortAllocator struct {
	config *config.Config
	ports  repository.PortAssignmentRepository
}

func NewPortAllocator(config *config.Config, ports repository.PortAssignmentRepository) *PortAllocator {
	return &PortAllocator{
		config: config,
		ports:  ports,
	}
}

// Allocate returns the port bound to domainName, claiming the lowest
// unused port in the range on first call. The second return reports
// whether this call created the assignment; re-allocating an assigned
// domain returns its existing port with isNew=false.
func (a *PortAllocator) Allocate(domainName string) (int, bool, error) {
	for attempt := 1; attempt <= allocationAttempts; attempt++ {
		existing, err := a.ports.FindByDomain(domainName)
		if err == nil {
			slog.Debug("Port already assigned", "domain", domainName, "port", existing.Port)
			return existing.Port, false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, domain.NewPortAssignmentError(domainName, err)
		}

		candidate, err := a.lowestFreePort(domainName)
		if err != nil {
			return 0, false, err
		}

		createErr := a.ports.Create(&domain.PortAssignment{Domain: domainName, Port: candidate})
		if createErr == nil {
			slog.Info("Port allocated", "domain", domainName, "port", candidate)
			return candidate, true, nil
		}
		if errors.Is(createErr, gorm.ErrDuplicatedKey) {
			// Another writer claimed this port, or registered the same
			// domain, between our read and write. Re-read and retry.
			slog.Debug("Port claim conflicted, retrying",
				"domain", domainName,
				"port", candidate,
				"attempt", attempt)
			continue
		}
		return 0, false, domain.NewPortAssignmentError(domainName, createErr)
	}

	return 0, false, domain.NewPortAssignmentError(domainName,
		fmt.Errorf("port claim conflicted %d times", allocationAttempts))
}

// Release frees the domain's port assignment. Releasing a domain that
// holds no assignment is a no-op, which keeps teardown idempotent.
func (a *PortAllocator) Release(domainName string) error {
	if err := a.ports.Delete(domainName); err != nil {
		return fmt.Errorf("releasing port for %s: %w", domainName, err)
	}
	slog.Debug("Port released", "domain", domainName)
	return nil
}

func (a *PortAllocator) lowestFreePort(domainName string) (int, error) {
	assignments, err := a.ports.List()
	if err != nil {
		return 0, domain.NewPortAssignmentError(domainName, err)
	}

	used := make(map[int]bool, len(assignments))
	for _, assignment := range assignments {
		used[assignment.Port] = true
	}

	for port := a.config.PortRangeStart; port <= a.config.PortRangeEnd; port++ {
		if !used[port] {
			return port, nil
		}
	}

	return 0, domain.NewPortsExhaustedError(domainName, a.config.PortRangeStart, a.config.PortRangeEnd)
}
