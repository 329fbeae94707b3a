package domain

import "fmt"

// SiteStatus represents the provisioning state of a hosted site
type SiteStatus int

const (
	SiteStatusUnknown SiteStatus = iota
	SiteStatusDeploying
	SiteStatusRunning
	SiteStatusStopped
	SiteStatusFailed
	SiteStatusRemoved
)

func (s SiteStatus) String() string {
	switch s {
	case SiteStatusDeploying:
		return "deploying"
	case SiteStatusRunning:
		return "running"
	case SiteStatusStopped:
		return "stopped"
	case SiteStatusFailed:
		return "failed"
	case SiteStatusRemoved:
		return "removed"
	case SiteStatusUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

func ParseSiteStatus(s string) (SiteStatus, error) {
	switch s {
	case "deploying":
		return SiteStatusDeploying, nil
	case "running":
		return SiteStatusRunning, nil
	case "stopped":
		return SiteStatusStopped, nil
	case "failed":
		return SiteStatusFailed, nil
	case "removed":
		return SiteStatusRemoved, nil
	case "unknown":
		return SiteStatusUnknown, nil
	default:
		return SiteStatusUnknown, fmt.Errorf("invalid site status: %q", s)
	}
}

// DeploymentStatus represents the status of a single deployment attempt
type DeploymentStatus int

const (
	DeploymentStatusUnknown DeploymentStatus = iota
	DeploymentStatusStarted
	DeploymentStatusCompleted
	DeploymentStatusFailed
	DeploymentStatusRolledBack
)

func (s DeploymentStatus) String() string {
	switch s {
	case DeploymentStatusStarted:
		return "started"
	case DeploymentStatusCompleted:
		return "completed"
	case DeploymentStatusFailed:
		return "failed"
	case DeploymentStatusRolledBack:
		return "rolled_back"
	case DeploymentStatusUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

func ParseDeploymentStatus(s string) (DeploymentStatus, error) {
	switch s {
	case "started":
		return DeploymentStatusStarted, nil
	case "completed":
		return DeploymentStatusCompleted, nil
	case "failed":
		return DeploymentStatusFailed, nil
	case "rolled_back":
		return DeploymentStatusRolledBack, nil
	case "unknown":
		return DeploymentStatusUnknown, nil
	default:
		return DeploymentStatusUnknown, fmt.Errorf("invalid deployment status: %q", s)
	}
}
