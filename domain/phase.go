package domain

import "fmt"

// Phase identifies one ordered step of the deployment pipeline. The
// zero value is PhaseUnknown so that errors which never passed through
// the pipeline classify as "unknown" rather than as a real phase.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseValidation
	PhaseDNS
	PhasePort
	PhaseUser
	PhaseFilesystem
	PhaseBuild
	PhaseService
	PhaseCaddy
)

func (p Phase) String() string {
	switch p {
	case PhaseValidation:
		return "validation"
	case PhaseDNS:
		return "dns"
	case PhasePort:
		return "port"
	case PhaseUser:
		return "user"
	case PhaseFilesystem:
		return "filesystem"
	case PhaseBuild:
		return "build"
	case PhaseService:
		return "service"
	case PhaseCaddy:
		return "caddy"
	case PhaseUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

func ParsePhase(s string) (Phase, error) {
	switch s {
	case "validation":
		return PhaseValidation, nil
	case "dns":
		return PhaseDNS, nil
	case "port":
		return PhasePort, nil
	case "user":
		return PhaseUser, nil
	case "filesystem":
		return PhaseFilesystem, nil
	case "build":
		return PhaseBuild, nil
	case "service":
		return PhaseService, nil
	case "caddy":
		return PhaseCaddy, nil
	case "unknown", "":
		return PhaseUnknown, nil
	default:
		return PhaseUnknown, fmt.Errorf("invalid phase: %q", s)
	}
}
