package domain

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable, machine-readable identity of a deployment
// failure. Callers branch on the code, never on the message text.
type ErrorCode string

const (
	CodeInvalidDomain        ErrorCode = "INVALID_DOMAIN"
	CodePathTraversal        ErrorCode = "PATH_TRAVERSAL"
	CodeInvalidConfig        ErrorCode = "INVALID_CONFIG"
	CodeSiteExists           ErrorCode = "SITE_EXISTS"
	CodeDNSValidationFailed  ErrorCode = "DNS_VALIDATION_FAILED"
	CodePortAssignmentFailed ErrorCode = "PORT_ASSIGNMENT_FAILED"
	CodePortsExhausted       ErrorCode = "PORTS_EXHAUSTED"
	CodeUserCreationFailed   ErrorCode = "USER_CREATION_FAILED"
	CodeFilesystemError      ErrorCode = "FILESYSTEM_ERROR"
	CodeTemplateFetchFailed  ErrorCode = "TEMPLATE_FETCH_FAILED"
	CodeBuildFailed          ErrorCode = "BUILD_FAILED"
	CodeServiceStartFailed   ErrorCode = "SERVICE_START_FAILED"
	CodeCaddyConfigFailed    ErrorCode = "CADDY_CONFIG_FAILED"
	CodeCaddyLockTimeout     ErrorCode = "CADDY_LOCK_TIMEOUT"
	CodeDeployCancelled      ErrorCode = "DEPLOY_CANCELLED"
)

// phaseForCode pins every error code to its pipeline phase. Deriving
// the phase from the code here keeps the two from drifting apart when
// codes are added.
var phaseForCode = map[ErrorCode]Phase{
	CodeInvalidDomain:        PhaseValidation,
	CodePathTraversal:        PhaseValidation,
	CodeInvalidConfig:        PhaseValidation,
	CodeSiteExists:           PhaseValidation,
	CodeDNSValidationFailed:  PhaseDNS,
	CodePortAssignmentFailed: PhasePort,
	CodePortsExhausted:       PhasePort,
	CodeUserCreationFailed:   PhaseUser,
	CodeFilesystemError:      PhaseFilesystem,
	CodeTemplateFetchFailed:  PhaseFilesystem,
	CodeBuildFailed:          PhaseBuild,
	CodeServiceStartFailed:   PhaseService,
	CodeCaddyConfigFailed:    PhaseCaddy,
	CodeCaddyLockTimeout:     PhaseCaddy,
	CodeDeployCancelled:      PhaseUnknown,
}

// DeployError is the typed error raised by pipeline phases. It carries
// the stable code, the coarse phase classification used for diagnostics
// and alerting, and enough context to report the failure without string
// matching.
type DeployError struct {
	Code   ErrorCode
	Phase  Phase
	Domain string
	Port   int // allocated port, when one was involved
	msg    string
	cause  error
}

func (e *DeployError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.msg)
}

func (e *DeployError) Unwrap() error {
	return e.cause
}

// Message returns the human-readable part of the error without the
// code prefix, for API and CLI surfaces that report the code separately.
func (e *DeployError) Message() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func newDeployError(code ErrorCode, domainName, msg string, cause error) *DeployError {
	return &DeployError{
		Code:   code,
		Phase:  phaseForCode[code],
		Domain: domainName,
		msg:    msg,
		cause:  cause,
	}
}

func NewInvalidDomainError(domainName, reason string) *DeployError {
	return newDeployError(CodeInvalidDomain, domainName, fmt.Sprintf("invalid domain %q: %s", domainName, reason), nil)
}

func NewPathTraversalError(domainName string) *DeployError {
	return newDeployError(CodePathTraversal, domainName, fmt.Sprintf("domain %q contains path traversal", domainName), nil)
}

func NewInvalidConfigError(domainName, reason string) *DeployError {
	return newDeployError(CodeInvalidConfig, domainName, reason, nil)
}

func NewSiteExistsError(domainName string) *DeployError {
	return newDeployError(CodeSiteExists, domainName, fmt.Sprintf("site %q is already deployed", domainName), nil)
}

func NewDNSValidationError(domainName, reason string, cause error) *DeployError {
	return newDeployError(CodeDNSValidationFailed, domainName, fmt.Sprintf("DNS validation failed for %q: %s", domainName, reason), cause)
}

func NewPortAssignmentError(domainName string, cause error) *DeployError {
	return newDeployError(CodePortAssignmentFailed, domainName, fmt.Sprintf("port assignment failed for %q", domainName), cause)
}

func NewPortsExhaustedError(domainName string, start, end int) *DeployError {
	return newDeployError(CodePortsExhausted, domainName,
		fmt.Sprintf("no free ports in range %d-%d", start, end), nil)
}

func NewUserCreationError(domainName, username string, cause error) *DeployError {
	return newDeployError(CodeUserCreationFailed, domainName, fmt.Sprintf("creating system user %q", username), cause)
}

func NewFilesystemError(domainName, detail string, cause error) *DeployError {
	return newDeployError(CodeFilesystemError, domainName, detail, cause)
}

func NewTemplateFetchError(domainName, source string, cause error) *DeployError {
	return newDeployError(CodeTemplateFetchFailed, domainName, fmt.Sprintf("fetching template from %s", source), cause)
}

func NewBuildError(domainName, output string, cause error) *DeployError {
	msg := "build failed"
	if output != "" {
		msg = fmt.Sprintf("build failed: %s", output)
	}
	return newDeployError(CodeBuildFailed, domainName, msg, cause)
}

func NewServiceStartError(domainName, unit string, cause error) *DeployError {
	return newDeployError(CodeServiceStartFailed, domainName, fmt.Sprintf("starting service %q", unit), cause)
}

func NewCaddyConfigError(domainName string, cause error) *DeployError {
	return newDeployError(CodeCaddyConfigFailed, domainName, fmt.Sprintf("updating proxy configuration for %q", domainName), cause)
}

func NewCaddyLockTimeoutError(domainName string, cause error) *DeployError {
	return newDeployError(CodeCaddyLockTimeout, domainName, "timed out waiting for proxy configuration lock", cause)
}

func NewDeployCancelledError(domainName string, cause error) *DeployError {
	return newDeployError(CodeDeployCancelled, domainName, fmt.Sprintf("deployment of %q cancelled", domainName), cause)
}

// AsDeployError unwraps err to the typed deployment error, if any.
func AsDeployError(err error) (*DeployError, bool) {
	var de *DeployError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// PhaseOf classifies an arbitrary error into the coarse phase tag used
// in deployment results. Untyped errors map to PhaseUnknown.
func PhaseOf(err error) Phase {
	if de, ok := AsDeployError(err); ok {
		return de.Phase
	}
	return PhaseUnknown
}

// CodeOf returns the stable error code of err, or an empty code for
// untyped errors.
func CodeOf(err error) ErrorCode {
	if de, ok := AsDeployError(err); ok {
		return de.Code
	}
	return ""
}
