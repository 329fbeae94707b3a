package domain

import "github.com/google/uuid"

// DeployConfig is the immutable input of one deployment call. ServerIP
// and WildcardDomain have no implicit defaults: leaving either empty is
// a loud pre-flight failure, not a silent degradation.
type DeployConfig struct {
	Domain            string
	Slug              string // derived from Domain when empty
	Template          TemplateSource
	ServerIP          string
	WildcardDomain    string
	RollbackOnFailure bool
	Force             bool // redeploy over an existing running site
}

// NewDeployConfig returns a DeployConfig with rollback enabled, the
// documented default. Callers that want a partial debris-preserving
// failure mode must disable it explicitly.
func NewDeployConfig(domainName string, template TemplateSource) DeployConfig {
	return DeployConfig{
		Domain:            domainName,
		Template:          template,
		RollbackOnFailure: true,
	}
}

// DeployResult is the outcome of one deployment call. FailedPhase is
// the coarse classification used for diagnostics and alerting; control
// flow branches on the typed error, not on this field.
type DeployResult struct {
	Domain       string
	Port         int
	ServiceName  string
	Success      bool
	FailedPhase  Phase
	Err          error
	DeploymentID uuid.UUID
}

// TeardownOptions selects which durable resources an explicit teardown
// removes. The proxy rule is always removed and the service always
// stopped; these options gate the destructive remainder.
type TeardownOptions struct {
	RemoveUser  bool
	RemoveFiles bool
	RemovePort  bool
}

// FullTeardown removes everything a deployment provisioned. This is
// the rollback contract: a failed deployment leaves a clean slate.
func FullTeardown() TeardownOptions {
	return TeardownOptions{RemoveUser: true, RemoveFiles: true, RemovePort: true}
}
