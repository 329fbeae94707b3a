package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeployErrorPhaseClassification(t *testing.T) {
	tests := []struct {
		name          string
		err           *DeployError
		expectedCode  ErrorCode
		expectedPhase Phase
	}{
		{
			name:          "invalid domain is a validation failure",
			err:           NewInvalidDomainError("bad_domain", "illegal character"),
			expectedCode:  CodeInvalidDomain,
			expectedPhase: PhaseValidation,
		},
		{
			name:          "path traversal is a validation failure",
			err:           NewPathTraversalError("../etc/passwd"),
			expectedCode:  CodePathTraversal,
			expectedPhase: PhaseValidation,
		},
		{
			name:          "dns mismatch",
			err:           NewDNSValidationError("example.com", "resolves elsewhere", nil),
			expectedCode:  CodeDNSValidationFailed,
			expectedPhase: PhaseDNS,
		},
		{
			name:          "port exhaustion",
			err:           NewPortsExhaustedError("example.com", 3333, 3999),
			expectedCode:  CodePortsExhausted,
			expectedPhase: PhasePort,
		},
		{
			name:          "user creation",
			err:           NewUserCreationError("example.com", "example-com", errors.New("useradd: cannot lock /etc/passwd")),
			expectedCode:  CodeUserCreationFailed,
			expectedPhase: PhaseUser,
		},
		{
			name:          "template fetch classifies as filesystem phase",
			err:           NewTemplateFetchError("example.com", "https://github.com/acme/tpl", errors.New("authentication failed")),
			expectedCode:  CodeTemplateFetchFailed,
			expectedPhase: PhaseFilesystem,
		},
		{
			name:          "build failure",
			err:           NewBuildError("example.com", "exit status 1", errors.New("exit status 1")),
			expectedCode:  CodeBuildFailed,
			expectedPhase: PhaseBuild,
		},
		{
			name:          "service start failure",
			err:           NewServiceStartError("example.com", "webalive-site@example-com.service", errors.New("inactive")),
			expectedCode:  CodeServiceStartFailed,
			expectedPhase: PhaseService,
		},
		{
			name:          "caddy lock timeout",
			err:           NewCaddyLockTimeoutError("example.com", nil),
			expectedCode:  CodeCaddyLockTimeout,
			expectedPhase: PhaseCaddy,
		},
		{
			name:          "caddy write failure",
			err:           NewCaddyConfigError("example.com", errors.New("malformed block")),
			expectedCode:  CodeCaddyConfigFailed,
			expectedPhase: PhaseCaddy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedCode, tt.err.Code)
			assert.Equal(t, tt.expectedPhase, tt.err.Phase)
		})
	}
}

func TestDeployErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewCaddyConfigError("example.com", cause)

	assert.ErrorIs(t, err, cause)

	// A wrapped DeployError is still recoverable via errors.As.
	wrapped := fmt.Errorf("deploy failed: %w", err)
	de, ok := AsDeployError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeCaddyConfigFailed, de.Code)
}

func TestPhaseOf(t *testing.T) {
	assert.Equal(t, PhaseDNS, PhaseOf(NewDNSValidationError("a.example", "no records", nil)))
	assert.Equal(t, PhaseUnknown, PhaseOf(errors.New("untyped")))
	assert.Equal(t, PhaseUnknown, PhaseOf(nil))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeSiteExists, CodeOf(NewSiteExistsError("a.example")))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("untyped")))
}

func TestDeployErrorMessageOmitsCode(t *testing.T) {
	err := NewBuildError("example.com", "", errors.New("exit status 2"))
	assert.NotContains(t, err.Message(), string(CodeBuildFailed))
	assert.Contains(t, err.Error(), string(CodeBuildFailed))
}

func TestEveryCodeHasAPhase(t *testing.T) {
	codes := []ErrorCode{
		CodeInvalidDomain, CodePathTraversal, CodeInvalidConfig, CodeSiteExists,
		CodeDNSValidationFailed, CodePortAssignmentFailed, CodePortsExhausted,
		CodeUserCreationFailed, CodeFilesystemError, CodeTemplateFetchFailed,
		CodeBuildFailed, CodeServiceStartFailed, CodeCaddyConfigFailed,
		CodeCaddyLockTimeout, CodeDeployCancelled,
	}
	for _, code := range codes {
		_, ok := phaseForCode[code]
		assert.True(t, ok, "code %s has no phase mapping", code)
	}
}
