package domain

import "fmt"

// TemplateAuthConfig holds authentication for git-sourced site templates
type TemplateAuthConfig struct {
	HTTPAuth *TemplateHTTPAuthConfig
	SSHAuth  *TemplateSSHAuthConfig
}

// TemplateHTTPAuthConfig for HTTP basic authentication (GitHub tokens, etc.)
type TemplateHTTPAuthConfig struct {
	Username string // "token" for GitHub
	Password string // actual token/password
}

// TemplateSSHAuthConfig for passwordless SSH key authentication
type TemplateSSHAuthConfig struct {
	PrivateKey string // PEM-encoded private key as string
	User       string // SSH user (default: "git")
}

// TemplateAuthType represents the template authentication method type
type TemplateAuthType string

const (
	TemplateAuthTypeHTTP TemplateAuthType = "http"
	TemplateAuthTypeSSH  TemplateAuthType = "ssh"
)

// String implements the Stringer interface
func (a TemplateAuthType) String() string {
	return string(a)
}

// IsValid checks if the TemplateAuthType is valid
func (a TemplateAuthType) IsValid() bool {
	switch a {
	case TemplateAuthTypeHTTP, TemplateAuthTypeSSH:
		return true
	default:
		return false
	}
}

// ParseTemplateAuthType parses a string into a TemplateAuthType
func ParseTemplateAuthType(s string) (TemplateAuthType, error) {
	authType := TemplateAuthType(s)
	if !authType.IsValid() {
		return "", fmt.Errorf("invalid auth type: %s", s)
	}
	return authType, nil
}

// TemplateSource describes where a site's initial tree comes from:
// either a local template directory or a git repository. Exactly one
// of Path and RepoURL is set.
type TemplateSource struct {
	Path    string
	RepoURL string
	Branch  string // git branch, empty means the repository default
	Auth    *TemplateAuthConfig
}

// IsGit reports whether the template is fetched from a git repository.
func (t TemplateSource) IsGit() bool {
	return t.RepoURL != ""
}

// IsZero reports whether no template source was provided at all.
func (t TemplateSource) IsZero() bool {
	return t.Path == "" && t.RepoURL == ""
}

// Describe returns a short human-readable identity for logs and errors.
func (t TemplateSource) Describe() string {
	if t.IsGit() {
		if t.Branch != "" {
			return fmt.Sprintf("%s@%s", t.RepoURL, t.Branch)
		}
		return t.RepoURL
	}
	return t.Path
}
