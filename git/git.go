// Package git fetches site template repositories.
package git

import (
	"context"
	"fmt"
	"log/slog"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/webalive/deployer/config"
	"github.com/webalive/deployer/domain"
)

type GitService struct {
	config *config.Config
}

func NewGitService(config *config.Config) *GitService {
	return &GitService{
		config: config,
	}
}

// createAuthMethod creates a transport.AuthMethod from TemplateAuthConfig
func (s *GitService) createAuthMethod(auth *domain.TemplateAuthConfig) (transport.AuthMethod, error) {
	if auth == nil {
		return nil, nil // Public repo
	}

	// HTTP authentication (GitHub tokens, etc.)
	if auth.HTTPAuth != nil {
		return &http.BasicAuth{
			Username: auth.HTTPAuth.Username,
			Password: auth.HTTPAuth.Password,
		}, nil
	}

	// SSH key authentication
	if auth.SSHAuth != nil {
		return s.createSSHAuth(auth.SSHAuth)
	}

	// Neither auth method configured = public repo
	return nil, nil
}

// createSSHAuth creates SSH authentication from TemplateSSHAuthConfig
func (s *GitService) createSSHAuth(config *domain.TemplateSSHAuthConfig) (transport.AuthMethod, error) {
	if config == nil {
		return nil, fmt.Errorf("SSH auth config is nil")
	}

	user := config.User
	if user == "" {
		user = "git" // Default for Git operations
	}

	// Use NewPublicKeys with key bytes directly (passwordless)
	keyBytes := []byte(config.PrivateKey)
	return ssh.NewPublicKeys(user, keyBytes, "") // Empty password for passwordless keys
}

// Clone clones a template repository with optional authentication and branch.
// Template fetches are shallow: single branch, depth 1, since the site tree
// keeps no git history.
func (s *GitService) Clone(
	ctx context.Context,
	repoURL string,
	branch string,
	auth *domain.TemplateAuthConfig,
	workingDir string,
) error {
	slog.Info("Cloning template repository", "repo_url", repoURL, "branch", branch, "working_dir", workingDir)

	// Create authentication method
	authMethod, err := s.createAuthMethod(auth)
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "git",
			"operation", "git_clone_auth",
			"repo_url", repoURL,
			"working_dir", workingDir,
			"error", err)
		return fmt.Errorf("failed to create auth method: %w", err)
	}

	// Bound the clone with the configured timeout
	ctx, cancel := context.WithTimeout(ctx, s.config.GitTimeout)
	defer cancel()

	cloneOptions := &gogit.CloneOptions{
		URL:          repoURL,
		SingleBranch: true,
		Depth:        1,
		Auth:         authMethod,
	}

	// If a specific branch is requested, set it in clone options
	if branch != "" {
		cloneOptions.ReferenceName = plumbing.NewBranchReferenceName(branch)
	}

	_, err = gogit.PlainCloneContext(ctx, workingDir, false, cloneOptions)
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "git",
			"operation", "git_clone",
			"repo_url", repoURL,
			"branch", branch,
			"working_dir", workingDir,
			"error", err)
		return fmt.Errorf("failed to clone repository: %w", err)
	}

	slog.Info("Template repository cloned successfully", "repo_url", repoURL, "branch", branch, "working_dir", workingDir)
	return nil
}
