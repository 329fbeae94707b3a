// Package template resolves site template sources into local directories.
// A source is either a directory already on disk or a git repository that
// gets staged under the tmp dir for the duration of a deployment.
package template

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/webalive/deployer/config"
	"github.com/webalive/deployer/domain"
)

// GitClient is the subset of the git service the resolver needs.
type GitClient interface {
	Clone(ctx context.Context, repoURL string, branch string, auth *domain.TemplateAuthConfig, workingDir string) error
}

// Resolver stages template sources for the filesystem provisioner.
type Resolver struct {
	git    GitClient
	config *config.Config
}

func NewResolver(git GitClient, config *config.Config) *Resolver {
	return &Resolver{
		git:    git,
		config: config,
	}
}

// Resolve returns a directory containing the template files for source,
// plus a cleanup function releasing any staging space. Local sources are
// used in place and their cleanup is a no-op; git sources are shallow-cloned
// under TmpDir and removed by cleanup.
func (r *Resolver) Resolve(ctx context.Context, source domain.TemplateSource) (string, func(), error) {
	if source.IsZero() {
		return "", nil, fmt.Errorf("template source is empty")
	}

	if source.IsGit() {
		return r.stageRepository(ctx, source)
	}

	dir, err := r.validateLocalDir(source.Path)
	if err != nil {
		return "", nil, err
	}
	return dir, func() {}, nil
}

func (r *Resolver) validateLocalDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving template path %q: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("template directory %q does not exist", abs)
		}
		return "", fmt.Errorf("reading template directory %q: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("template path %q is not a directory", abs)
	}
	return abs, nil
}

func (r *Resolver) stageRepository(ctx context.Context, source domain.TemplateSource) (string, func(), error) {
	// Stage each clone in its own directory so concurrent deployments
	// from the same repository never collide.
	stagingDir := filepath.Join(r.config.TmpDir, "template-"+uuid.New().String())

	slog.Info("Staging template repository",
		"repo_url", source.RepoURL,
		"branch", source.Branch,
		"staging_dir", stagingDir)

	if err := r.git.Clone(ctx, source.RepoURL, source.Branch, source.Auth, stagingDir); err != nil {
		removeStagingDir(stagingDir, source.RepoURL)
		return "", nil, fmt.Errorf("cloning template repository %s: %w", source.Describe(), err)
	}

	cleanup := func() {
		removeStagingDir(stagingDir, source.RepoURL)
	}
	return stagingDir, cleanup, nil
}

func removeStagingDir(stagingDir, repoURL string) {
	if err := os.RemoveAll(stagingDir); err != nil {
		slog.Error("Failed to clean up template staging directory",
			"layer", "service",
			"operation", "template_stage_cleanup",
			"repo_url", repoURL,
			"staging_dir", stagingDir,
			"error", err)
	}
}
