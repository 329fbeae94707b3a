package deploy

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/webalive/deployer/runner"
)

// FilesystemProvisioner materializes a site's working tree from a template
// and hands ownership to the site's identity. Copying runs through cp so
// permissions and symlinks inside the template survive.
type FilesystemProvisioner struct {
	runner runner.Runner
}

func NewFilesystemProvisioner(run runner.Runner) *FilesystemProvisioner {
	return &FilesystemProvisioner{runner: run}
}

// Provision copies templateDir's contents into targetDir, strips git
// metadata, and chowns the whole tree to username. targetDir is created
// when missing; useradd normally made it already.
func (p *FilesystemProvisioner) Provision(ctx context.Context, username, targetDir, templateDir string) error {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("creating site directory %s: %w", targetDir, err)
	}

	// The /. suffix copies the directory's contents, dotfiles included,
	// instead of the directory itself.
	res, err := p.runner.Run(ctx, runner.Command{
		Name: "cp",
		Args: []string{"-a", templateDir + "/.", targetDir + "/"},
	})
	if err != nil {
		return fmt.Errorf("copying template: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("copying template: cp exited %d: %s", res.ExitCode, strings.TrimSpace(res.Output))
	}

	if err := stripGitMetadata(targetDir); err != nil {
		return err
	}

	owner := username + ":" + username
	res, err = p.runner.Run(ctx, runner.Command{
		Name: "chown",
		Args: []string{"-R", owner, targetDir},
	})
	if err != nil {
		return fmt.Errorf("fixing ownership: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("fixing ownership: chown exited %d: %s", res.ExitCode, strings.TrimSpace(res.Output))
	}

	slog.Info("Site tree provisioned", "target_dir", targetDir, "owner", username)
	return nil
}

// Remove deletes the entire site tree. Rollback never attempts partial
// cleanup; a half-copied tree goes away wholesale.
func (p *FilesystemProvisioner) Remove(targetDir string) error {
	if err := os.RemoveAll(targetDir); err != nil {
		return fmt.Errorf("removing site directory %s: %w", targetDir, err)
	}
	slog.Debug("Site tree removed", "target_dir", targetDir)
	return nil
}

// stripGitMetadata removes .git entries anywhere in the copied tree, the
// same way a repository import discards history. Both directories (clones)
// and files (submodule gitlinks) are covered.
func stripGitMetadata(root string) error {
	var gitPaths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Name() == ".git" {
			gitPaths = append(gitPaths, path)
			if d.IsDir() {
				return filepath.SkipDir
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning for git metadata in %s: %w", root, err)
	}

	for _, path := range gitPaths {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("removing git metadata %s: %w", path, err)
		}
		slog.Debug("Removed git metadata", "path", path)
	}
	return nil
}
