package deploy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webalive/deployer/runner"
	"github.com/webalive/deployer/testing/mocks"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFilesystemProvisioner_Provision_CommandSequence(t *testing.T) {
	mockRunner := &mocks.MockRunner{}
	p := NewFilesystemProvisioner(mockRunner)
	templateDir := t.TempDir()
	targetDir := filepath.Join(t.TempDir(), "site")

	err := p.Provision(context.Background(), "notion-alive-example", targetDir, templateDir)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"cp -a " + templateDir + "/. " + targetDir + "/",
		"chown -R notion-alive-example:notion-alive-example " + targetDir,
	}, mockRunner.CommandLines())
	assert.DirExists(t, targetDir)
}

func TestFilesystemProvisioner_Provision_StripsGitMetadata(t *testing.T) {
	targetDir := t.TempDir()

	// The tree as cp would have left it: a clone's .git directory and a
	// submodule's .git link file, next to real site content.
	writeTestFile(t, filepath.Join(targetDir, ".git", "config"), "[core]")
	writeTestFile(t, filepath.Join(targetDir, ".git", "HEAD"), "ref: refs/heads/main")
	writeTestFile(t, filepath.Join(targetDir, "vendor", "widget", ".git"), "gitdir: ../../.git/modules/widget")
	writeTestFile(t, filepath.Join(targetDir, "src", "index.ts"), "export {}")
	writeTestFile(t, filepath.Join(targetDir, ".env.example"), "PORT=3000")

	p := NewFilesystemProvisioner(&mocks.MockRunner{})
	err := p.Provision(context.Background(), "notion-alive-example", targetDir, t.TempDir())

	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(targetDir, ".git"))
	assert.NoFileExists(t, filepath.Join(targetDir, "vendor", "widget", ".git"))
	assert.FileExists(t, filepath.Join(targetDir, "src", "index.ts"))
	assert.FileExists(t, filepath.Join(targetDir, ".env.example"))
}

func TestFilesystemProvisioner_Provision_CopyFails(t *testing.T) {
	mockRunner := &mocks.MockRunner{
		RunFunc: func(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
			if cmd.Name == "cp" {
				return &runner.Result{ExitCode: 1, Output: "cp: cannot stat"}, nil
			}
			return &runner.Result{ExitCode: 0}, nil
		},
	}
	p := NewFilesystemProvisioner(mockRunner)

	err := p.Provision(context.Background(), "notion-alive-example", t.TempDir(), t.TempDir())

	require.Error(t, err)
	assert.ErrorContains(t, err, "cp exited 1")
	assert.Len(t, mockRunner.Commands, 1, "a failed copy stops before chown")
}

func TestFilesystemProvisioner_Provision_ChownFails(t *testing.T) {
	mockRunner := &mocks.MockRunner{
		RunFunc: func(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
			if cmd.Name == "chown" {
				return &runner.Result{ExitCode: 1, Output: "chown: invalid user"}, nil
			}
			return &runner.Result{ExitCode: 0}, nil
		},
	}
	p := NewFilesystemProvisioner(mockRunner)

	err := p.Provision(context.Background(), "nosuchuser", t.TempDir(), t.TempDir())

	require.Error(t, err)
	assert.ErrorContains(t, err, "chown exited 1")
}

func TestFilesystemProvisioner_Provision_RunnerError(t *testing.T) {
	mockRunner := &mocks.MockRunner{
		RunFunc: func(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
			return nil, errors.New("fork failed")
		},
	}
	p := NewFilesystemProvisioner(mockRunner)

	err := p.Provision(context.Background(), "notion-alive-example", t.TempDir(), t.TempDir())

	require.Error(t, err)
	assert.ErrorContains(t, err, "copying template")
}

func TestFilesystemProvisioner_Remove(t *testing.T) {
	p := NewFilesystemProvisioner(&mocks.MockRunner{})
	targetDir := t.TempDir()
	writeTestFile(t, filepath.Join(targetDir, "src", "index.ts"), "export {}")

	require.NoError(t, p.Remove(targetDir))
	assert.NoDirExists(t, targetDir)
}

func TestFilesystemProvisioner_Remove_AbsentTree(t *testing.T) {
	p := NewFilesystemProvisioner(&mocks.MockRunner{})

	assert.NoError(t, p.Remove(filepath.Join(t.TempDir(), "never-created")))
}
