package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/user"
	"strings"

	"github.com/webalive/deployer/runner"
)

// userdel exit code tolerated on removal, so repeated teardowns stay
// idempotent.
const userdelExitNoSuchUser = 6

// lookupUserFunc matches user.Lookup. Tests substitute it.
type lookupUserFunc func(username string) (*user.User, error)

// SystemUserManager provisions per-site OS identities. Each site runs
// as its own user named after the slug, with the site home as its home
// directory and no login shell.
type SystemUserManager struct {
	runner     runner.Runner
	lookupUser lookupUserFunc
}

func NewSystemUserManager(run runner.Runner) *SystemUserManager {
	return &SystemUserManager{
		runner:     run,
		lookupUser: user.Lookup,
	}
}

// EnsureUser creates the named system user with the given home
// directory if it does not exist. An existing user is left untouched,
// so redeploys keep their identity.
func (m *SystemUserManager) EnsureUser(ctx context.Context, username, homeDir string) error {
	_, err := m.lookupUser(username)
	if err == nil {
		slog.Debug("System user already exists", "user", username)
		return nil
	}
	var unknown user.UnknownUserError
	if !errors.As(err, &unknown) {
		return fmt.Errorf("looking up user %s: %w", username, err)
	}

	res, err := m.runner.Run(ctx, runner.Command{
		Name: "useradd",
		Args: []string{
			"--create-home",
			"--home-dir", homeDir,
			"--shell", "/usr/sbin/nologin",
			username,
		},
	})
	if err != nil {
		return fmt.Errorf("running useradd: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("useradd exited %d: %s", res.ExitCode, strings.TrimSpace(res.Output))
	}

	slog.Info("System user created", "user", username, "home", homeDir)
	return nil
}

// RemoveUser deletes the user account. The home tree is deliberately left
// alone: its removal is the filesystem provisioner's job, and a teardown
// asked to keep files must not lose them to userdel. An already-absent
// user counts as success.
func (m *SystemUserManager) RemoveUser(ctx context.Context, username string) error {
	res, err := m.runner.Run(ctx, runner.Command{
		Name: "userdel",
		Args: []string{username},
	})
	if err != nil {
		return fmt.Errorf("running userdel: %w", err)
	}

	switch res.ExitCode {
	case 0:
		slog.Info("System user removed", "user", username)
		return nil
	case userdelExitNoSuchUser:
		slog.Debug("System user already absent", "user", username)
		return nil
	default:
		return fmt.Errorf("userdel exited %d: %s", res.ExitCode, strings.TrimSpace(res.Output))
	}
}
