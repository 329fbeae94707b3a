package deploy

import (
	"context"
	"errors"
	"os/user"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webalive/deployer/runner"
	"github.com/webalive/deployer/testing/mocks"
)

func newUserTestManager(run runner.Runner, lookup lookupUserFunc) *SystemUserManager {
	return &SystemUserManager{runner: run, lookupUser: lookup}
}

func userAbsent(username string) (*user.User, error) {
	return nil, user.UnknownUserError(username)
}

func TestSystemUserManager_EnsureUser_CreatesMissingUser(t *testing.T) {
	mockRunner := &mocks.MockRunner{}
	m := newUserTestManager(mockRunner, userAbsent)

	err := m.EnsureUser(context.Background(), "notion-alive-example", "/srv/sites/notion-alive-example")

	require.NoError(t, err)
	require.Len(t, mockRunner.Commands, 1)
	assert.Equal(t,
		"useradd --create-home --home-dir /srv/sites/notion-alive-example --shell /usr/sbin/nologin notion-alive-example",
		mockRunner.Commands[0].String())
}

func TestSystemUserManager_EnsureUser_ExistingUserUntouched(t *testing.T) {
	mockRunner := &mocks.MockRunner{}
	m := newUserTestManager(mockRunner, func(username string) (*user.User, error) {
		return &user.User{Username: username, HomeDir: "/srv/sites/" + username}, nil
	})

	err := m.EnsureUser(context.Background(), "notion-alive-example", "/srv/sites/notion-alive-example")

	require.NoError(t, err)
	assert.Empty(t, mockRunner.Commands, "an existing identity is reused, never recreated")
}

func TestSystemUserManager_EnsureUser_LookupInfrastructureError(t *testing.T) {
	mockRunner := &mocks.MockRunner{}
	m := newUserTestManager(mockRunner, func(username string) (*user.User, error) {
		return nil, errors.New("nss backend unavailable")
	})

	err := m.EnsureUser(context.Background(), "notion-alive-example", "/srv/sites/notion-alive-example")

	require.Error(t, err)
	assert.ErrorContains(t, err, "looking up user")
	assert.Empty(t, mockRunner.Commands)
}

func TestSystemUserManager_EnsureUser_UseraddFails(t *testing.T) {
	mockRunner := &mocks.MockRunner{
		RunFunc: func(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
			return &runner.Result{ExitCode: 1, Output: "useradd: UID range exhausted"}, nil
		},
	}
	m := newUserTestManager(mockRunner, userAbsent)

	err := m.EnsureUser(context.Background(), "notion-alive-example", "/srv/sites/notion-alive-example")

	require.Error(t, err)
	assert.ErrorContains(t, err, "useradd exited 1")
	assert.ErrorContains(t, err, "UID range exhausted")
}

func TestSystemUserManager_EnsureUser_RunnerError(t *testing.T) {
	mockRunner := &mocks.MockRunner{
		RunFunc: func(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
			return nil, errors.New("executable not found")
		},
	}
	m := newUserTestManager(mockRunner, userAbsent)

	err := m.EnsureUser(context.Background(), "notion-alive-example", "/srv/sites/notion-alive-example")

	require.Error(t, err)
	assert.ErrorContains(t, err, "running useradd")
}

func TestSystemUserManager_RemoveUser_LeavesHomeTree(t *testing.T) {
	mockRunner := &mocks.MockRunner{}
	m := newUserTestManager(mockRunner, userAbsent)

	err := m.RemoveUser(context.Background(), "notion-alive-example")

	require.NoError(t, err)
	require.Len(t, mockRunner.Commands, 1)
	// No --remove: the site tree's fate is the teardown options' call,
	// not userdel's.
	assert.Equal(t, "userdel notion-alive-example", mockRunner.Commands[0].String())
}

func TestSystemUserManager_RemoveUser_AlreadyAbsent(t *testing.T) {
	mockRunner := &mocks.MockRunner{
		RunFunc: func(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
			return &runner.Result{ExitCode: userdelExitNoSuchUser, Output: "userdel: user does not exist"}, nil
		},
	}
	m := newUserTestManager(mockRunner, userAbsent)

	assert.NoError(t, m.RemoveUser(context.Background(), "notion-alive-example"))
}

func TestSystemUserManager_RemoveUser_OtherFailure(t *testing.T) {
	mockRunner := &mocks.MockRunner{
		RunFunc: func(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
			return &runner.Result{ExitCode: 8, Output: "userdel: user is currently used by process 4242"}, nil
		},
	}
	m := newUserTestManager(mockRunner, userAbsent)

	err := m.RemoveUser(context.Background(), "notion-alive-example")

	require.Error(t, err)
	assert.ErrorContains(t, err, "userdel exited 8")
}

func TestNewSystemUserManager_DefaultsToSystemLookup(t *testing.T) {
	m := NewSystemUserManager(&mocks.MockRunner{})
	require.NotNil(t, m)
	assert.NotNil(t, m.lookupUser)
}
