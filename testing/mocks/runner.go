// Package mocks provides shared test doubles for deployer interfaces.
package mocks

import (
	"context"
	"sync"

	"github.com/webalive/deployer/runner"
)

// MockRunner implements runner.Runner for testing. Every invocation is
// recorded in Commands; RunFunc, when set, controls the outcome.
type MockRunner struct {
	RunFunc func(ctx context.Context, cmd runner.Command) (*runner.Result, error)

	mu       sync.Mutex
	Commands []runner.Command
}

func (m *MockRunner) Run(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
	m.mu.Lock()
	m.Commands = append(m.Commands, cmd)
	m.mu.Unlock()
	if m.RunFunc != nil {
		return m.RunFunc(ctx, cmd)
	}
	return &runner.Result{ExitCode: 0}, nil
}

// CommandLines returns the recorded invocations rendered as command lines,
// in execution order.
func (m *MockRunner) CommandLines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := make([]string, len(m.Commands))
	for i, cmd := range m.Commands {
		lines[i] = cmd.String()
	}
	return lines
}
