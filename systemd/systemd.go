// Package systemd supervises site processes through a parameterized unit
// template. One template unit serves every site; instances are addressed as
// <prefix>@<slug>.service so the unit name is derivable from the domain
// alone.
package systemd

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/webalive/deployer/config"
	"github.com/webalive/deployer/runner"
)

// unitTemplate is the canonical template unit content. Installed units are
// compared byte-for-byte against the rendered form and rewritten when stale.
//
//go:embed unit.service.tmpl
var unitTemplate string

// Manager installs the template unit and drives site service instances.
type Manager struct {
	config *config.Config
	runner runner.Runner
}

func NewManager(config *config.Config, runner runner.Runner) *Manager {
	return &Manager{
		config: config,
		runner: runner,
	}
}

// UnitName returns the service unit for a site slug.
func (m *Manager) UnitName(slug string) string {
	return fmt.Sprintf("%s@%s.service", m.config.UnitPrefix, slug)
}

// TemplateUnitPath returns where the template unit file is installed.
func (m *Manager) TemplateUnitPath() string {
	return filepath.Join(m.config.UnitDir, m.config.UnitPrefix+"@.service")
}

func (m *Manager) renderTemplateUnit() (string, error) {
	tmpl, err := template.New("unit").Parse(unitTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing unit template: %w", err)
	}

	data := struct {
		HomeRoot     string
		EnvFileName  string
		StartCommand string
	}{
		HomeRoot:     m.config.HomeRoot,
		EnvFileName:  m.config.EnvFileName,
		StartCommand: m.config.StartCommand,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering unit template: %w", err)
	}
	return buf.String(), nil
}

// EnsureTemplateUnit installs or refreshes the template unit file and
// reloads systemd when the installed content is missing or stale. A current
// installation is left untouched so repeated deployments skip the reload.
func (m *Manager) EnsureTemplateUnit(ctx context.Context) error {
	content, err := m.renderTemplateUnit()
	if err != nil {
		return err
	}

	path := m.TemplateUnitPath()
	installed, err := os.ReadFile(path)
	if err == nil && string(installed) == content {
		slog.Debug("Unit template up to date", "path", path)
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading unit file %s: %w", path, err)
	}

	slog.Info("Installing unit template", "path", path)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing unit file %s: %w", path, err)
	}

	result, err := m.systemctl(ctx, "daemon-reload")
	if err != nil {
		return fmt.Errorf("reloading systemd: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("reloading systemd: systemctl exited %d: %s",
			result.ExitCode, strings.TrimSpace(result.Output))
	}
	return nil
}

// Start enables and (re)starts the site's unit, then verifies it is
// actually running. A unit that is inactive after the start sequence is an
// error; retry policy belongs to the operator, not here.
func (m *Manager) Start(ctx context.Context, slug string) error {
	unit := m.UnitName(slug)
	slog.Info("Starting site service", "unit", unit)

	if err := m.systemctlExpectSuccess(ctx, "enable", "--now", unit); err != nil {
		return fmt.Errorf("enabling unit %s: %w", unit, err)
	}
	// Restart picks up new code and environment when the instance was
	// already running before this deployment.
	if err := m.systemctlExpectSuccess(ctx, "restart", unit); err != nil {
		return fmt.Errorf("restarting unit %s: %w", unit, err)
	}

	active, err := m.IsActive(ctx, slug)
	if err != nil {
		return fmt.Errorf("verifying unit %s: %w", unit, err)
	}
	if !active {
		detail := m.statusDetail(ctx, unit)
		return fmt.Errorf("unit %s is not active after start: %s", unit, detail)
	}

	slog.Info("Site service running", "unit", unit)
	return nil
}

// Stop stops the site's unit. Already-stopped and never-registered units
// are tolerated; a unit that is still active after the stop attempt is an
// error.
func (m *Manager) Stop(ctx context.Context, slug string) error {
	unit := m.UnitName(slug)
	slog.Info("Stopping site service", "unit", unit)

	result, err := m.systemctl(ctx, "stop", unit)
	if err != nil {
		return fmt.Errorf("stopping unit %s: %w", unit, err)
	}
	if result.ExitCode == 0 {
		return nil
	}

	// Non-zero exit covers both "not loaded" (fine for teardown) and a
	// genuine stop failure. Only the unit's state distinguishes them.
	active, activeErr := m.IsActive(ctx, slug)
	if activeErr != nil {
		return fmt.Errorf("stopping unit %s: %w", unit, activeErr)
	}
	if active {
		return fmt.Errorf("unit %s is still active after stop: %s",
			unit, strings.TrimSpace(result.Output))
	}

	slog.Debug("Unit was not loaded, nothing to stop", "unit", unit)
	return nil
}

// Disable removes the unit's boot registration. Never-enabled and unknown
// units are tolerated.
func (m *Manager) Disable(ctx context.Context, slug string) error {
	unit := m.UnitName(slug)
	slog.Info("Disabling site service", "unit", unit)

	result, err := m.systemctl(ctx, "disable", unit)
	if err != nil {
		return fmt.Errorf("disabling unit %s: %w", unit, err)
	}
	if result.ExitCode == 0 {
		return nil
	}

	enabled, enabledErr := m.isEnabled(ctx, unit)
	if enabledErr != nil {
		return fmt.Errorf("disabling unit %s: %w", unit, enabledErr)
	}
	if enabled {
		return fmt.Errorf("unit %s is still enabled after disable: %s",
			unit, strings.TrimSpace(result.Output))
	}

	slog.Debug("Unit was not enabled, nothing to disable", "unit", unit)
	return nil
}

// IsActive reports whether the site's unit is currently running. Unknown
// units are simply not active.
func (m *Manager) IsActive(ctx context.Context, slug string) (bool, error) {
	unit := m.UnitName(slug)

	result, err := m.systemctl(ctx, "is-active", unit)
	if err != nil {
		return false, fmt.Errorf("querying unit %s: %w", unit, err)
	}
	return strings.TrimSpace(result.Output) == "active", nil
}

func (m *Manager) isEnabled(ctx context.Context, unit string) (bool, error) {
	result, err := m.systemctl(ctx, "is-enabled", unit)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(result.Output) == "enabled", nil
}

// statusDetail returns a short status excerpt for start-failure errors.
// systemctl status exits non-zero for failed units; the output is what
// matters here.
func (m *Manager) statusDetail(ctx context.Context, unit string) string {
	result, err := m.systemctl(ctx, "status", unit, "--no-pager", "--lines=10")
	if err != nil || result.Output == "" {
		return "no status available"
	}
	return strings.TrimSpace(result.Output)
}

func (m *Manager) systemctl(ctx context.Context, args ...string) (*runner.Result, error) {
	return m.runner.Run(ctx, runner.Command{Name: "systemctl", Args: args})
}

func (m *Manager) systemctlExpectSuccess(ctx context.Context, args ...string) error {
	result, err := m.systemctl(ctx, args...)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("systemctl exited %d: %s", result.ExitCode, strings.TrimSpace(result.Output))
	}
	return nil
}
