package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/webalive/deployer/config"
	"github.com/webalive/deployer/domain"
	"github.com/webalive/deployer/runner"
)

// buildOutputTail bounds how much captured build output travels inside a
// failure. Full logs stay on the journal; errors carry the useful end.
const buildOutputTail = 2000

// BuildParams carries everything the build phase needs about one site.
type BuildParams struct {
	Username string
	HomeDir  string
	Domain   string
	Slug     string
	Port     int
}

// BuildExecutor writes the site's runtime environment file and runs the
// install/build step as the site's identity, so artifacts end up owned by
// the site user rather than by the deployer.
type BuildExecutor struct {
	config *config.Config
	runner runner.Runner
}

func NewBuildExecutor(config *config.Config, run runner.Runner) *BuildExecutor {
	return &BuildExecutor{
		config: config,
		runner: run,
	}
}

// Build writes the env file and executes the configured build command in
// the site home. A non-zero build exit is fatal and surfaces the output
// tail; there are no retries here.
func (e *BuildExecutor) Build(ctx context.Context, params BuildParams) error {
	if err := e.writeEnvFile(ctx, params); err != nil {
		return err
	}
	return e.runBuild(ctx, params)
}

// EnvFilePath returns where a site's environment file lives. The systemd
// unit template points at the same location.
func (e *BuildExecutor) EnvFilePath(homeDir string) string {
	return filepath.Join(homeDir, e.config.EnvFileName)
}

// writeEnvFile materializes the runtime configuration the service unit
// loads: the allocated port, the site identity, and any operator-supplied
// build variables. Config-supplied variables cannot override the
// deployment-derived ones.
func (e *BuildExecutor) writeEnvFile(ctx context.Context, params BuildParams) error {
	vars := make(map[string]string, len(e.config.BuildEnv)+3)
	for k, v := range e.config.BuildEnv {
		vars[k] = v
	}
	vars["PORT"] = strconv.Itoa(params.Port)
	vars["DOMAIN"] = params.Domain
	vars["SLUG"] = params.Slug

	envPath := e.EnvFilePath(params.HomeDir)
	if err := godotenv.Write(vars, envPath); err != nil {
		return fmt.Errorf("writing env file %s: %w", envPath, err)
	}

	// The site process reads this file at start; it must be readable (and
	// the home writable) by the site user.
	res, err := e.runner.Run(ctx, runner.Command{
		Name: "chown",
		Args: []string{params.Username + ":" + params.Username, envPath},
	})
	if err != nil {
		return fmt.Errorf("fixing env file ownership: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("fixing env file ownership: chown exited %d: %s",
			res.ExitCode, strings.TrimSpace(res.Output))
	}

	slog.Debug("Environment file written", "path", envPath, "port", params.Port)
	return nil
}

func (e *BuildExecutor) runBuild(ctx context.Context, params BuildParams) error {
	name, args, err := runner.ParseCommandLine(e.config.BuildCommand)
	if err != nil {
		return fmt.Errorf("build command: %w", err)
	}

	slog.Info("Building site",
		"domain", params.Domain,
		"user", params.Username,
		"command", e.config.BuildCommand)

	// sudo -u drops to the site identity; -H points HOME at the site home
	// so per-user caches land inside the site tree.
	res, err := e.runner.Run(ctx, runner.Command{
		Name:    "sudo",
		Args:    append([]string{"-u", params.Username, "-H", name}, args...),
		Dir:     params.HomeDir,
		Timeout: e.config.BuildTimeout,
	})
	if err != nil {
		return domain.NewBuildError(params.Domain, "", err)
	}
	if res.ExitCode != 0 {
		slog.Error("Service operation failed",
			"layer", "deploy",
			"operation", "build_site",
			"domain", params.Domain,
			"exit_code", res.ExitCode)
		return domain.NewBuildError(params.Domain, tail(res.Output, buildOutputTail),
			fmt.Errorf("%q exited %d", e.config.BuildCommand, res.ExitCode))
	}

	slog.Info("Site built", "domain", params.Domain)
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
