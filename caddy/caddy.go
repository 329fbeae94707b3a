// Package caddy maintains the deployer-managed Caddyfile and keeps the
// preview proxy's port map in step with it. All mutations run under a file
// lock so concurrent deployer processes never interleave writes.
package caddy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/webalive/deployer/config"
	"github.com/webalive/deployer/runner"
)

// lockRetryDelay is how often a blocked writer re-attempts the file lock.
const lockRetryDelay = 100 * time.Millisecond

// ErrLockTimeout reports that another process held the Caddyfile lock for
// the whole lock timeout. Retryable, unlike a config write failure.
var ErrLockTimeout = errors.New("timed out waiting for caddyfile lock")

// Configurator rewrites the managed Caddyfile and reloads Caddy.
type Configurator struct {
	config   *config.Config
	runner   runner.Runner
	exporter *PortMapExporter
}

func NewConfigurator(config *config.Config, runner runner.Runner, exporter *PortMapExporter) *Configurator {
	return &Configurator{
		config:   config,
		runner:   runner,
		exporter: exporter,
	}
}

// Upsert points domainName at localhost:port, creating or updating its
// block, then reloads Caddy and refreshes the port map. A block already in
// the desired state skips the write and reload.
func (c *Configurator) Upsert(ctx context.Context, domainName string, port int) error {
	err := c.withLock(ctx, func() error {
		content, err := c.readCaddyfile()
		if err != nil {
			return err
		}

		updated := upsertBlock(content, domainName, port)
		if updated == content {
			slog.Debug("Caddyfile already current", "domain", domainName, "port", port)
			return nil
		}

		slog.Info("Updating Caddyfile", "domain", domainName, "port", port)
		if err := c.writeCaddyfile(updated); err != nil {
			return err
		}
		return c.reload(ctx)
	})
	if err != nil {
		return err
	}
	return c.exportPortMap()
}

// Remove deletes the domain's block. A missing block is not an error; the
// reload is skipped when nothing changed.
func (c *Configurator) Remove(ctx context.Context, domainName string) error {
	err := c.withLock(ctx, func() error {
		content, err := c.readCaddyfile()
		if err != nil {
			return err
		}

		updated, removed := removeBlock(content, domainName)
		if !removed {
			slog.Debug("No Caddyfile block to remove", "domain", domainName)
			return nil
		}

		slog.Info("Removing Caddyfile block", "domain", domainName)
		if err := c.writeCaddyfile(updated); err != nil {
			return err
		}
		return c.reload(ctx)
	})
	if err != nil {
		return err
	}
	return c.exportPortMap()
}

// LookupPort returns the port domainName currently proxies to, or 0 when
// the domain has no block.
func (c *Configurator) LookupPort(domainName string) (int, error) {
	content, err := c.readCaddyfile()
	if err != nil {
		return 0, err
	}
	return blockPort(content, domainName), nil
}

// withLock runs fn while holding the Caddyfile's sibling lock file. Lock
// acquisition waits up to CaddyLockTimeout before giving up with
// ErrLockTimeout.
func (c *Configurator) withLock(ctx context.Context, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(c.config.CaddyfilePath), 0o755); err != nil {
		return fmt.Errorf("creating caddy config directory: %w", err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, c.config.CaddyLockTimeout)
	defer cancel()

	fileLock := flock.New(c.config.CaddyfilePath + ".lock")
	locked, err := fileLock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		// Distinguish our lock timeout from the caller abandoning the
		// deployment.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w after %s", ErrLockTimeout, c.config.CaddyLockTimeout)
		}
		return fmt.Errorf("acquiring caddyfile lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w after %s", ErrLockTimeout, c.config.CaddyLockTimeout)
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			slog.Error("Failed to release caddyfile lock",
				"layer", "caddy",
				"operation", "caddyfile_unlock",
				"lock_path", fileLock.Path(),
				"error", err)
		}
	}()

	return fn()
}

func (c *Configurator) readCaddyfile() (string, error) {
	data, err := os.ReadFile(c.config.CaddyfilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading caddyfile %s: %w", c.config.CaddyfilePath, err)
	}
	return string(data), nil
}

// writeCaddyfile replaces the Caddyfile atomically so a crashed writer or
// concurrent reader never observes a half-written config.
func (c *Configurator) writeCaddyfile(content string) error {
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}

	dir := filepath.Dir(c.config.CaddyfilePath)
	tmp, err := os.CreateTemp(dir, filepath.Base(c.config.CaddyfilePath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary caddyfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temporary caddyfile: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("setting caddyfile permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temporary caddyfile: %w", err)
	}

	if err := os.Rename(tmpName, c.config.CaddyfilePath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing caddyfile: %w", err)
	}
	return nil
}

func (c *Configurator) reload(ctx context.Context) error {
	name, args, err := runner.ParseCommandLine(c.config.CaddyReloadCommand)
	if err != nil {
		return fmt.Errorf("caddy reload command: %w", err)
	}

	result, err := c.runner.Run(ctx, runner.Command{Name: name, Args: args})
	if err != nil {
		return fmt.Errorf("reloading caddy: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("reloading caddy: %q exited %d: %s",
			c.config.CaddyReloadCommand, result.ExitCode, strings.TrimSpace(result.Output))
	}

	slog.Debug("Caddy reloaded")
	return nil
}

func (c *Configurator) exportPortMap() error {
	if c.exporter == nil {
		return nil
	}
	if err := c.exporter.Export(); err != nil {
		return fmt.Errorf("exporting port map: %w", err)
	}
	c.exporter.Signal()
	return nil
}
