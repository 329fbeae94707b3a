package caddy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/webalive/deployer/config"
	"github.com/webalive/deployer/domain"
)

// PortLister is the slice of the port registry the exporter reads.
type PortLister interface {
	List() ([]*domain.PortAssignment, error)
}

// PortMapExporter mirrors the port registry into the domain→port JSON file
// the preview proxy serves from.
type PortMapExporter struct {
	config *config.Config
	ports  PortLister
}

func NewPortMapExporter(config *config.Config, ports PortLister) *PortMapExporter {
	return &PortMapExporter{
		config: config,
		ports:  ports,
	}
}

// Export rewrites the port map file from the registry. The write is atomic;
// the proxy re-reads the file on a timer and on SIGHUP, so it only ever
// sees complete maps.
func (e *PortMapExporter) Export() error {
	assignments, err := e.ports.List()
	if err != nil {
		return fmt.Errorf("listing port assignments: %w", err)
	}

	portMap := make(map[string]int, len(assignments))
	for _, assignment := range assignments {
		portMap[assignment.Domain] = assignment.Port
	}

	data, err := json.MarshalIndent(portMap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding port map: %w", err)
	}
	data = append(data, '\n')

	path := e.config.PortMapPath
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating port map directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary port map: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing port map: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("setting port map permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temporary port map: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing port map: %w", err)
	}

	slog.Debug("Port map exported", "path", path, "domains", len(portMap))
	return nil
}

// Signal nudges the preview proxy to re-read the port map immediately. The
// proxy also refreshes on a timer, so a failed signal only delays the
// update and is never fatal.
func (e *PortMapExporter) Signal() {
	pidFile := e.config.PreviewProxyPIDFile
	if pidFile == "" {
		return
	}

	data, err := os.ReadFile(pidFile)
	if err != nil {
		slog.Warn("Failed to read preview proxy pidfile", "pidfile", pidFile, "error", err)
		return
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		slog.Warn("Invalid preview proxy pidfile", "pidfile", pidFile, "error", err)
		return
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		slog.Warn("Preview proxy process not found", "pid", pid, "error", err)
		return
	}
	if err := process.Signal(syscall.SIGHUP); err != nil {
		slog.Warn("Failed to signal preview proxy", "pid", pid, "error", err)
		return
	}

	slog.Debug("Signaled preview proxy", "pid", pid)
}
