package caddy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webalive/deployer/config"
	"github.com/webalive/deployer/domain"
)

func TestPortMapExporter_Export(t *testing.T) {
	cfg := &config.Config{
		PortMapPath: filepath.Join(t.TempDir(), "generated", "port-map.json"),
	}
	lister := &MockPortLister{
		ListFunc: func() ([]*domain.PortAssignment, error) {
			return []*domain.PortAssignment{
				{Domain: "notion.alive.example", Port: 3333},
				{Domain: "blog.alive.example", Port: 3334},
			}, nil
		},
	}

	exporter := NewPortMapExporter(cfg, lister)
	require.NoError(t, exporter.Export())

	data, err := os.ReadFile(cfg.PortMapPath)
	require.NoError(t, err)

	var portMap map[string]int
	require.NoError(t, json.Unmarshal(data, &portMap))
	assert.Equal(t, map[string]int{
		"notion.alive.example": 3333,
		"blog.alive.example":   3334,
	}, portMap)

	// Readable by the preview proxy, which runs as a different user.
	info, err := os.Stat(cfg.PortMapPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestPortMapExporter_Export_EmptyRegistry(t *testing.T) {
	cfg := &config.Config{
		PortMapPath: filepath.Join(t.TempDir(), "port-map.json"),
	}

	exporter := NewPortMapExporter(cfg, &MockPortLister{})
	require.NoError(t, exporter.Export())

	data, err := os.ReadFile(cfg.PortMapPath)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}

func TestPortMapExporter_Export_ReplacesPreviousMap(t *testing.T) {
	cfg := &config.Config{
		PortMapPath: filepath.Join(t.TempDir(), "port-map.json"),
	}
	assignments := []*domain.PortAssignment{
		{Domain: "notion.alive.example", Port: 3333},
	}
	lister := &MockPortLister{
		ListFunc: func() ([]*domain.PortAssignment, error) {
			return assignments, nil
		},
	}

	exporter := NewPortMapExporter(cfg, lister)
	require.NoError(t, exporter.Export())

	assignments = nil
	require.NoError(t, exporter.Export())

	data, err := os.ReadFile(cfg.PortMapPath)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}

func TestPortMapExporter_Export_ListerError(t *testing.T) {
	cfg := &config.Config{
		PortMapPath: filepath.Join(t.TempDir(), "port-map.json"),
	}
	lister := &MockPortLister{
		ListFunc: func() ([]*domain.PortAssignment, error) {
			return nil, fmt.Errorf("database is locked")
		},
	}

	exporter := NewPortMapExporter(cfg, lister)
	err := exporter.Export()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing port assignments")
}

func TestPortMapExporter_Signal_NoPIDFileConfigured(t *testing.T) {
	exporter := NewPortMapExporter(&config.Config{}, &MockPortLister{})

	// Must be a silent no-op.
	exporter.Signal()
}

func TestPortMapExporter_Signal_ToleratesMissingPIDFile(t *testing.T) {
	cfg := &config.Config{
		PreviewProxyPIDFile: filepath.Join(t.TempDir(), "preview-proxy.pid"),
	}
	exporter := NewPortMapExporter(cfg, &MockPortLister{})

	// Warns and keeps going; the proxy refreshes on a timer anyway.
	exporter.Signal()
}

func TestPortMapExporter_Signal_ToleratesGarbagePIDFile(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "preview-proxy.pid")
	require.NoError(t, os.WriteFile(pidFile, []byte("not-a-pid\n"), 0o644))

	cfg := &config.Config{PreviewProxyPIDFile: pidFile}
	exporter := NewPortMapExporter(cfg, &MockPortLister{})

	exporter.Signal()
}
