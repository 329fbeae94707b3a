// Package config provides configuration for all deployer services.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	TmpDir       = "tmp"
	GeneratedDir = "generated"
	DatabaseFile = "deployer.db"
	PortMapFile  = "port-map.json"
)

// EnvProvider abstracts environment variable access for testing
type EnvProvider interface {
	Getenv(key string) string
	UserHomeDir() (string, error)
}

// DefaultEnvProvider implements EnvProvider using real OS functions
type DefaultEnvProvider struct{}

func (p *DefaultEnvProvider) Getenv(key string) string {
	return os.Getenv(key)
}

func (p *DefaultEnvProvider) UserHomeDir() (string, error) {
	return os.UserHomeDir()
}

// GetDefaultDataDir returns the default deployer data directory following XDG Base Directory specification
func GetDefaultDataDir() string {
	return getDefaultDataDirWithEnv(&DefaultEnvProvider{})
}

// getDefaultDataDirWithEnv allows dependency injection for testing
func getDefaultDataDirWithEnv(env EnvProvider) string {
	// Use XDG_DATA_HOME if set, otherwise fallback to ~/.local/share
	xdgDataHome := env.Getenv("XDG_DATA_HOME")
	if xdgDataHome != "" {
		return filepath.Join(xdgDataHome, "deployer")
	}

	homeDir, _ := env.UserHomeDir()
	return filepath.Join(homeDir, ".local", "share", "deployer")
}

// Config holds configuration for all services
type Config struct {
	// Core paths
	DataDir      string
	DatabasePath string
	TmpDir       string
	HomeRoot     string

	// Logging
	LogLevel     string
	ColorEnabled bool

	// Deployment target
	ServerIP       string
	WildcardDomain string

	// DNS validation
	DNSTimeout time.Duration

	// Port allocation (inclusive range)
	PortRangeStart int
	PortRangeEnd   int

	// Build
	BuildCommand string
	BuildTimeout time.Duration
	BuildEnv     map[string]string
	EnvFileName  string

	// systemd
	UnitPrefix   string
	UnitDir      string
	StartCommand string

	// Caddy
	CaddyfilePath       string
	CaddyReloadCommand  string
	CaddyLockTimeout    time.Duration
	PortMapPath         string
	PreviewProxyPIDFile string

	// HTTP server
	HTTPHost string
	HTTPPort int

	// Git
	GitTimeout time.Duration

	// Watcher
	PollInterval time.Duration

	// Encryption
	EncryptionKey string

	// Error reporting
	SentryDSN string

	// Environment provider for testing
	env EnvProvider
}

// NewConfigForCLI creates a new configuration for CLI usage with optional
// config file and data directory overrides
func NewConfigForCLI(cliConfigFile, cliDataDir string) (*Config, error) {
	return newConfigWithEnv(&DefaultEnvProvider{}, cliConfigFile, cliDataDir)
}

// NewConfigForCLIWithEnv creates a new configuration with custom environment provider (for testing)
func NewConfigForCLIWithEnv(env EnvProvider, cliConfigFile, cliDataDir string) (*Config, error) {
	return newConfigWithEnv(env, cliConfigFile, cliDataDir)
}

func newConfigWithEnv(env EnvProvider, cliConfigFile, cliDataDir string) (*Config, error) {
	c := &Config{env: env}

	// Set defaults first
	c.setDefaults()

	// Override with config file values (if a file is provided)
	configFile := cliConfigFile
	if configFile == "" {
		configFile = env.Getenv("DEPLOYER_CONFIG")
	}
	if configFile != "" {
		if err := c.loadFromFile(configFile); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables
	c.loadFromEnv()

	// Override with CLI flags (if provided)
	if cliDataDir != "" {
		c.DataDir = cliDataDir
	}

	// Derive dependent paths
	c.derivePaths()

	// Try to read encryption key from .env file as fallback (after data dir is finalized)
	if c.EncryptionKey == "" {
		if key := c.readEncryptionKeyFromEnvFile(); key != "" {
			c.EncryptionKey = key
		}
	}

	// Validate
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return c, nil
}

// setDefaults sets sensible default values
func (c *Config) setDefaults() {
	c.DataDir = getDefaultDataDirWithEnv(c.env)
	c.HomeRoot = "/srv/sites"
	c.LogLevel = "info"
	c.ColorEnabled = true
	c.DNSTimeout = 10 * time.Second
	c.PortRangeStart = 3333
	c.PortRangeEnd = 3999
	c.BuildCommand = "bun install"
	c.BuildTimeout = 10 * time.Minute
	c.EnvFileName = ".env"
	c.UnitPrefix = "webalive-site"
	c.UnitDir = "/etc/systemd/system"
	c.StartCommand = "bun run start"
	c.CaddyfilePath = "/etc/caddy/sites.caddy"
	c.CaddyReloadCommand = "systemctl reload caddy"
	c.CaddyLockTimeout = 10 * time.Second
	c.HTTPHost = "127.0.0.1"
	c.HTTPPort = 8080
	c.GitTimeout = 5 * time.Minute
	c.PollInterval = 1 * time.Minute
	// Don't set default encryption key - it must be provided explicitly
}

// fileConfig mirrors Config for YAML decoding. Pointer fields distinguish
// "absent" from zero values so the file only overrides what it sets.
// Durations are strings in time.ParseDuration format.
type fileConfig struct {
	DataDir             *string           `yaml:"data_dir"`
	DatabasePath        *string           `yaml:"database_path"`
	HomeRoot            *string           `yaml:"home_root"`
	LogLevel            *string           `yaml:"log_level"`
	ColorEnabled        *bool             `yaml:"color_enabled"`
	ServerIP            *string           `yaml:"server_ip"`
	WildcardDomain      *string           `yaml:"wildcard_domain"`
	DNSTimeout          *string           `yaml:"dns_timeout"`
	PortRangeStart      *int              `yaml:"port_range_start"`
	PortRangeEnd        *int              `yaml:"port_range_end"`
	BuildCommand        *string           `yaml:"build_command"`
	BuildTimeout        *string           `yaml:"build_timeout"`
	BuildEnv            map[string]string `yaml:"build_env"`
	EnvFileName         *string           `yaml:"env_file_name"`
	UnitPrefix          *string           `yaml:"unit_prefix"`
	UnitDir             *string           `yaml:"unit_dir"`
	StartCommand        *string           `yaml:"start_command"`
	CaddyfilePath       *string           `yaml:"caddyfile_path"`
	CaddyReloadCommand  *string           `yaml:"caddy_reload_command"`
	CaddyLockTimeout    *string           `yaml:"caddy_lock_timeout"`
	PortMapPath         *string           `yaml:"port_map_path"`
	PreviewProxyPIDFile *string           `yaml:"preview_proxy_pid_file"`
	HTTPHost            *string           `yaml:"http_host"`
	HTTPPort            *int              `yaml:"http_port"`
	GitTimeout          *string           `yaml:"git_timeout"`
	PollInterval        *string           `yaml:"poll_interval"`
	EncryptionKey       *string           `yaml:"encryption_key"`
	SentryDSN           *string           `yaml:"sentry_dsn"`
}

// loadFromFile loads configuration from a YAML file
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setDuration := func(dst *time.Duration, src *string) error {
		if src == nil {
			return nil
		}
		d, err := time.ParseDuration(*src)
		if err != nil {
			return fmt.Errorf("parsing duration %q in %s: %w", *src, path, err)
		}
		*dst = d
		return nil
	}

	setString(&c.DataDir, fc.DataDir)
	setString(&c.DatabasePath, fc.DatabasePath)
	setString(&c.HomeRoot, fc.HomeRoot)
	setString(&c.LogLevel, fc.LogLevel)
	if fc.ColorEnabled != nil {
		c.ColorEnabled = *fc.ColorEnabled
	}
	setString(&c.ServerIP, fc.ServerIP)
	setString(&c.WildcardDomain, fc.WildcardDomain)
	setString(&c.BuildCommand, fc.BuildCommand)
	if fc.BuildEnv != nil {
		c.BuildEnv = fc.BuildEnv
	}
	setString(&c.EnvFileName, fc.EnvFileName)
	setString(&c.UnitPrefix, fc.UnitPrefix)
	setString(&c.UnitDir, fc.UnitDir)
	setString(&c.StartCommand, fc.StartCommand)
	setString(&c.CaddyfilePath, fc.CaddyfilePath)
	setString(&c.CaddyReloadCommand, fc.CaddyReloadCommand)
	setString(&c.PortMapPath, fc.PortMapPath)
	setString(&c.PreviewProxyPIDFile, fc.PreviewProxyPIDFile)
	setString(&c.HTTPHost, fc.HTTPHost)
	setString(&c.EncryptionKey, fc.EncryptionKey)
	setString(&c.SentryDSN, fc.SentryDSN)
	setInt(&c.PortRangeStart, fc.PortRangeStart)
	setInt(&c.PortRangeEnd, fc.PortRangeEnd)
	setInt(&c.HTTPPort, fc.HTTPPort)

	for _, item := range []struct {
		dst *time.Duration
		src *string
	}{
		{&c.DNSTimeout, fc.DNSTimeout},
		{&c.BuildTimeout, fc.BuildTimeout},
		{&c.CaddyLockTimeout, fc.CaddyLockTimeout},
		{&c.GitTimeout, fc.GitTimeout},
		{&c.PollInterval, fc.PollInterval},
	} {
		if err := setDuration(item.dst, item.src); err != nil {
			return err
		}
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if v := c.env.Getenv("DEPLOYER_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := c.env.Getenv("DEPLOYER_DATABASE_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := c.env.Getenv("DEPLOYER_HOME_ROOT"); v != "" {
		c.HomeRoot = v
	}
	if v := c.env.Getenv("DEPLOYER_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := c.env.Getenv("DEPLOYER_COLOR_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.ColorEnabled = enabled
		}
	}
	if v := c.env.Getenv("DEPLOYER_SERVER_IP"); v != "" {
		c.ServerIP = v
	}
	if v := c.env.Getenv("DEPLOYER_WILDCARD_DOMAIN"); v != "" {
		c.WildcardDomain = v
	}
	if v := c.env.Getenv("DEPLOYER_DNS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.DNSTimeout = d
		}
	}
	if v := c.env.Getenv("DEPLOYER_PORT_RANGE_START"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.PortRangeStart = port
		}
	}
	if v := c.env.Getenv("DEPLOYER_PORT_RANGE_END"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.PortRangeEnd = port
		}
	}
	if v := c.env.Getenv("DEPLOYER_BUILD_COMMAND"); v != "" {
		c.BuildCommand = v
	}
	if v := c.env.Getenv("DEPLOYER_BUILD_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.BuildTimeout = d
		}
	}
	if v := c.env.Getenv("DEPLOYER_ENV_FILE_NAME"); v != "" {
		c.EnvFileName = v
	}
	if v := c.env.Getenv("DEPLOYER_UNIT_PREFIX"); v != "" {
		c.UnitPrefix = v
	}
	if v := c.env.Getenv("DEPLOYER_UNIT_DIR"); v != "" {
		c.UnitDir = v
	}
	if v := c.env.Getenv("DEPLOYER_START_COMMAND"); v != "" {
		c.StartCommand = v
	}
	if v := c.env.Getenv("DEPLOYER_CADDYFILE_PATH"); v != "" {
		c.CaddyfilePath = v
	}
	if v := c.env.Getenv("DEPLOYER_CADDY_RELOAD_COMMAND"); v != "" {
		c.CaddyReloadCommand = v
	}
	if v := c.env.Getenv("DEPLOYER_CADDY_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.CaddyLockTimeout = d
		}
	}
	if v := c.env.Getenv("DEPLOYER_PORT_MAP_PATH"); v != "" {
		c.PortMapPath = v
	}
	if v := c.env.Getenv("DEPLOYER_PREVIEW_PROXY_PID_FILE"); v != "" {
		c.PreviewProxyPIDFile = v
	}
	if v := c.env.Getenv("DEPLOYER_HTTP_HOST"); v != "" {
		c.HTTPHost = v
	}
	if v := c.env.Getenv("DEPLOYER_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HTTPPort = port
		}
	}
	if v := c.env.Getenv("DEPLOYER_GIT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.GitTimeout = d
		}
	}
	if v := c.env.Getenv("DEPLOYER_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PollInterval = d
		}
	}
	if v := c.env.Getenv("DEPLOYER_ENCRYPTION_KEY"); v != "" {
		c.EncryptionKey = v
	}
	if v := c.env.Getenv("DEPLOYER_SENTRY_DSN"); v != "" {
		c.SentryDSN = v
	}
}

// readEncryptionKeyFromEnvFile attempts to read DEPLOYER_ENCRYPTION_KEY from .env file in data directory
func (c *Config) readEncryptionKeyFromEnvFile() string {
	envFile := filepath.Join(c.DataDir, ".env")

	envVars, err := godotenv.Read(envFile)
	if err != nil {
		// .env file doesn't exist or can't be read, that's okay
		return ""
	}

	return envVars["DEPLOYER_ENCRYPTION_KEY"]
}

// derivePaths calculates dependent paths from the base DataDir
func (c *Config) derivePaths() {
	c.TmpDir = filepath.Join(c.DataDir, TmpDir)

	// Set default database path if not explicitly configured
	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(c.DataDir, DatabaseFile)
	}

	// Port map lives next to other generated artifacts unless overridden
	if c.PortMapPath == "" {
		c.PortMapPath = filepath.Join(c.DataDir, GeneratedDir, PortMapFile)
	}
}

// validate ensures configuration values are valid
func (c *Config) validate() error {
	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warning": true, "error": true, "silent": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warning, error, or silent)", c.LogLevel)
	}

	// Validate port allocation range
	if c.PortRangeStart < 1 || c.PortRangeStart > 65535 {
		return fmt.Errorf("invalid port range start: %d (must be 1-65535)", c.PortRangeStart)
	}
	if c.PortRangeEnd < 1 || c.PortRangeEnd > 65535 {
		return fmt.Errorf("invalid port range end: %d (must be 1-65535)", c.PortRangeEnd)
	}
	if c.PortRangeStart > c.PortRangeEnd {
		return fmt.Errorf("invalid port range: start %d is greater than end %d", c.PortRangeStart, c.PortRangeEnd)
	}

	// Validate HTTP port
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d (must be 1-65535)", c.HTTPPort)
	}

	// Validate timeouts
	if c.DNSTimeout <= 0 {
		return fmt.Errorf("DNS timeout must be positive, got: %v", c.DNSTimeout)
	}
	if c.BuildTimeout <= 0 {
		return fmt.Errorf("build timeout must be positive, got: %v", c.BuildTimeout)
	}
	if c.CaddyLockTimeout <= 0 {
		return fmt.Errorf("caddy lock timeout must be positive, got: %v", c.CaddyLockTimeout)
	}
	if c.GitTimeout <= 0 {
		return fmt.Errorf("git timeout must be positive, got: %v", c.GitTimeout)
	}

	// Validate poll interval
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got: %v", c.PollInterval)
	}

	// Validate commands are not empty
	if c.BuildCommand == "" {
		return fmt.Errorf("build command cannot be empty")
	}
	if c.StartCommand == "" {
		return fmt.Errorf("start command cannot be empty")
	}
	if c.CaddyReloadCommand == "" {
		return fmt.Errorf("caddy reload command cannot be empty")
	}
	if c.UnitPrefix == "" {
		return fmt.Errorf("unit prefix cannot be empty")
	}

	// Require encryption key to be provided via environment variable, config file or .env file
	if c.EncryptionKey == "" {
		return fmt.Errorf(
			"encryption key is required - set DEPLOYER_ENCRYPTION_KEY environment variable or ensure .env file exists in data directory (%s)",
			c.DataDir,
		)
	}

	return nil
}

// ValidateForDeploy checks the settings that only deployments need.
// Commands that just read state (list, show) work without them.
func (c *Config) ValidateForDeploy() error {
	if c.ServerIP == "" {
		return fmt.Errorf("server IP is required for deployments - set DEPLOYER_SERVER_IP or server_ip in the config file")
	}
	if c.WildcardDomain == "" {
		return fmt.Errorf("wildcard domain is required for deployments - set DEPLOYER_WILDCARD_DOMAIN or wildcard_domain in the config file")
	}
	return nil
}

// GetLogLevel returns the configured log level
func (c *Config) GetLogLevel() string {
	return c.LogLevel
}
