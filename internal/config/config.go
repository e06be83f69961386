// Package config resolves the daemon's data directory and optional
// process-level HCL configuration. Grounded on cmd/hermes-notify's
// hclsimple.DecodeFile usage for the process config, generalized from a
// single notifier-backend config block to the daemon's own tunables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Paths is every file and socket the daemon reads or writes, all
// rooted under one data directory.
type Paths struct {
	Dir               string
	DatabasePath      string
	LegacyAuthPath    string
	MCPSocketPath     string
	AdminSocketPath   string
	PIDFilePath       string
	ProvidersTOMLPath string
	EntitlementPath   string
	ProcessConfigPath string
	CheckpointsDir    string
}

// Resolve implements the data-directory resolution: MINNA_DATA_DIR env
// var; else the macOS Application Support path; else ./.minna.
func Resolve() (Paths, error) {
	dir := os.Getenv("MINNA_DATA_DIR")
	if dir == "" && runtime.GOOS == "darwin" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, "Library", "Application Support", "Minna")
		}
	}
	if dir == "" {
		dir = "./.minna"
	}

	checkpointsDir := filepath.Join(dir, "vault", "checkpoints")
	if err := os.MkdirAll(checkpointsDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("creating checkpoints directory: %w", err)
	}

	return Paths{
		Dir:               dir,
		DatabasePath:      filepath.Join(dir, "minna.db"),
		LegacyAuthPath:    filepath.Join(dir, "auth.json"),
		MCPSocketPath:     filepath.Join(dir, "mcp.sock"),
		AdminSocketPath:   filepath.Join(dir, "admin.sock"),
		PIDFilePath:       filepath.Join(dir, "daemon.pid"),
		ProvidersTOMLPath: filepath.Join(dir, "providers.toml"),
		EntitlementPath:   filepath.Join(dir, "entitlement.jwe"),
		ProcessConfigPath: filepath.Join(dir, "minna.hcl"),
		CheckpointsDir:    checkpointsDir,
	}, nil
}

// WritePID writes pid as ASCII digits to path, per spec's daemon.pid format.
func WritePID(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644)
}

// ProcessConfig is the daemon's own optional HCL tuning file,
// distinct from providers.toml (pkg/provider/config), which governs
// per-provider auth and enablement.
type ProcessConfig struct {
	LogLevel           string `hcl:"log_level,optional"`
	MaxConcurrentSyncs int    `hcl:"max_concurrent_syncs,optional"`
	HourlyAPIBudget    int    `hcl:"hourly_api_budget,optional"`
}

func defaultProcessConfig() ProcessConfig {
	return ProcessConfig{LogLevel: "info", MaxConcurrentSyncs: 3, HourlyAPIBudget: 1000}
}

// LoadProcessConfig reads path if present, applying defaults for any
// field a partial file leaves unset. A missing file is not an error.
func LoadProcessConfig(path string) (ProcessConfig, error) {
	cfg := defaultProcessConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return ProcessConfig{}, fmt.Errorf("loading %s: %w", path, err)
	}
	if cfg.MaxConcurrentSyncs == 0 {
		cfg.MaxConcurrentSyncs = 3
	}
	if cfg.HourlyAPIBudget == 0 {
		cfg.HourlyAPIBudget = 1000
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}
