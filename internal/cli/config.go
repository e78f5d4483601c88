package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	StoreBackend   string `json:"store_backend"`        // "file" or "badger"
	StorePath      string `json:"store_path,omitempty"` // file path or badger directory
	APIToken       string `json:"api_token,omitempty"`  // overridden by $CLICKUP_TOKEN
	RefreshSeconds int    `json:"refresh_seconds"`      // watch-mode metadata refresh interval
	DebounceMillis int    `json:"debounce_ms"`          // watch-mode write debounce
	LogFile        string `json:"log_file,omitempty"`   // JSON log destination, empty = stderr text

	// Languages maps a language id or ".ext" to a line-comment prefix,
	// extending the built-in comment-syntax tables for languages clickref
	// does not know.
	Languages map[string]string `json:"languages,omitempty"`

	// Resolved paths (computed, not serialized)
	Workspace    string `json:"-"` // absolute workspace root (from -C flag or os.Getwd)
	StorePathAbs string `json:"-"`

	// Sources tracks which config files were loaded (for diagnostics)
	Sources ConfigSources `json:"-"`
}

// ConfigSources tracks which config files were loaded.
type ConfigSources struct {
	Global  string // path to global config if loaded, empty otherwise
	Project string // path to project config if loaded, empty otherwise
}

// Backend names accepted in store_backend.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// ConfigFileName is the project config file name.
const ConfigFileName = ".clickref.json"

// defaultStoreDir is where the store lives relative to the workspace when
// store_path is not configured.
const defaultStoreDir = ".clickref"

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		StoreBackend:   BackendFile,
		RefreshSeconds: 300,
		DebounceMillis: 200,
	}
}

// globalConfigPath returns the path to the global config file. Uses
// $XDG_CONFIG_HOME/clickref/config.json if set, otherwise
// ~/.config/clickref/config.json. Empty when no home can be determined.
func globalConfigPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "clickref", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "clickref", "config.json")
	}

	return ""
}

// LoadConfigInput holds the inputs for LoadConfig.
type LoadConfigInput struct {
	WorkDirOverride string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath      string            // -c/--config flag value
	Env             map[string]string // environment variables
}

// LoadConfig loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config
// 3. Project config (.clickref.json in the workspace, if present)
// 4. Explicit config file via ConfigPath
// 5. Environment ($CLICKUP_TOKEN).
//
// All paths in the returned Config are resolved to absolute paths.
func LoadConfig(input LoadConfigInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
	}

	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Workspace = workDir

	if global := globalConfigPath(input.Env); global != "" {
		loaded, err := mergeConfigFile(cfg, global)
		if err == nil {
			cfg = loaded
			cfg.Sources.Global = global
		} else if !os.IsNotExist(err) {
			return Config{}, err
		}
	}

	project := filepath.Join(workDir, ConfigFileName)

	loaded, err := mergeConfigFile(cfg, project)
	if err == nil {
		cfg = loaded
		cfg.Sources.Project = project
	} else if !os.IsNotExist(err) {
		return Config{}, err
	}

	if input.ConfigPath != "" {
		cfg, err = mergeConfigFile(cfg, input.ConfigPath)
		if err != nil {
			return Config{}, err
		}

		cfg.Sources.Project = input.ConfigPath
	}

	if token := input.Env["CLICKUP_TOKEN"]; token != "" {
		cfg.APIToken = token
	}

	err = finalizeConfig(&cfg)
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// mergeConfigFile reads a hujson config file (comments and trailing commas
// allowed) over base.
func mergeConfigFile(base Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}

	cfg := base

	err = json.Unmarshal(standardized, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

func finalizeConfig(cfg *Config) error {
	switch cfg.StoreBackend {
	case BackendFile, BackendBadger:
	default:
		return fmt.Errorf("%w: %q", errUnknownBackend, cfg.StoreBackend)
	}

	storePath := cfg.StorePath
	if storePath == "" {
		if cfg.StoreBackend == BackendBadger {
			storePath = filepath.Join(defaultStoreDir, "badger")
		} else {
			storePath = filepath.Join(defaultStoreDir, "references.json")
		}
	}

	if !filepath.IsAbs(storePath) {
		storePath = filepath.Join(cfg.Workspace, storePath)
	}

	cfg.StorePathAbs = storePath

	if cfg.RefreshSeconds <= 0 {
		cfg.RefreshSeconds = DefaultConfig().RefreshSeconds
	}

	if cfg.DebounceMillis <= 0 {
		cfg.DebounceMillis = DefaultConfig().DebounceMillis
	}

	return nil
}
