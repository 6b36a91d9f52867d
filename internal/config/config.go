package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"

	"github.com/melih-ucgun/pldownloader/internal/core"
	"github.com/melih-ucgun/pldownloader/internal/crypto"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "pldownloader.yaml"

// MasterKeyEnv names the environment variable holding the decryption key.
const MasterKeyEnv = "PLDOWNLOADER_MASTER_KEY"

// Config represents the root structure of pldownloader.yaml.
type Config struct {
	AppID       string       `yaml:"app_id"`   // names the private data directory
	Platform    string       `yaml:"platform"` // auto, desktop, mobile
	LogLevel    string       `yaml:"log_level"`
	Storage     Storage      `yaml:"storage"`
	Download    Download     `yaml:"download"`
	PublicRules []PublicRule `yaml:"public_rules"`
	Bridge      Bridge       `yaml:"bridge"`
	History     History      `yaml:"history"`
}

type Storage struct {
	PrivateRoot string  `yaml:"private_root"` // default <user-data-dir>/<app_id>
	PublicRoot  string  `yaml:"public_root"`  // default user downloads dir
	OnConflict  string  `yaml:"on_conflict"`  // overwrite, rename
	Remote      *Remote `yaml:"remote"`
}

// Remote holds connection information for SFTP storage.
type Remote struct {
	Address        string `yaml:"address"`
	User           string `yaml:"user"`
	Port           int    `yaml:"port"`
	SSHKeyPath     string `yaml:"ssh_key_path"`
	Password       string `yaml:"password"` // may be ENC[age:...]
	KnownHostsPath string `yaml:"known_hosts_path"`
}

type Download struct {
	Enabled   bool          `yaml:"enabled"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// PublicRule routes public files matching When into Subdir of the public root.
type PublicRule struct {
	When   string `yaml:"when"`
	Subdir string `yaml:"subdir"`
}

type Bridge struct {
	Address string `yaml:"address"` // gRPC target, empty means in-process
	Token   string `yaml:"token"`   // may be ENC[age:...]
}

type History struct {
	Path string `yaml:"path"` // sqlite file, empty disables history
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{AppID: "pldownloader"}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Platform == "" {
		c.Platform = "auto"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Storage.OnConflict == "" {
		c.Storage.OnConflict = "overwrite"
	}
	if c.Storage.Remote != nil && c.Storage.Remote.Port == 0 {
		c.Storage.Remote.Port = 22
	}
	if c.Download.Timeout == 0 {
		c.Download.Timeout = 60 * time.Second
	}
	if c.Download.UserAgent == "" {
		c.Download.UserAgent = "pldownloader"
	}
}

// masterKey is replaced in tests.
var masterKey = getMasterKey

// LoadConfig reads the YAML file at path, expands environment variables and
// decrypts secrets. A .env file next to the config is loaded first.
func LoadConfig(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	envPath := filepath.Join(filepath.Dir(absPath), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if loadErr := godotenv.Load(envPath); loadErr != nil {
			pterm.Warning.Printf("Failed to load .env file: %v\n", loadErr)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("file read error (%s): %w", path, err)
	}

	cfg := &Config{}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("yaml parse error (%s): %w", path, err)
		}
	}

	expandConfig(cfg)
	if err := decryptConfig(cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config (%s): %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, falling back to Default when path is the default
// location and no file exists there.
func LoadOrDefault(path string) (*Config, error) {
	if path == DefaultPath {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
	}
	return LoadConfig(path)
}

// Validate checks every enumerated field and compiles the public rules.
func (c *Config) Validate() error {
	var errs []error

	if err := core.ValidateFileName(c.AppID); err != nil {
		errs = append(errs, fmt.Errorf("app_id: %w", err))
	}
	if !slices.Contains([]string{"auto", "desktop", "mobile"}, c.Platform) {
		errs = append(errs, fmt.Errorf("platform must be auto, desktop or mobile, got %q", c.Platform))
	}
	if !slices.Contains([]string{"overwrite", "rename"}, c.Storage.OnConflict) {
		errs = append(errs, fmt.Errorf("storage.on_conflict must be overwrite or rename, got %q", c.Storage.OnConflict))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if r := c.Storage.Remote; r != nil {
		if r.Address == "" {
			errs = append(errs, fmt.Errorf("storage.remote.address is required"))
		}
		if r.Port <= 0 || r.Port > 65535 {
			errs = append(errs, fmt.Errorf("storage.remote.port out of range: %d", r.Port))
		}
	}
	if c.Download.Timeout < 0 {
		errs = append(errs, fmt.Errorf("download.timeout must not be negative"))
	}
	for i, rule := range c.PublicRules {
		if !filepath.IsLocal(rule.Subdir) {
			errs = append(errs, fmt.Errorf("public_rules[%d]: subdir %q must be a relative path inside the public root", i, rule.Subdir))
		}
		if _, err := core.CompileCondition(rule.When); err != nil {
			errs = append(errs, fmt.Errorf("public_rules[%d]: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

// Family resolves the configured platform against the detected one.
func (c *Config) Family(detected core.Family) core.Family {
	switch c.Platform {
	case "desktop":
		return core.FamilyDesktop
	case "mobile":
		return core.FamilyMobile
	default:
		return detected
	}
}

// Roots returns the desktop data root and public root, falling back to the
// detected platform directories.
func (c *Config) Roots(ctx *core.SystemContext) (string, string, error) {
	dataRoot := c.Storage.PrivateRoot
	if dataRoot == "" {
		if ctx.DataDir == "" {
			return "", "", fmt.Errorf("no user data directory detected; set storage.private_root")
		}
		dataRoot = filepath.Join(ctx.DataDir, c.AppID)
	}
	publicRoot := c.Storage.PublicRoot
	if publicRoot == "" {
		if ctx.DownloadDir == "" {
			return "", "", fmt.Errorf("no downloads directory detected; set storage.public_root")
		}
		publicRoot = ctx.DownloadDir
	}
	return dataRoot, publicRoot, nil
}

// SlogLevel maps log_level to a slog level.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// expandConfig performs env var substitution on all string values.
func expandConfig(cfg *Config) {
	cfg.AppID = os.ExpandEnv(cfg.AppID)
	cfg.Platform = os.ExpandEnv(cfg.Platform)
	cfg.LogLevel = os.ExpandEnv(cfg.LogLevel)

	cfg.Storage.PrivateRoot = expandPath(cfg.Storage.PrivateRoot)
	cfg.Storage.PublicRoot = expandPath(cfg.Storage.PublicRoot)
	cfg.Storage.OnConflict = os.ExpandEnv(cfg.Storage.OnConflict)
	if r := cfg.Storage.Remote; r != nil {
		r.Address = os.ExpandEnv(r.Address)
		r.User = os.ExpandEnv(r.User)
		r.SSHKeyPath = expandPath(r.SSHKeyPath)
		r.Password = os.ExpandEnv(r.Password)
		r.KnownHostsPath = expandPath(r.KnownHostsPath)
	}

	cfg.Download.UserAgent = os.ExpandEnv(cfg.Download.UserAgent)
	for i := range cfg.PublicRules {
		cfg.PublicRules[i].Subdir = os.ExpandEnv(cfg.PublicRules[i].Subdir)
	}

	cfg.Bridge.Address = os.ExpandEnv(cfg.Bridge.Address)
	cfg.Bridge.Token = os.ExpandEnv(cfg.Bridge.Token)
	cfg.History.Path = expandPath(cfg.History.Path)
}

// expandPath also resolves a leading ~ to the home directory.
func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// Security & Decryption

func secrets(cfg *Config) []*string {
	out := []*string{&cfg.Bridge.Token}
	if cfg.Storage.Remote != nil {
		out = append(out, &cfg.Storage.Remote.Password)
	}
	return out
}

func decryptConfig(cfg *Config) error {
	fields := secrets(cfg)
	encrypted := slices.ContainsFunc(fields, func(s *string) bool { return crypto.IsEncrypted(*s) })
	if !encrypted {
		return nil
	}

	key := masterKey()
	if key == "" {
		return fmt.Errorf("config contains encrypted values but no master key was found (set %s)", MasterKeyEnv)
	}
	for _, field := range fields {
		plain, err := crypto.Decrypt(*field, key)
		if err != nil {
			return err
		}
		*field = plain
	}
	return nil
}

// MasterKey returns the key used to encrypt and decrypt config values.
func MasterKey() string {
	return masterKey()
}

func getMasterKey() string {
	// 1. Env Var
	if key := os.Getenv(MasterKeyEnv); key != "" {
		return key
	}

	// 2. File (~/.pldownloader/master.key)
	if home, err := os.UserHomeDir(); err == nil {
		keyPath := filepath.Join(home, ".pldownloader", "master.key")
		if content, err := os.ReadFile(keyPath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}

	// 3. Interactive Prompt
	if isInteractive() {
		pterm.Println()
		pterm.Warning.Println("Encrypted content detected but " + MasterKeyEnv + " not found.")
		key, err := pterm.DefaultInteractiveTextInput.
			WithMask("*").
			WithDefaultText("Enter Master Key").
			Show()
		if err == nil && key != "" {
			return key
		}
	}

	return ""
}

func isInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
