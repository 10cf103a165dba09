package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"borealis/pkg/whitelist"
)

// Config represents the complete borealis configuration.
type Config struct {
	General GeneralConfig `toml:"general"`
	Output  OutputConfig  `toml:"output"`
	Flatpak FlatpakConfig `toml:"flatpak"`
}

// GeneralConfig contains the settings the transaction engine consumes.
// Nothing else in this file influences what is allowed to execute.
type GeneralConfig struct {
	// AURHelper selects the community helper used for AUR packages.
	// Valid values: "yay", "paru". Empty means yay.
	AURHelper string `toml:"aur_helper"`

	// AllowNoConfirm permits the confirmation-skip flags (--noconfirm, -y)
	// in whitelisted invocations. Off by default and never inferred.
	AllowNoConfirm bool `toml:"allow_no_confirm"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	// Color enables colored output (respects NO_COLOR env var).
	Color bool `toml:"color"`

	// Unicode enables unicode symbols in output.
	Unicode bool `toml:"unicode"`

	// Verbose enables detailed output.
	Verbose bool `toml:"verbose"`

	// LiveView enables the full-screen transaction view. When false,
	// transaction output streams as plain lines instead.
	LiveView bool `toml:"live_view"`
}

// FlatpakConfig contains flatpak-specific settings.
type FlatpakConfig struct {
	// DefaultRemote is the remote assumed for flatpak packages whose
	// origin could not be resolved.
	DefaultRemote string `toml:"default_remote"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		General: GeneralConfig{
			AURHelper:      "yay",
			AllowNoConfirm: false,
		},
		Output: OutputConfig{
			Color:    true,
			Unicode:  true,
			Verbose:  false,
			LiveView: true,
		},
		Flatpak: FlatpakConfig{
			DefaultRemote: "flathub",
		},
	}
}

// Load loads the configuration from the default path.
// If the config file doesn't exist, it returns the default configuration.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom loads the configuration from a specific path.
// If the config file doesn't exist, it returns the default configuration.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects settings the engine would refuse downstream anyway, so
// a bad config file fails at startup instead of mid-transaction.
func (c *Config) Validate() error {
	switch c.General.AURHelper {
	case "", "yay", "paru":
	default:
		return fmt.Errorf("general.aur_helper must be \"yay\" or \"paru\", got %q", c.General.AURHelper)
	}
	if c.Flatpak.DefaultRemote != "" {
		// The remote ends up as a command operand, so it passes the same
		// gate as package names.
		if err := whitelist.CheckName(c.Flatpak.DefaultRemote); err != nil {
			return fmt.Errorf("flatpak.default_remote: %w", err)
		}
	}
	return nil
}

// Whitelist returns the slice of the configuration the validator consumes.
func (c *Config) Whitelist() whitelist.Config {
	return whitelist.Config{
		AURHelper:      c.General.AURHelper,
		AllowNoConfirm: c.General.AllowNoConfirm,
	}
}

// Save writes the configuration to the default path.
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes the configuration to a specific path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}

// ShouldUseColor returns true if colored output should be used.
// Respects the NO_COLOR environment variable.
func (c *Config) ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return c.Output.Color
}
