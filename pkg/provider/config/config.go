// Package config loads providers.toml: the enable/auth/endpoint
// configuration the registry intersects with the compiled-in provider
// set at boot. Grounded on the teacher's TOML struct-tag style (see
// pkg/projectconfig) and validated with ozzo-validation the way
// pkg/models validates workspace projects.
package config

import (
	"fmt"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pelletier/go-toml/v2"
)

// AuthType names the shape of credential a provider expects.
type AuthType string

const (
	AuthKeychain      AuthType = "keychain"
	AuthKeychainBasic AuthType = "keychain_basic"
	AuthOAuth         AuthType = "oauth"
	AuthNone          AuthType = "none"
)

// Auth describes how a provider authenticates.
type Auth struct {
	Type     AuthType `toml:"type"`
	Account  string   `toml:"account,omitempty"`
	Accounts []string `toml:"accounts,omitempty"`
}

func (a Auth) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Type, validation.Required, validation.In(
			AuthKeychain, AuthKeychainBasic, AuthOAuth, AuthNone,
		)),
	)
}

// Provider is one [provider_name] table in providers.toml.
type Provider struct {
	Enabled     bool              `toml:"enabled"`
	DisplayName string            `toml:"display_name"`
	Auth        Auth              `toml:"auth"`
	APIBaseURL  string            `toml:"api_base_url,omitempty"`
	EnvVars     map[string]string `toml:"env_vars,omitempty"`
}

func (p Provider) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.DisplayName, validation.Required),
		validation.Field(&p.Auth),
	)
}

// File is the full parsed providers.toml document, keyed by provider name.
type File struct {
	Providers map[string]Provider `toml:"-"`
}

// Load reads and validates providers.toml at path. A missing file is
// not an error — it returns Defaults() so a fresh install still has a
// usable registry.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	raw := map[string]Provider{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	for name, p := range raw {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
	}
	return &File{Providers: raw}, nil
}

// Save writes f back to path as TOML.
func Save(path string, f *File) error {
	data, err := toml.Marshal(f.Providers)
	if err != nil {
		return fmt.Errorf("marshaling providers config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Defaults returns the built-in configuration for the seven shipped
// providers, all enabled with keychain-shaped auth except Atlassian
// (basic) and Google (oauth).
func Defaults() *File {
	return &File{Providers: map[string]Provider{
		"slack": {
			Enabled: true, DisplayName: "Slack",
			Auth: Auth{Type: AuthKeychain, Account: "slack"},
		},
		"github": {
			Enabled: true, DisplayName: "GitHub",
			Auth: Auth{Type: AuthKeychain, Account: "github"},
		},
		"linear": {
			Enabled: true, DisplayName: "Linear",
			Auth: Auth{Type: AuthKeychain, Account: "linear"},
		},
		"google_workspace": {
			Enabled: true, DisplayName: "Google Workspace",
			Auth: Auth{Type: AuthOAuth, Account: "google"},
		},
		"notion": {
			Enabled: true, DisplayName: "Notion",
			Auth: Auth{Type: AuthKeychain, Account: "notion"},
		},
		"atlassian": {
			Enabled: true, DisplayName: "Atlassian",
			Auth: Auth{Type: AuthKeychainBasic, Account: "atlassian"},
		},
		"localgit": {
			Enabled: true, DisplayName: "Local Git",
			Auth: Auth{Type: AuthNone},
		},
	}}
}
