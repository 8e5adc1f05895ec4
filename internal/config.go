package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Vault  VaultConfig       `yaml:"vault"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
	Editor EditorConfig      `yaml:"editor"`
}

// Validate validates the configuration. An empty editor service URL is
// filled in from the HTTP listener first.
func (c *Config) Validate() error {
	if c.Editor.ServiceURL == "" {
		c.Editor.ServiceURL = c.App.HTTP.URL()
	}
	sections := []struct {
		name string
		v    interface{ Validate() error }
	}{
		{"app", &c.App},
		{"vault", &c.Vault},
		{"sqlite", &c.SQLite},
		{"auth", &c.Auth},
		{"editor", &c.Editor},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL is the base URL a local client uses to reach the listener.
func (c *HTTPConfig) URL() string {
	host := c.Host
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Port))
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig locates the notes. NotesDir is relative to Path and holds one
// YYYY-MM-DD.md per day. New notes start from Template, or from the file
// TemplateFile (relative to Path) when that is set.
type VaultConfig struct {
	Path         string `yaml:"path"`
	NotesDir     string `yaml:"notes_dir"`
	Template     string `yaml:"template"`
	TemplateFile string `yaml:"template_file"`
}

var errOutsideVault = errors.New("must be a relative path inside the vault")

func insideVault(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	clean := filepath.Clean(s)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return errOutsideVault
	}
	return nil
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.NotesDir, validation.Required, validation.By(insideVault)),
		validation.Field(&c.TemplateFile, validation.By(insideVault)),
	)
}

// LoadTemplate returns the new-note template, reading TemplateFile if set.
func (c *VaultConfig) LoadTemplate() (string, error) {
	if c.TemplateFile == "" {
		return c.Template, nil
	}
	data, err := os.ReadFile(filepath.Join(c.Path, c.TemplateFile))
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}
	return string(data), nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// EditorConfig configures the terminal editor client. ServiceURL defaults to
// the local HTTP listener.
type EditorConfig struct {
	ServiceURL   string        `yaml:"service_url"`
	SaveDebounce time.Duration `yaml:"save_debounce"`
	LogFile      string        `yaml:"log_file"`
}

// Validate validates the editor configuration.
func (c *EditorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ServiceURL, validation.Required, is.URL),
		validation.Field(&c.SaveDebounce, validation.Min(50*time.Millisecond), validation.Max(time.Minute)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Host:       "127.0.0.1",
				Port:       19549,
				CORSOrigin: "*",
			},
		},
		Vault: VaultConfig{
			Path:     "./vault",
			NotesDir: "Progress",
		},
		SQLite: SQLiteConfig{
			Path: "./focusguard.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Editor: EditorConfig{
			SaveDebounce: 600 * time.Millisecond,
			LogFile:      "focusguard-editor.log",
		},
	}
}
