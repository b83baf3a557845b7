package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Credentials identify the agent on the world server.
type Credentials struct {
	// Auth is "token" (resume/auth token) or "offline".
	Auth     string `yaml:"auth" env:"AUTH"`
	Username string `yaml:"username" env:"USERNAME"`
	Token    string `yaml:"token" env:"TOKEN"`
	Server   string `yaml:"server" env:"SERVER"`
}

const envPrefix = "VCTERM_"

// LoadCredentials reads path (optional), then applies VCTERM_* variables from
// the environment and from any of envFiles that exist.
func LoadCredentials(path string, envFiles ...string) (Credentials, error) {
	var c Credentials
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return c, err
		default:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return c, fmt.Errorf("%s: %w", CredentialsFileName, err)
			}
		}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		// Load never overrides variables already set in the process.
		if err := godotenv.Load(f); err != nil {
			return c, fmt.Errorf("%s: %w", f, err)
		}
	}
	if err := env.ParseWithOptions(&c, env.Options{Prefix: envPrefix}); err != nil {
		return c, fmt.Errorf("environment: %w", err)
	}
	c.Normalize()
	return c, nil
}

// ParseCredFlag parses "auth,username,token,server". Empty fields are left
// unset so Merge keeps the loaded values.
func ParseCredFlag(s string) (Credentials, error) {
	parts := strings.Split(s, ",")
	if len(parts) > 4 {
		return Credentials{}, fmt.Errorf("--cred: want at most 4 fields (auth,username,token,server), got %d", len(parts))
	}
	for len(parts) < 4 {
		parts = append(parts, "")
	}
	c := Credentials{
		Auth:     strings.TrimSpace(parts[0]),
		Username: strings.TrimSpace(parts[1]),
		Token:    strings.TrimSpace(parts[2]),
		Server:   strings.TrimSpace(parts[3]),
	}
	return c, nil
}

// Merge returns c with every non-empty field of over applied.
func (c Credentials) Merge(over Credentials) Credentials {
	if over.Auth != "" {
		c.Auth = over.Auth
	}
	if over.Username != "" {
		c.Username = over.Username
	}
	if over.Token != "" {
		c.Token = over.Token
	}
	if over.Server != "" {
		c.Server = over.Server
	}
	c.Normalize()
	return c
}

func (c *Credentials) Normalize() {
	c.Auth = strings.ToLower(strings.TrimSpace(c.Auth))
	if c.Auth == "" {
		c.Auth = "offline"
	}
	c.Username = strings.TrimSpace(c.Username)
	c.Server = strings.TrimSpace(c.Server)
}

func (c Credentials) Validate() error {
	switch c.Auth {
	case "offline", "token":
	default:
		return fmt.Errorf("credentials: unknown auth %q (want offline or token)", c.Auth)
	}
	if c.Username == "" {
		return fmt.Errorf("credentials: username is required")
	}
	if c.Auth == "token" && c.Token == "" {
		return fmt.Errorf("credentials: token auth needs a token")
	}
	return nil
}
