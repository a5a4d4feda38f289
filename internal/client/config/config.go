// Package config holds the CLI client settings: defaults, an optional JSON
// file and global flags, in that order of precedence.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/kitchensink/internal/timex"
)

// TokenEnv names the environment variable consulted for an access token
// when -token is not given.
const TokenEnv = "KITCHENSINK_TOKEN"

// Config holds runtime settings for the kitchensink CLI.
//
// Fields:
//   - ServerURL: base URL of the API (scheme, host and port).
//   - Timeout: per-request HTTP timeout.
//   - AccessToken: bearer token for protected commands.
type Config struct {
	ServerURL   string
	Timeout     time.Duration
	AccessToken string
}

// JsonConfig is the on-disk shape of the CLI config file.
type JsonConfig struct {
	ServerURL   string         `json:"server_url"`
	Timeout     timex.Duration `json:"timeout"`
	AccessToken string         `json:"access_token"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.Timeout = 10 * time.Second
	c.AccessToken = os.Getenv(TokenEnv)
}

// Load applies defaults, the JSON file named by -c/-config and the global
// flags that precede the command. It returns the remaining arguments, the
// command first.
func Load(args []string) (*Config, []string, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	fs := flag.NewFlagSet("kitchensink", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var path string
	fs.StringVar(&path, "c", "", "path to config file")
	fs.StringVar(&path, "config", "", "path to config file")
	url := fs.String("a", "", "API base URL")
	timeout := fs.Duration("timeout", 0, "request timeout")
	token := fs.String("token", "", "access token")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	if path != "" {
		if err := cfg.parseJson(path); err != nil {
			return nil, nil, err
		}
	}

	if *url != "" {
		cfg.ServerURL = *url
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *token != "" {
		cfg.AccessToken = *token
	}

	return cfg, fs.Args(), nil
}

// LoadConfig is Load over os.Args.
func LoadConfig() (*Config, []string, error) {
	return Load(os.Args[1:])
}

func (c *Config) parseJson(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if jc.ServerURL != "" {
		c.ServerURL = jc.ServerURL
	}
	if jc.Timeout.Duration > 0 {
		c.Timeout = jc.Timeout.Duration
	}
	if jc.AccessToken != "" {
		c.AccessToken = jc.AccessToken
	}
	return nil
}
