package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dmitrijs2005/kitchensink/internal/flagx"
	"github.com/dmitrijs2005/kitchensink/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations accept
// "15m" style strings or integer nanoseconds. Zero values leave the current
// setting untouched.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	BcryptCost                   int            `json:"bcrypt_cost"`
	DefaultRoles                 []string       `json:"default_roles"`
	BootstrapAdmins              []string       `json:"bootstrap_admins"`
	RedisAddr                    string         `json:"redis_addr"`
	LoginAttempts                int            `json:"login_attempts"`
	LoginWindow                  timex.Duration `json:"login_window"`
	LogBackend                   string         `json:"log_backend"`
	LogLevel                     string         `json:"log_level"`
	ShutdownTimeout              timex.Duration `json:"shutdown_timeout"`
	CORSOrigin                   string         `json:"cors_origin"`
}

// parseJson loads the file named by -c/-config (if any) over config.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.LogBackend, c.LogBackend)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.CORSOrigin, c.CORSOrigin)

	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration != 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.LoginWindow.Duration != 0 {
		config.LoginWindow = c.LoginWindow.Duration
	}
	if c.ShutdownTimeout.Duration != 0 {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.LoginAttempts != 0 {
		config.LoginAttempts = c.LoginAttempts
	}
	if len(c.DefaultRoles) > 0 {
		config.DefaultRoles = flagx.SplitList(strings.Join(c.DefaultRoles, ","), true)
	}
	if c.BootstrapAdmins != nil {
		config.BootstrapAdmins = c.BootstrapAdmins
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
