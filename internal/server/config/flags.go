package config

import (
	"flag"
	"io"
	"strings"

	"github.com/dmitrijs2005/kitchensink/internal/flagx"
)

var knownFlags = []string{
	"-a", "-d", "-s", "-t", "-r",
	"-bcrypt-cost", "-roles", "-admins",
	"-redis", "-login-attempts", "-login-window",
	"-log-backend", "-log-level", "-shutdown-timeout", "-cors-origin",
}

// parseFlags overlays command-line flags onto config.
//
//	-a string             HTTP bind address (e.g. ":8080")
//	-d string             PostgreSQL DSN
//	-s string             JWT HMAC secret key
//	-t duration           access token validity (e.g. "1h")
//	-r duration           refresh token validity (e.g. "15m")
//	-bcrypt-cost int      bcrypt work factor
//	-roles list           default roles for new accounts, comma separated
//	-admins list          usernames promoted to ADMIN at startup
//	-redis string         redis address for login throttling
//	-login-attempts int   attempts allowed per window
//	-login-window dur     throttling window
//	-log-backend string   slog | logrus
//	-log-level string     debug | info | warn | error
//	-shutdown-timeout dur graceful shutdown budget
//	-cors-origin string   allowed browser origin
//
// Args are filtered through flagx.FilterArgs first so the -c/-config flag
// handled by parseJson does not trip this flag set.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.DurationVar(&config.AccessTokenValidityDuration, "t", config.AccessTokenValidityDuration, "access token validity")
	fs.DurationVar(&config.RefreshTokenValidityDuration, "r", config.RefreshTokenValidityDuration, "refresh token validity")
	fs.IntVar(&config.BcryptCost, "bcrypt-cost", config.BcryptCost, "bcrypt cost")
	roles := fs.String("roles", strings.Join(config.DefaultRoles, ","), "default roles")
	admins := fs.String("admins", strings.Join(config.BootstrapAdmins, ","), "bootstrap admins")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")
	fs.IntVar(&config.LoginAttempts, "login-attempts", config.LoginAttempts, "login attempts per window")
	fs.DurationVar(&config.LoginWindow, "login-window", config.LoginWindow, "login throttling window")
	fs.StringVar(&config.LogBackend, "log-backend", config.LogBackend, "log backend")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	fs.DurationVar(&config.ShutdownTimeout, "shutdown-timeout", config.ShutdownTimeout, "shutdown timeout")
	fs.StringVar(&config.CORSOrigin, "cors-origin", config.CORSOrigin, "CORS origin")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.DefaultRoles = flagx.SplitList(*roles, true)
	config.BootstrapAdmins = flagx.SplitList(*admins, false)
	return nil
}
