// Package config loads the daemon's runtime configuration: CLI/admin
// listen addresses, the persisted interface name-map and startup-config
// paths, and the process hostname shown in CLI prompts. Flags are
// declared with spf13/pflag, bound into spf13/viper so an optional
// config file and NETNEXUS_*-prefixed environment variables both
// override the defaults, matching the flag/env/file precedence the
// pack's own pflag+viper daemons use (internal/config in the
// claude-ops example).
package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every value a running daemon needs.
type Config struct {
	Hostname string

	CLIAddr   string
	AdminAddr string

	InterfaceNameMapPath string
	StartupConfigPath    string

	LogLevel string
}

// Flags registers this package's flags on fs with their defaults, so a
// caller (cmd.serverCmd) can parse os.Args into it before Load reads the
// bound values back out of viper.
func Flags(fs *pflag.FlagSet) {
	fs.String("hostname", "netnexus", "hostname shown in the CLI prompt")
	fs.String("cli-addr", ":3788", "address the telnet-like CLI listener binds")
	fs.String("admin-addr", ":8788", "address the admin HTTP surface binds")
	fs.String("ifmap-path", "/etc/netnexus/ifmap.conf", "path to the logical-to-physical interface name map")
	fs.String("startup-config-path", "/var/lib/netnexus/startup-config.json", "path \"write memory\" persists the running config to")
	fs.String("log-level", "info", "log level: debug, info, warn, or error")
}

// Bind binds every flag in fs into viper under the same key, so
// environment variables and a config file can still override a flag the
// caller didn't explicitly pass.
func Bind(fs *pflag.FlagSet) error {
	return viper.BindPFlagSet(fs)
}

// Load reads the bound configuration. file, if non-empty, is merged in
// before flags/env are applied; NETNEXUS_* environment variables take
// precedence over the file but not over explicitly-passed flags (the
// usual viper precedence order).
func Load(file string) (*Config, error) {
	viper.SetEnvPrefix("NETNEXUS")
	viper.AutomaticEnv()

	if file != "" {
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", file, err)
		}
	}

	return &Config{
		Hostname:             viper.GetString("hostname"),
		CLIAddr:              viper.GetString("cli-addr"),
		AdminAddr:            viper.GetString("admin-addr"),
		InterfaceNameMapPath: viper.GetString("ifmap-path"),
		StartupConfigPath:    viper.GetString("startup-config-path"),
		LogLevel:             viper.GetString("log-level"),
	}, nil
}
