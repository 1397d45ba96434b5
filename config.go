/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/enigma/client"
	"github.com/Seednode/enigma/room"
)

const envPrefix = "ENIGMA"

type Config struct {
	bind          string
	casesFile     string
	enforceHost   bool
	port          int
	prefix        string
	profile       bool
	roomTimeout   time.Duration
	staticDir     string
	sweepInterval time.Duration
	tlsCert       string
	tlsKey        string
	verbose       bool
	version       bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.roomTimeout <= 0 {
		return fmt.Errorf("invalid room timeout (must be positive): %s", c.roomTimeout)
	}
	if c.sweepInterval < 0 {
		return fmt.Errorf("invalid sweep interval (must not be negative): %s", c.sweepInterval)
	}

	c.prefix = strings.TrimSuffix(c.prefix, "/")
	if c.prefix != "" && !strings.HasPrefix(c.prefix, "/") {
		c.prefix = "/" + c.prefix
	}

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// WatchConfig drives the watch subcommand.
type WatchConfig struct {
	cache    string
	caseID   string
	host     bool
	interval time.Duration
	name     string
	room     string
	server   string
	verbose  bool
}

func (c *WatchConfig) validate() error {
	u, err := url.Parse(c.server)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid server URL: %q", c.server)
	}
	c.server = strings.TrimSuffix(c.server, "/")

	c.name = strings.TrimSpace(c.name)
	if c.name == "" {
		return errors.New("--name is required")
	}

	switch {
	case c.host && c.room != "":
		return errors.New("--host and --room are mutually exclusive")
	case !c.host && c.room == "":
		return errors.New("one of --host or --room is required")
	case c.room != "" && !room.ValidID(room.NormalizeID(c.room)):
		return fmt.Errorf("invalid room code: %q", c.room)
	case c.caseID != "" && !c.host:
		return errors.New("--case requires --host")
	}

	if c.interval <= 0 {
		return fmt.Errorf("invalid poll interval (must be positive): %s", c.interval)
	}

	return nil
}

// bindEnv lets every flag in fs be set from ENIGMA_<FLAG>, unless it was
// given on the command line.
func bindEnv(fs *pflag.FlagSet) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func newCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "enigma",
		Short:         "Room coordination and group verdicts for cooperative detective games.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: ENIGMA_BIND)")
	fs.StringVar(&cfg.casesFile, "cases", "", "path to a YAML case catalog, instead of the built-in one (env: ENIGMA_CASES)")
	fs.BoolVar(&cfg.enforceHost, "enforce-host", false, "only let the room host change cases and reset votes (env: ENIGMA_ENFORCE_HOST)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: ENIGMA_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: ENIGMA_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: ENIGMA_PROFILE)")
	fs.DurationVar(&cfg.roomTimeout, "room-timeout", room.DefaultTimeout, "time before idle rooms are removed (env: ENIGMA_ROOM_TIMEOUT)")
	fs.StringVar(&cfg.staticDir, "static", "", "directory of client files to serve at the root (env: ENIGMA_STATIC)")
	fs.DurationVar(&cfg.sweepInterval, "sweep-interval", room.DefaultSweepInterval, "how often to look for idle rooms, 0 for half the room timeout (env: ENIGMA_SWEEP_INTERVAL)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: ENIGMA_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: ENIGMA_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: ENIGMA_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: ENIGMA_VERSION)")

	bindEnv(fs)

	cmd.AddCommand(newWatchCmd(&WatchConfig{}))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("enigma v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func newWatchCmd(cfg *WatchConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Join a room as a player and log what happens in it.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return watchRoom(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.StringVar(&cfg.cache, "cache", "", "file to cache the case list in (env: ENIGMA_CACHE)")
	fs.StringVar(&cfg.caseID, "case", "", "case to open when hosting (env: ENIGMA_CASE)")
	fs.BoolVar(&cfg.host, "host", false, "create a new room and host it (env: ENIGMA_HOST)")
	fs.DurationVar(&cfg.interval, "interval", client.DefaultPollInterval, "how often to poll the room (env: ENIGMA_INTERVAL)")
	fs.StringVarP(&cfg.name, "name", "n", "", "player name (env: ENIGMA_NAME)")
	fs.StringVarP(&cfg.room, "room", "r", "", "code of the room to join (env: ENIGMA_ROOM)")
	fs.StringVarP(&cfg.server, "server", "s", "http://localhost:8080", "base URL of the enigma server (env: ENIGMA_SERVER)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: ENIGMA_VERBOSE)")

	bindEnv(fs)

	return cmd
}
