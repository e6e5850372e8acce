package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/urfave/cli/v2"

	"github.com/netnexus/controlplane/config"
	"github.com/netnexus/controlplane/internal/app"
)

const (
	ServiceName      = "netnexus"
	ServiceNamespace = "netnexus"
)

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

func Run() error {
	cliApp := &cli.App{
		Name:  ServiceName,
		Usage: "network device control-plane CLI daemon",
		Commands: []*cli.Command{
			serverCmd(),
		},
	}

	return cliApp.Run(os.Args)
}

// configFlagNames mirrors config.Flags' registered names so serverCmd
// can expose the same settings as --server <flag> arguments, not just
// a config file or NETNEXUS_* environment variables.
var configFlagNames = []string{
	"hostname", "cli-addr", "admin-addr", "ifmap-path", "startup-config-path", "log-level",
}

func serverCmd() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "config_file", Usage: "path to the configuration file"},
	}
	for _, name := range configFlagNames {
		flags = append(flags, &cli.StringFlag{Name: name})
	}

	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "run the CLI daemon",
		Flags:   flags,
		Action: func(c *cli.Context) error {
			fs := pflag.NewFlagSet("netnexus", pflag.ContinueOnError)
			config.Flags(fs)
			for _, name := range configFlagNames {
				if c.IsSet(name) {
					if err := fs.Set(name, c.String(name)); err != nil {
						return err
					}
				}
			}
			if err := config.Bind(fs); err != nil {
				return err
			}

			cfg, err := config.Load(c.String("config_file"))
			if err != nil {
				return err
			}

			a := app.NewApp(cfg)
			if err := a.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			return a.Stop(context.Background())
		},
	}
}
