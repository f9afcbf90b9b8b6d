package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/urfave/cli/v2"

	"github.com/webitel/im-presence-service/config"
)

const (
	ServiceName      = "im-presence-service"
	ServiceNamespace = "webitel"
)

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

func Run() error {
	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Real-time user presence service",
		Version: fmt.Sprintf("%s (%s@%s, %s) %s", version, branch, commit, commitDate, buildTimestamp),
		Commands: []*cli.Command{
			serverCmd(),
		},
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	overrides := config.Flags()

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "config_file",
			Usage:   "Path to the configuration file",
			EnvVars: []string{"PRESENCE_CONFIG_FILE"},
		},
	}
	// [CONFIG_OVERRIDES] Every config flag is mirrored on the command line.
	overrides.VisitAll(func(f *pflag.Flag) {
		flags = append(flags, &cli.StringFlag{Name: f.Name, Usage: f.Usage})
	})

	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the presence HTTP/WebSocket server",
		Flags:   flags,
		Action: func(c *cli.Context) error {
			if err := applyOverrides(c, overrides); err != nil {
				return err
			}

			cfg, loader, err := config.LoadConfig(c.String("config_file"), overrides)
			if err != nil {
				return err
			}

			level := new(slog.LevelVar)
			level.Set(ParseLevel(cfg.Log.Level))
			// [HOT_RELOAD] Only the log level is applied live; the rest needs a restart.
			loader.Watch(func(next *config.Config, e fsnotify.Event) {
				level.Set(ParseLevel(next.Log.Level))
				slog.Info("CONFIG_RELOADED", "file", e.Name, "log_level", next.Log.Level)
			})

			app := NewApp(cfg, level)

			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout+5*time.Second)
			defer cancel()
			return app.Stop(ctx)
		},
	}
}

func applyOverrides(c *cli.Context, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err == nil && c.IsSet(f.Name) {
			err = fs.Set(f.Name, c.String(f.Name))
		}
	})
	return err
}
