package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"reputest/internal/cmdlog"
	"reputest/internal/config"
	"reputest/internal/extract"
	"reputest/internal/jobs"
	"reputest/internal/metrics"
	"reputest/internal/theme"
)

const version = "0.1.0"

func main() {
	app := &cli.App{
		Name:    "reputest",
		Usage:   "record good vibes and megajoule transfers declared on X",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				Value:   "./reputest.yaml",
				EnvVars: []string{"REPUTEST_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			initCommand(),
			migrateCommand(),
			onceCommand(),
			runCommand(),
			extractCommand(),
			scoresCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write a default config file",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "overwrite an existing file"},
		},
		Action: func(c *cli.Context) error {
			path := c.String("config")
			return cmdlog.Run("init", func() error {
				if _, err := os.Stat(path); err == nil && !c.Bool("force") {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				}
				cfg := config.Default()
				if err := config.Save(path, cfg); err != nil {
					return err
				}
				abs, _ := filepath.Abs(path)
				theme.PrintBanner(c.App.Writer, cfg.Account.Handle)
				fmt.Fprintln(c.App.Writer, "Config written to:", abs)
				return nil
			})
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or update the database schema",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c.String("config"), true)
			if err != nil {
				return err
			}
			if _, err := newLogger(cfg); err != nil {
				return err
			}
			return cmdlog.Run("migrate", func() error {
				db, err := openStore(cfg)
				if err != nil {
					return err
				}
				defer db.Close()
				fmt.Fprintf(c.App.Writer, "%s schema is up to date\n", cfg.Storage.Driver)
				return nil
			})
		},
	}
}

func onceCommand() *cli.Command {
	return &cli.Command{
		Name:  "once",
		Usage: "Run a single ingestion pass",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c.String("config"), false)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(c.Context)
			defer stop()
			a, err := wire(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return cmdlog.Run("once", func() error { return a.runner.RunOnce(ctx) })
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run ingestion passes on the configured schedule until interrupted",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c.String("config"), false)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(c.Context)
			defer stop()
			a, err := wire(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return cmdlog.Run("run", func() error {
				theme.PrintBanner(c.App.Writer, cfg.Account.Handle)
				metrics.StartServer(cfg.Metrics.Addr)
				s := jobs.NewScheduler(a.runner, cfg.Interval(), cfg.Schedule.Align, a.logger)
				s.Start(ctx)
				a.logger.Info("scheduler started", zap.Duration("interval", cfg.Interval()), zap.Bool("align", cfg.Schedule.Align))
				<-ctx.Done()
				a.logger.Info("shutdown requested, waiting for the current pass")
				s.Stop()
				return nil
			})
		},
	}
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Show the intent recognized in a message text",
		ArgsUsage: "TEXT",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "exclude", Usage: "handle never accepted as a vibe emitter (the reply target)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return errors.New("missing message text")
			}
			cfg, err := loadConfig(c.String("config"), true)
			if err != nil {
				return err
			}
			in := extract.New(cfg.Account.Handle).Extract(strings.Join(c.Args().Slice(), " "),
				extract.Context{ExcludeHandle: c.String("exclude")})
			fmt.Fprintln(c.App.Writer, in)
			return nil
		},
	}
}

func scoresCommand() *cli.Command {
	return &cli.Command{
		Name:      "scores",
		Usage:     "Print vibe scores and transfer totals from EMITTER to SENSOR using stored data",
		ArgsUsage: "EMITTER SENSOR",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return errors.New("expected EMITTER and SENSOR handles")
			}
			cfg, err := loadConfig(c.String("config"), true)
			if err != nil {
				return err
			}
			if _, err := newLogger(cfg); err != nil {
				return err
			}
			return cmdlog.Run("scores", func() error {
				db, err := openStore(cfg)
				if err != nil {
					return err
				}
				defer db.Close()
				return printScores(c.Context, c.App.Writer, db, c.Args().Get(0), c.Args().Get(1))
			})
		},
	}
}
