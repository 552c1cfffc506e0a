package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tankfinder/tankfinder/internal/config"
	"github.com/tankfinder/tankfinder/internal/finder"
	"github.com/tankfinder/tankfinder/internal/locate"
	"github.com/tankfinder/tankfinder/internal/store"
)

func main() {
	app := &cli.App{
		Name:  "tankfinder",
		Usage: "Find nearby fuel stations and compare prices",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Config file",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "State database file",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			nearbyCommand(),
			bestCommand(),
			serveCommand(),
			exportCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// appEnv bundles the pieces every command needs.
type appEnv struct {
	cfg    config.Config
	store  *store.Store
	finder *finder.Finder
	geo    *locate.Geocoder
	log    *slog.Logger
}

func setup(c *cli.Context) (*appEnv, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if dbPath := c.String("db"); dbPath != "" {
		cfg.Store.Path = dbPath
	}

	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	st, err := store.Open(c.Context, cfg.Store.Path, logger)
	if err != nil {
		return nil, err
	}

	return &appEnv{
		cfg:    cfg,
		store:  st,
		finder: finder.New(cfg, st, logger),
		geo:    locate.NewGeocoder(cfg.Search.Country, locate.DefaultResultLimit),
		log:    logger,
	}, nil
}

func (e *appEnv) Close() {
	if err := e.store.Close(); err != nil {
		e.log.Error("error closing state database", "error", err)
	}
}
