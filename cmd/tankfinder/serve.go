package main

import (
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/tankfinder/tankfinder/internal/server"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address",
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	env, err := setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	if addr := c.String("addr"); addr != "" {
		env.cfg.Server.Addr = addr
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env.finder.StartSweeper(ctx)

	srv := server.New(env.cfg.Server, env.finder, env.geo, c.Bool("verbose"))
	return srv.ListenAndServe(ctx)
}
