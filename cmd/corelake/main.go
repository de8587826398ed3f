package main

import (
	"os"

	"github.com/google/gops/agent"
	"github.com/urfave/cli/v2"

	"github.com/openobserve/corelake/internal/config"
	"github.com/openobserve/corelake/internal/logx"
)

func main() {
	app := &cli.App{
		Name:  "corelake",
		Usage: "log ingest, rollup and distributed query engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: "./config.json",
				Usage: "overwrite the global config options by those specified in `config.json`",
			},
			&cli.BoolFlag{
				Name:  "gops",
				Usage: "listen via github.com/google/gops/agent (for debugging)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "one of debug, info, warn, error",
			},
		},
		Before: func(c *cli.Context) error {
			logx.SetLevel(c.String("log-level"))

			if c.Bool("gops") {
				if err := agent.Listen(agent.Options{}); err != nil {
					return cli.Exit("gops/agent.Listen failed: "+err.Error(), 1)
				}
			}

			if err := config.Init(c.String("config")); err != nil {
				return cli.Exit("loading config failed: "+err.Error(), 1)
			}
			return nil
		},
		Commands: []*cli.Command{
			initDirCommand,
			serverCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logx.Fatalf("corelake: %s", err)
	}
}
