package main

import "github.com/urfave/cli/v2"

func (s *srv) loadApp() {
	app := cli.NewApp()
	app.Action = cli.ShowAppHelp
	app.Name = "badgehub"
	app.Usage = "Badge issuance and resale service"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the TOML config file",
			EnvVars: []string{"BADGEHUB_CONFIG"},
		},
	}
	app.Before = s.loadConfig
	app.After = s.close
	app.Commands = []*cli.Command{
		{
			Action:      s.startApi,
			Name:        "api",
			Usage:       "Start service api",
			Category:    "Api",
			Description: `Serves the issuer, award, depletion and marketplace apis.`,
		},
		{
			Action:      s.startSubscriber,
			Name:        "subscriber",
			Usage:       "Start depletion subscriber",
			Category:    "Worker",
			Description: `Consumes depletion signals and records depletion triggers.`,
		},
		{
			Action:      s.startCron,
			Name:        "cron",
			Usage:       "Start cron jobs",
			Category:    "Worker",
			Description: `Releases expired listing reservations and replays pending award transfers.`,
		},
		{
			Action:   s.startMigrate,
			Name:     "migrate",
			Usage:    "Migrate database schema",
			Category: "Tool",
		},
		{
			Action:   s.startReconcile,
			Name:     "reconcile",
			Usage:    "Replay journaled award transfers once",
			Category: "Tool",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "limit",
					Value: 100,
					Usage: "Maximum number of journaled transfers to replay",
				},
			},
		},
	}

	s.app = app
}
