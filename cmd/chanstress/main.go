// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command chanstress drives call traffic over channel pairs and reports
// throughput, queue diagnostics and message flows.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()
	app.Name = "chanstress"
	app.Usage = "Drive request/reply traffic over channel pairs"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:      "config",
			Aliases:   []string{"c"},
			Usage:     "TOML file with channel thresholds and budgets",
			TakesFile: true,
		},
		&cli.IntFlag{
			Name:  "pairs",
			Usage: "number of channel pairs",
			Value: 4,
		},
		&cli.IntFlag{
			Name:  "calls",
			Usage: "calls per pair",
			Value: 10000,
		},
		&cli.IntFlag{
			Name:  "payload",
			Usage: "request payload size in bytes",
			Value: 64,
		},
		&cli.DurationFlag{
			Name:  "call-timeout",
			Usage: "deadline of each call",
			Value: time.Second,
		},
		&cli.BoolFlag{
			Name:  "protocol",
			Usage: "run the callers as kont protocols instead of direct calls",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "address to serve prometheus metrics on, empty to disable",
			Value: ":9464",
		},
		&cli.StringFlag{
			Name:  "otlp-endpoint",
			Usage: "OTLP/gRPC collector for message flow spans, empty to disable",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "log at debug level",
		},
	}
	app.Action = func(c *cli.Context) error {
		return run(c.Context, optionsFrom(c))
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	configPath   string
	pairs        int
	calls        int
	payload      int
	callTimeout  time.Duration
	protocol     bool
	metricsAddr  string
	otlpEndpoint string
	debug        bool
}

func optionsFrom(c *cli.Context) options {
	return options{
		configPath:   c.String("config"),
		pairs:        c.Int("pairs"),
		calls:        c.Int("calls"),
		payload:      c.Int("payload"),
		callTimeout:  c.Duration("call-timeout"),
		protocol:     c.Bool("protocol"),
		metricsAddr:  c.String("metrics-addr"),
		otlpEndpoint: c.String("otlp-endpoint"),
		debug:        c.Bool("debug"),
	}
}
