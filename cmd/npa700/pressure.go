package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/npa700"
	"github.com/mklimuk/npa700/cmd/npa700/console"
	"github.com/mklimuk/npa700/exporter"
	"github.com/mklimuk/npa700/snsctx"
)

var pressureCmd = cli.Command{
	Name:  "pressure",
	Usage: "differential pressure readings",
	Subcommands: cli.Commands{
		&pressureReadCmd,
		&pressureTriggerCmd,
		&pressureWatchCmd,
		&pressureVariantsCmd,
	},
}

var pressureReadCmd = cli.Command{
	Name:  "read",
	Usage: "read one pressure sample",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{Name: "trigger", Usage: "request a new sample first (sleep mode parts)"},
		&cli.DurationFlag{Name: "wait", Usage: "delay between trigger and read", Value: 10 * time.Millisecond},
	}, sensorFlags...),
	Action: func(c *cli.Context) error {
		ctx := snsctx.SetVerbose(c.Context, c.Bool("verbose"))
		sensor, sc, closeBus, err := openSensor(ctx, c)
		if err != nil {
			return console.Exit(1, "could not open sensor: %s", console.Red(err))
		}
		defer func() { _ = closeBus() }()
		if c.Bool("trigger") {
			if code := sensor.TriggerSample(ctx); code.IsFatal() {
				return console.Exit(2, "trigger failed: %s", console.Red(code))
			}
			time.Sleep(c.Duration("wait"))
		}
		pa, code := sensor.Pressure(ctx)
		return report(sc.Name, sensor, pa, code)
	},
}

var pressureTriggerCmd = cli.Command{
	Name:  "trigger",
	Usage: "wake a sleep mode sensor and start a conversion",
	Flags: sensorFlags,
	Action: func(c *cli.Context) error {
		ctx := snsctx.SetVerbose(c.Context, c.Bool("verbose"))
		sensor, _, closeBus, err := openSensor(ctx, c)
		if err != nil {
			return console.Exit(1, "could not open sensor: %s", console.Red(err))
		}
		defer func() { _ = closeBus() }()
		if code := sensor.TriggerSample(ctx); code.IsFatal() {
			return console.Exit(2, "trigger failed: %s", console.Red(code))
		}
		console.PInfof(console.PictoPin, "sample requested from %s", sensor)
		return nil
	},
}

var pressureWatchCmd = cli.Command{
	Name:  "watch",
	Usage: "read pressure periodically",
	Flags: append([]cli.Flag{
		&cli.DurationFlag{Name: "interval", Usage: "time between reads", Value: time.Second},
		&cli.IntFlag{Name: "count", Usage: "stop after this many reads (0 runs until interrupted)"},
		&cli.StringFlag{Name: "metrics-addr", Usage: "serve Prometheus metrics on this address, e.g. :9700"},
	}, sensorFlags...),
	Action: func(c *cli.Context) error {
		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = snsctx.SetVerbose(ctx, c.Bool("verbose"))
		sensor, sc, closeBus, err := openSensor(ctx, c)
		if err != nil {
			return console.Exit(1, "could not open sensor: %s", console.Red(err))
		}
		defer func() { _ = closeBus() }()

		reg := prometheus.NewRegistry()
		exp, err := exporter.New(reg)
		if err != nil {
			return console.Exit(1, "could not create exporter: %s", console.Red(err))
		}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		if addr := c.String("metrics-addr"); addr != "" {
			go func() {
				if err := exporter.Serve(ctx, addr, reg); err != nil {
					console.Errorf("metrics: %s", err)
					cancel()
				}
			}()
			console.Infof("serving metrics on %s/metrics", addr)
		}

		count := c.Int("count")
		reads := 0
		err = exp.Watch(ctx, sc.Name, sensor, c.Duration("interval"), func(pa float32, code npa700.Code) {
			reads++
			printReading(sc.Name, pa, code)
			if count > 0 && reads >= count {
				cancel()
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return console.Exit(1, "watch failed: %s", console.Red(err))
		}
		console.PInfof(console.PictoFinish, "%d reads", reads)
		return nil
	},
}

var pressureVariantsCmd = cli.Command{
	Name:  "variants",
	Usage: "list supported pressure ranges",
	Action: func(c *cli.Context) error {
		w := tabwriter.NewWriter(console.Writer(), 16, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "CODE\tPART\tMIN [Pa]\tMAX [Pa]\tRESOLUTION [Pa]\n")
		for _, v := range npa700.Variants() {
			pmin, pmax, _ := v.Range()
			res, _ := v.Resolution()
			_, _ = fmt.Fprintf(w, "%s\t%s\t%.0f\t%.0f\t%.4f\n", v.Code(), v, pmin, pmax, res)
		}
		return w.Flush()
	},
}

func printReading(name string, pa float32, code npa700.Code) {
	switch {
	case code.IsFatal():
		console.Errorf("%s: %s", name, code)
	case code.IsWarning():
		console.PInfof(console.PictoWind, "%s: %.2f Pa %s", name, pa, console.Yellow(code))
	default:
		console.PInfof(console.PictoGauge, "%s: %.2f Pa", name, pa)
	}
}

func report(name string, sensor *npa700.Sensor, pa float32, code npa700.Code) error {
	if code.IsFatal() {
		return console.Exit(2, "%s read failed: %s", sensor, console.Red(code))
	}
	printReading(name, pa, code)
	return nil
}
