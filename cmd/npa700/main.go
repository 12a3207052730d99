package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/npa700/cmd/npa700/console"
)

var version string
var commit string
var date string

func main() {
	os.Exit(run(os.Args))
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "npa700"
	app.EnableBashCompletion = true
	app.Version = fmt.Sprintf("%s-%s-%s", version, date, commit)
	app.Usage = "NPA-700 differential pressure sensor cli"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable verbose logging",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "sensor file (yaml)",
			EnvVars: []string{"NPA700_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "bus adapter: mcp2221, generic, nanopi, embd or mock",
		},
		&cli.StringFlag{
			Name:  "device",
			Usage: "periph bus name for the generic adapter",
		},
		&cli.IntFlag{
			Name:  "bus",
			Usage: "bus number for the nanopi and embd adapters",
		},
		&cli.IntFlag{
			Name:  "speed",
			Usage: "I2C clock in Hz (mcp2221 and generic only)",
		},
	}
	app.Before = func(ctx *cli.Context) error {
		charm := chlog.NewWithOptions(os.Stderr, chlog.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		})
		charm.SetColorProfile(termenv.TrueColor)
		charm.SetLevel(chlog.InfoLevel)
		if ctx.Bool("verbose") {
			charm.SetLevel(chlog.DebugLevel)
		}
		slog.SetDefault(slog.New(charm))
		return nil
	}
	// exit codes are resolved in run
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.Commands = cli.Commands{
		&pressureCmd,
		&configCmd,
		&usbCmd,
		&mcp2221Cmd,
	}
	return app
}

func run(args []string) int {
	err := newApp().Run(args)
	if err != nil {
		var exerr cli.ExitCoder
		if errors.As(err, &exerr) {
			console.Errorf("%s", err)
			return exerr.ExitCode()
		}
		console.Errorf("unexpected error: %s", err)
		return 1
	}
	return 0
}
