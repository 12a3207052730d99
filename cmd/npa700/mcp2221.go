package main

import (
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/npa700/adapter"
	"github.com/mklimuk/npa700/cmd/npa700/console"
	"github.com/mklimuk/npa700/snsctx"
)

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "MCP2221 USB bridge maintenance",
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
	},
}

var mcp2221Flags = []cli.Flag{
	&cli.IntFlag{Name: "index", Usage: "bridge index when more than one is attached", Value: -1},
}

func newMCP2221(c *cli.Context) *adapter.MCP2221 {
	if index := c.Int("index"); index >= 0 {
		return adapter.NewMCP2221(adapter.WithDeviceIndex(index))
	}
	return adapter.NewMCP2221()
}

var mcp2221StatusCmd = cli.Command{
	Name:  "status",
	Usage: "print the I2C engine status",
	Flags: mcp2221Flags,
	Action: func(c *cli.Context) error {
		a := newMCP2221(c)
		ctx := snsctx.SetVerbose(c.Context, c.Bool("verbose"))
		status, err := a.Status(ctx)
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		return printYAML(status)
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel the current transfer and free the bus",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
	}, mcp2221Flags...),
	Action: func(c *cli.Context) error {
		if !c.Bool("yes") {
			ok, err := console.Confirm("cancel the pending transfer?")
			if err != nil {
				return console.Exit(1, "prompt error: %s", console.Red(err))
			}
			if !ok {
				console.PInfof(console.PictoStop, "aborted")
				return nil
			}
		}
		a := newMCP2221(c)
		ctx := snsctx.SetVerbose(c.Context, c.Bool("verbose"))
		status, err := a.ReleaseBus(ctx)
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		return printYAML(status)
	},
}

func printYAML(v interface{}) error {
	enc := yaml.NewEncoder(console.Writer())
	defer func() { _ = enc.Close() }()
	if err := enc.Encode(v); err != nil {
		return console.Exit(1, "encoding error: %s", console.Red(err))
	}
	return nil
}
