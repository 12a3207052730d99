package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/npa700"
	"github.com/mklimuk/npa700/cmd/npa700/console"
	"github.com/mklimuk/npa700/config"
)

var configCmd = cli.Command{
	Name:  "config",
	Usage: "sensor file management",
	Subcommands: cli.Commands{
		&configInitCmd,
		&configShowCmd,
	},
}

var adapters = []string{config.AdapterMCP2221, config.AdapterGeneric, config.AdapterNanoPi, config.AdapterEmbd, config.AdapterMock}

var configInitCmd = cli.Command{
	Name:  "init",
	Usage: "create a sensor file interactively",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "file to write", Value: config.DefaultFile},
	},
	Action: func(c *cli.Context) error {
		path := c.String("output")
		if _, err := os.Stat(path); err == nil {
			ok, err := console.Confirm(fmt.Sprintf("%s exists, overwrite?", path))
			if err != nil {
				return console.Exit(1, "prompt error: %s", console.Red(err))
			}
			if !ok {
				console.PInfof(console.PictoStop, "aborted")
				return nil
			}
		}
		cfg, err := promptConfig()
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		if err := config.Save(path, cfg); err != nil {
			return console.Exit(1, "could not save config: %s", console.Red(err))
		}
		console.PInfof(console.PictoNotebook, "config written to %s", console.Bold(path))
		return nil
	},
}

var configShowCmd = cli.Command{
	Name:  "show",
	Usage: "print the resolved sensor file",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Exit(1, "invalid config: %s", console.Red(err))
		}
		data, err := config.Marshal(cfg)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		console.Printf("%s", data)
		return nil
	},
}

func promptConfig() (*config.Config, error) {
	cfg := config.Default()
	adapterName, err := console.Prompt("adapter", adapters...)
	if err != nil {
		return nil, err
	}
	cfg.Adapter = adapterName
	switch cfg.Adapter {
	case config.AdapterGeneric:
		if cfg.Device, err = console.Ask("periph bus name", config.DefaultDevice); err != nil {
			return nil, err
		}
	case config.AdapterNanoPi, config.AdapterEmbd:
		bus, err := console.Ask("bus number", fmt.Sprint(config.DefaultBus))
		if err != nil {
			return nil, err
		}
		if _, err := fmt.Sscan(bus, &cfg.Bus); err != nil {
			return nil, fmt.Errorf("invalid bus number %q", bus)
		}
	}
	for {
		s, err := promptSensor(len(cfg.Sensors))
		if err != nil {
			return nil, err
		}
		cfg.Sensors = append(cfg.Sensors, s)
		more, err := console.Confirm("add another sensor?")
		if err != nil {
			return nil, err
		}
		if !more {
			return cfg, nil
		}
	}
}

func promptSensor(n int) (config.Sensor, error) {
	name, err := console.Ask("sensor name", fmt.Sprintf("sensor%d", n+1))
	if err != nil {
		return config.Sensor{}, err
	}
	addr, err := console.Ask("address", fmt.Sprintf("%#02x", npa700.DefaultAddress))
	if err != nil {
		return config.Sensor{}, err
	}
	address, err := parseAddress(addr)
	if err != nil {
		return config.Sensor{}, err
	}
	codes := make([]string, 0, len(npa700.Variants()))
	for _, v := range npa700.Variants() {
		codes = append(codes, v.Code())
	}
	code, err := console.Ask("variant "+strings.Join(codes, ","), npa700.Variant001D.Code())
	if err != nil {
		return config.Sensor{}, err
	}
	variant, err := npa700.ParseVariant(code)
	if err != nil {
		return config.Sensor{}, errors.Join(err, fmt.Errorf("sensor %q not added", name))
	}
	return config.Sensor{Name: name, Address: address, Variant: variant}, nil
}
