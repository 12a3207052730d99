package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/npa700"
	"github.com/mklimuk/npa700/adapter"
	"github.com/mklimuk/npa700/config"
	"github.com/mklimuk/npa700/i2c"
)

var sensorFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "sensor",
		Aliases: []string{"s"},
		Usage:   "sensor name from the config file",
	},
	&cli.StringFlag{
		Name:  "address",
		Usage: "7-bit sensor address",
		Value: "0x28",
	},
	&cli.StringFlag{
		Name:  "variant",
		Usage: "pressure range code, e.g. 001D or NPA-700-02WD",
		Value: npa700.Variant001D.Code(),
	},
	&cli.Float64Flag{
		Name:  "mock-pressure",
		Usage: "pressure in Pa reported by the mock adapter",
	},
}

// loadConfig merges the config file with the global command line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if c.IsSet("adapter") {
		cfg.Adapter = c.String("adapter")
	}
	if c.IsSet("device") {
		cfg.Device = c.String("device")
	}
	if c.IsSet("bus") {
		cfg.Bus = c.Int("bus")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// settings resolves the bus config and the sensor selected by sensorFlags.
func settings(c *cli.Context) (*config.Config, config.Sensor, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, config.Sensor{}, err
	}

	sensor := config.Sensor{Name: "npa700", Address: npa700.DefaultAddress, Variant: npa700.Variant001D}
	if c.IsSet("sensor") || len(cfg.Sensors) > 0 {
		s, err := cfg.Sensor(c.String("sensor"))
		if err != nil {
			return nil, config.Sensor{}, err
		}
		sensor = s
	}
	if c.IsSet("address") || len(cfg.Sensors) == 0 {
		addr, err := parseAddress(c.String("address"))
		if err != nil {
			return nil, config.Sensor{}, err
		}
		sensor.Address = addr
	}
	if c.IsSet("variant") || len(cfg.Sensors) == 0 {
		v, err := npa700.ParseVariant(c.String("variant"))
		if err != nil {
			return nil, config.Sensor{}, err
		}
		sensor.Variant = v
	}
	return cfg, sensor, nil
}

func parseAddress(s string) (byte, error) {
	addr, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if addr > 0x7F {
		return 0, fmt.Errorf("address %#02x is not a 7-bit address", addr)
	}
	return byte(addr), nil
}

type closer func() error

func noClose() error { return nil }

// openBus opens the adapter selected in cfg. The returned closer must be
// called when the bus is no longer used.
func openBus(ctx context.Context, c *cli.Context, cfg *config.Config, sensor config.Sensor) (npa700.I2CBus, closer, error) {
	speed := c.Int("speed")
	switch cfg.Adapter {
	case config.AdapterMCP2221:
		ad := adapter.NewMCP2221()
		if err := ad.Init(); err != nil {
			return nil, nil, fmt.Errorf("could not initialize adapter: %w", err)
		}
		if speed > 0 {
			if err := ad.SetSpeed(ctx, speed); err != nil {
				return nil, nil, fmt.Errorf("could not set bus speed: %w", err)
			}
		}
		return ad, noClose, nil
	case config.AdapterGeneric:
		bus, err := i2c.NewGenericBus(cfg.Device)
		if err != nil {
			return nil, nil, err
		}
		if speed > 0 {
			if err := bus.SetSpeed(speed); err != nil {
				_ = bus.Close()
				return nil, nil, err
			}
		}
		return bus, bus.Close, nil
	case config.AdapterNanoPi:
		bus, err := i2c.NewNanoPiBus(cfg.Bus)
		if err != nil {
			return nil, nil, err
		}
		return bus, bus.Close, nil
	case config.AdapterEmbd:
		bus, err := i2c.NewEmbdBus(byte(cfg.Bus))
		if err != nil {
			return nil, nil, err
		}
		return bus, bus.Close, nil
	case config.AdapterMock:
		pa := float32(c.Float64("mock-pressure"))
		slog.Debug("using simulated sensor", "pressure", pa, "address", sensor.Address)
		bus := npa700.NewMockBus(sensor.Variant, func(ctx context.Context) (float32, error) {
			return pa, nil
		}, npa700.WithMockAddress(sensor.Address))
		return bus, noClose, nil
	}
	return nil, nil, fmt.Errorf("unknown adapter %q", cfg.Adapter)
}

func openSensor(ctx context.Context, c *cli.Context) (*npa700.Sensor, config.Sensor, closer, error) {
	cfg, sc, err := settings(c)
	if err != nil {
		return nil, sc, nil, err
	}
	bus, closeBus, err := openBus(ctx, c, cfg, sc)
	if err != nil {
		return nil, sc, nil, err
	}
	return npa700.NewFromBus(bus, sc.Variant, npa700.WithAddress(sc.Address)), sc, closeBus, nil
}
