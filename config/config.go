// Package config loads the sensor file used by the command line tool.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/npa700"
)

const (
	AdapterMCP2221 = "mcp2221"
	AdapterGeneric = "generic"
	AdapterNanoPi  = "nanopi"
	AdapterEmbd    = "embd"
	AdapterMock    = "mock"
)

const (
	DefaultAdapter = AdapterMCP2221
	DefaultDevice  = "/dev/i2c-1"
	DefaultBus     = 1
	DefaultFile    = "npa700.yaml"
)

var ErrSensorNotFound = errors.New("sensor not found")
var ErrVariantRequired = errors.New("variant is required")

type Config struct {
	Adapter string   `yaml:"adapter"`
	Device  string   `yaml:"device,omitempty"`
	Bus     int      `yaml:"bus,omitempty"`
	Sensors []Sensor `yaml:"sensors"`
}

type Sensor struct {
	Name    string         `yaml:"name"`
	Address byte           `yaml:"address"`
	Variant npa700.Variant `yaml:"variant"`
}

// UnmarshalYAML requires the variant key, since the zero Variant is a valid
// range, and defaults the address to npa700.DefaultAddress.
func (s *Sensor) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Name    string          `yaml:"name"`
		Address *byte           `yaml:"address"`
		Variant *npa700.Variant `yaml:"variant"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Variant == nil {
		return fmt.Errorf("sensor %q at line %d: %w", raw.Name, node.Line, ErrVariantRequired)
	}
	*s = Sensor{Name: raw.Name, Address: npa700.DefaultAddress, Variant: *raw.Variant}
	if raw.Address != nil {
		s.Address = *raw.Address
	}
	return nil
}

func Default() *Config {
	return &Config{
		Adapter: DefaultAdapter,
		Device:  DefaultDevice,
		Bus:     DefaultBus,
	}
}

// Load reads path and fills unset fields with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: could not read %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	err := yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: could not parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Adapter {
	case AdapterMCP2221, AdapterGeneric, AdapterNanoPi, AdapterEmbd, AdapterMock:
	default:
		return fmt.Errorf("config: unknown adapter %q", c.Adapter)
	}
	if c.Bus < 0 || c.Bus > 255 {
		return fmt.Errorf("config: invalid bus number %d", c.Bus)
	}
	seen := make(map[string]struct{}, len(c.Sensors))
	for _, s := range c.Sensors {
		if s.Name == "" {
			return fmt.Errorf("config: sensor at %#02x has no name", s.Address)
		}
		if _, ok := seen[s.Name]; ok {
			return fmt.Errorf("config: duplicate sensor %q", s.Name)
		}
		seen[s.Name] = struct{}{}
		if s.Address == 0 || s.Address > 0x7F {
			return fmt.Errorf("config: sensor %q: address %#02x is not a 7-bit address", s.Name, s.Address)
		}
		if _, ok := s.Variant.Scale(); !ok {
			return fmt.Errorf("config: sensor %q: unknown variant", s.Name)
		}
	}
	return nil
}

// Sensor looks a sensor up by name. An empty name selects the only
// configured sensor.
func (c *Config) Sensor(name string) (Sensor, error) {
	if name == "" && len(c.Sensors) == 1 {
		return c.Sensors[0], nil
	}
	for _, s := range c.Sensors {
		if s.Name == name {
			return s, nil
		}
	}
	return Sensor{}, fmt.Errorf("config: %q: %w", name, ErrSensorNotFound)
}

func Marshal(c *Config) ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("config: could not encode: %w", err)
	}
	return data, nil
}

func Save(path string, c *Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := Marshal(c)
	if err != nil {
		return err
	}
	err = os.WriteFile(path, data, 0o644)
	if err != nil {
		return fmt.Errorf("config: could not write %s: %w", path, err)
	}
	return nil
}
