package stow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config selects a backend driver and carries its driver-specific
// options.
type Config struct {
	Driver  string         `yaml:"driver"`
	Options map[string]any `yaml:"options"`
}

// DecodeOptions re-marshals the generic option map into a driver's own
// configuration struct.
func (c Config) DecodeOptions(out any) error {
	raw, err := yaml.Marshal(c.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode options: %w", err)
	}
	return nil
}

// LoadConfig reads a yaml backend configuration from path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Driver opens a Backend from a Config.
type Driver func(Config) (Backend, error)

var drivers = make(map[string]Driver)

// RegisterDriver makes a backend driver available under the given
// name, usually from the providing package's init.
//
// Panics if the driver is nil or the name is already registered.
func RegisterDriver(name string, driver Driver) {
	if driver == nil {
		panic("stow: could not register nil Driver")
	}
	if _, dup := drivers[name]; dup {
		panic("stow: could not register duplicate Driver: " + name)
	}
	drivers[name] = driver
}

// Open opens the Backend named by the configuration.
func Open(cfg Config) (Backend, error) {
	driver, ok := drivers[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("stow: unknown driver %q (forgotten configuration or import?)", cfg.Driver)
	}
	return driver(cfg)
}
