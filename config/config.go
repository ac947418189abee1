package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	PolicyFixed      = "fixed"
	PolicyRoundRobin = "roundrobin"
	PolicyNearest    = "nearest"
)

// Environment overrides, read from the .env file given to Load.
const (
	EnvDwellTime   = "DISPATCH_DWELL_TIME"
	EnvPolicy      = "DISPATCH_POLICY"
	EnvFixedCar    = "DISPATCH_FIXED_CAR"
	EnvEventBuffer = "DISPATCH_EVENT_BUFFER"
	EnvPanelPort   = "DISPATCH_PANEL_PORT"
	EnvLogLevel    = "DISPATCH_LOG_LEVEL"
	EnvMaxFloor    = "DISPATCH_MAX_FLOOR"
)

type CarConfig struct {
	ID       string `yaml:"id"`
	MaxFloor int    `yaml:"maxFloor"`
}

type Config struct {
	Cars        []CarConfig   `yaml:"cars"`
	DwellTime   time.Duration `yaml:"dwellTime"`
	Policy      string        `yaml:"policy"`
	FixedCar    string        `yaml:"fixedCar"`
	EventBuffer int           `yaml:"eventBuffer"`
	PanelPort   int           `yaml:"panelPort"` // 0 disables the button panel listener
	LogLevel    string        `yaml:"logLevel"`
}

func Default() Config {
	return Config{
		Cars: []CarConfig{
			{ID: "elevator1", MaxFloor: 10},
			{ID: "elevator2", MaxFloor: 10},
			{ID: "elevator3", MaxFloor: 10},
			{ID: "elevator4", MaxFloor: 10},
		},
		DwellTime:   6 * time.Second,
		Policy:      PolicyFixed,
		EventBuffer: 32,
		LogLevel:    "info",
	}
}

// Load starts from Default, decodes yamlPath over it and then applies overrides from envPath.
// Empty paths are skipped.
func Load(yamlPath, envPath string) (Config, error) {
	c := Default()

	if yamlPath != "" {
		file, err := os.Open(yamlPath)
		if err != nil {
			return c, fmt.Errorf("error opening config file: %w", err)
		}
		defer file.Close()

		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(&c); err != nil {
			return c, fmt.Errorf("error decoding config file %s: %w", yamlPath, err)
		}
	}

	if envPath != "" {
		envFile, err := godotenv.Read(envPath)
		if err != nil {
			return c, fmt.Errorf("error loading env file: %w", err)
		}
		if err := c.applyEnv(envFile); err != nil {
			return c, err
		}
	}

	return c, c.Validate()
}

func (c *Config) applyEnv(env map[string]string) error {
	if v, ok := env[EnvDwellTime]; ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("error converting %s to duration: %w", EnvDwellTime, err)
		}
		c.DwellTime = d
	}
	if v, ok := env[EnvPolicy]; ok {
		c.Policy = v
	}
	if v, ok := env[EnvFixedCar]; ok {
		c.FixedCar = v
	}
	if v, ok := env[EnvLogLevel]; ok {
		c.LogLevel = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{EnvEventBuffer, &c.EventBuffer},
		{EnvPanelPort, &c.PanelPort},
	}
	for _, i := range ints {
		v, ok := env[i.key]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("error converting %s to int: %w", i.key, err)
		}
		*i.dst = n
	}

	if v, ok := env[EnvMaxFloor]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("error converting %s to int: %w", EnvMaxFloor, err)
		}
		for i := range c.Cars {
			c.Cars[i].MaxFloor = n
		}
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error

	seen := make(map[string]struct{})
	for i, car := range c.Cars {
		if car.MaxFloor < 0 {
			errs = append(errs, fmt.Errorf("car %d (%q): maxFloor must be >= 0, got %d", i, car.ID, car.MaxFloor))
		}
		if car.ID == "" {
			continue
		}
		if _, exists := seen[car.ID]; exists {
			errs = append(errs, fmt.Errorf("car id %q listed twice", car.ID))
		}
		seen[car.ID] = struct{}{}
	}

	if c.DwellTime < 0 {
		errs = append(errs, fmt.Errorf("dwellTime must be >= 0, got %v", c.DwellTime))
	}
	if c.EventBuffer < 0 {
		errs = append(errs, fmt.Errorf("eventBuffer must be >= 0, got %d", c.EventBuffer))
	}
	if c.PanelPort < 0 || c.PanelPort > 65535 {
		errs = append(errs, fmt.Errorf("panelPort must be between 0 and 65535, got %d", c.PanelPort))
	}

	switch c.Policy {
	case PolicyFixed, PolicyRoundRobin, PolicyNearest:
	default:
		errs = append(errs, fmt.Errorf("unknown policy %q", c.Policy))
	}
	if c.FixedCar != "" && c.Policy == PolicyFixed {
		if _, exists := seen[c.FixedCar]; !exists {
			errs = append(errs, fmt.Errorf("fixedCar %q is not a configured car", c.FixedCar))
		}
	}

	return errors.Join(errs...)
}
