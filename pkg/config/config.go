// Package config holds the settings shared by the command line tools.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Version is injected at build time.
var Version = "dev"

const EnvPrefix = "TEMPSENSE_"

// Supported bus backends.
const (
	BackendDevfs   = "devfs"
	BackendPeriph  = "periph"
	BackendGobot   = "gobot"
	BackendD2R2    = "d2r2"
	BackendMCP2221 = "mcp2221"
	BackendSim     = "sim"
)

var backends = []string{BackendDevfs, BackendPeriph, BackendGobot, BackendD2R2, BackendMCP2221, BackendSim}

// Board adaptors for the gobot backend.
const (
	AdaptorNanoPi = "nanopi"
	AdaptorRaspi  = "raspi"
)

// Addr is a 7-bit I2C address written as 0x76 or 118 in config files.
type Addr byte

func (a *Addr) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseAddr(value.Value)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Addr) MarshalYAML() (interface{}, error) {
	return a.String(), nil
}

func (a Addr) String() string {
	return fmt.Sprintf("%#x", byte(a))
}

// ParseAddr parses a decimal, 0x-prefixed hex or 0o-prefixed octal address.
func ParseAddr(s string) (Addr, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if v > 0x7F {
		return 0, fmt.Errorf("invalid address %q: not a 7-bit address", s)
	}
	return Addr(v), nil
}

type Config struct {
	Bus     int    `yaml:"bus"`
	Backend string `yaml:"backend"`

	// Device is the device node format used by the devfs backend, e.g. /dev/i2c-%d.
	Device    string `yaml:"device"`
	Primary   Addr   `yaml:"primary"`
	Secondary Addr   `yaml:"secondary"`
	Probe     bool   `yaml:"probe"`

	// Adaptor is the gobot board adaptor.
	Adaptor string `yaml:"adaptor"`

	// Sim is the address the sim backend answers at.
	Sim Addr `yaml:"sim"`
}

func Default() Config {
	return Config{
		Bus:       1,
		Backend:   BackendDevfs,
		Device:    "/dev/i2c-%d",
		Primary:   0x76,
		Secondary: 0x77,
		Probe:     true,
		Adaptor:   AdaptorNanoPi,
		Sim:       0x77,
	}
}

// Load returns the defaults overlaid with the YAML file at path (if path is
// not empty), the dotenv file at envFile (if it exists) and TEMPSENSE_*
// environment variables. The result is not validated so that command line
// flags can still override it; call Validate once everything is merged.
func Load(path, envFile string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("could not read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("could not parse config file %s: %w", path, err)
		}
	}
	if envFile != "" {
		err := godotenv.Load(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("could not load env file %s: %w", envFile, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields with TEMPSENSE_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPrefix + "BUS"); ok {
		bus, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sBUS: %w", EnvPrefix, err)
		}
		c.Bus = bus
	}
	if v, ok := lookup(EnvPrefix + "BACKEND"); ok {
		c.Backend = v
	}
	if v, ok := lookup(EnvPrefix + "ADAPTOR"); ok {
		c.Adaptor = v
	}
	if v, ok := lookup(EnvPrefix + "DEVICE"); ok {
		c.Device = v
	}
	if v, ok := lookup(EnvPrefix + "PROBE"); ok {
		probe, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sPROBE: %w", EnvPrefix, err)
		}
		c.Probe = probe
	}
	for name, field := range map[string]*Addr{"PRIMARY": &c.Primary, "SECONDARY": &c.Secondary, "SIM": &c.Sim} {
		if v, ok := lookup(EnvPrefix + name); ok {
			addr, err := ParseAddr(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*field = addr
		}
	}
	return nil
}

func (c Config) Validate() error {
	if c.Bus < 0 {
		return fmt.Errorf("invalid bus number %d", c.Bus)
	}
	if c.Primary == c.Secondary {
		return fmt.Errorf("primary and secondary address are both %s", c.Primary)
	}
	if c.Backend == BackendGobot && c.Adaptor != AdaptorNanoPi && c.Adaptor != AdaptorRaspi {
		return fmt.Errorf("unknown gobot adaptor %q", c.Adaptor)
	}
	for _, b := range backends {
		if c.Backend == b {
			return nil
		}
	}
	return fmt.Errorf("unknown backend %q (one of %s)", c.Backend, strings.Join(backends, ", "))
}
