package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"
	gobot "gobot.io/x/gobot/v2/drivers/i2c"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
	"gobot.io/x/gobot/v2/platforms/raspi"

	"github.com/mklimuk/tempsense"
	"github.com/mklimuk/tempsense/adapter"
	"github.com/mklimuk/tempsense/bme280"
	"github.com/mklimuk/tempsense/busctx"
	"github.com/mklimuk/tempsense/cmd/tempsense/console"
	"github.com/mklimuk/tempsense/i2c"
	"github.com/mklimuk/tempsense/pkg/config"
)

// BME280 chip id, preloaded into the simulated register file.
const (
	simChipIDReg = 0xD0
	simChipID    = 0x60
)

func busFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "bus",
			Aliases: []string{"b"},
			Usage:   "bus number",
		},
		&cli.StringFlag{
			Name:  "backend",
			Usage: "bus backend: devfs, periph, gobot, d2r2, mcp2221 or sim",
		},
		&cli.BoolFlag{
			Name:  "probe",
			Usage: "check that the sensor acknowledges before using an address",
		},
		&cli.StringFlag{
			Name:  "primary",
			Usage: "primary sensor address",
		},
		&cli.StringFlag{
			Name:  "secondary",
			Usage: "secondary sensor address",
		},
	}
}

// settings returns the loaded config with flags set on the command line applied.
func settings(c *cli.Context) (config.Config, error) {
	s := cfg
	if c.IsSet("bus") {
		s.Bus = c.Int("bus")
	}
	if c.IsSet("backend") {
		s.Backend = c.String("backend")
	}
	if c.IsSet("probe") {
		s.Probe = c.Bool("probe")
	}
	for name, field := range map[string]*config.Addr{"primary": &s.Primary, "secondary": &s.Secondary} {
		if !c.IsSet(name) {
			continue
		}
		addr, err := config.ParseAddr(c.String(name))
		if err != nil {
			return s, fmt.Errorf("invalid --%s: %w", name, err)
		}
		*field = addr
	}
	return s, s.Validate()
}

// session is an initialized adapter together with the resources its
// backend holds open.
type session struct {
	adapter  *bme280.Adapter
	dev      bme280.Device
	bus      int
	finalize []func() error
}

func (s *session) Close() error {
	var errs []error
	if s.adapter.State() == bme280.StateOpened {
		errs = append(errs, s.adapter.Close())
	}
	for i := len(s.finalize) - 1; i >= 0; i-- {
		errs = append(errs, s.finalize[i]())
	}
	return errors.Join(errs...)
}

// openSession builds the backend selected by c and runs Init on it. driverInit
// is the driver init handed to the adapter; nil stops after binding.
func openSession(c *cli.Context, driverInit bme280.DriverInit) (context.Context, *session, error) {
	s, err := settings(c)
	if err != nil {
		return nil, nil, console.Exit(1, "invalid settings: %s", console.Red(err))
	}
	ctx := busctx.SetVerbose(c.Context, c.Bool("verbose"))
	ctx = busctx.SetDeviceName(ctx, "bme280")
	opener, finalize, err := newOpener(ctx, s, c.Bool("verbose"))
	if err != nil {
		return nil, nil, console.Exit(1, "backend error: %s", console.Red(err))
	}
	sess := &session{
		bus:      s.Bus,
		finalize: finalize,
		adapter: bme280.NewAdapter(opener,
			bme280.WithAddresses(byte(s.Primary), byte(s.Secondary)),
			bme280.WithProbe(s.Probe),
			bme280.WithDriverInit(driverInit),
		),
	}
	slog.DebugContext(ctx, "initializing sensor", "backend", s.Backend, "bus", s.Bus,
		"primary", s.Primary.String(), "secondary", s.Secondary.String())
	err = sess.adapter.Init(ctx, s.Bus, &sess.dev)
	if err != nil {
		if cerr := sess.Close(); cerr != nil {
			slog.WarnContext(ctx, "could not release backend", "error", cerr)
		}
		return nil, nil, err
	}
	return ctx, sess, nil
}

// initError turns an openSession failure into an exit error, keeping the
// driver status as exit code for bus failures.
func initError(err error) error {
	var exit cli.ExitCoder
	if errors.As(err, &exit) {
		return err
	}
	return console.ExitStatus(err, "sensor initialization error")
}

func newOpener(ctx context.Context, s config.Config, verbose bool) (tempsense.Opener, []func() error, error) {
	switch s.Backend {
	case config.BackendDevfs:
		return &i2c.Devfs{PathFormat: s.Device}, nil, nil
	case config.BackendPeriph:
		return &i2c.Periph{}, nil, nil
	case config.BackendD2R2:
		return &i2c.D2R2{Debug: verbose}, nil, nil
	case config.BackendGobot:
		connector, finalize, err := gobotConnector(s.Adaptor)
		if err != nil {
			return nil, nil, err
		}
		return &i2c.Gobot{Connector: connector}, []func() error{finalize}, nil
	case config.BackendMCP2221:
		bridge := adapter.NewMCP2221()
		if err := bridge.Init(); err != nil {
			return nil, nil, fmt.Errorf("adapter initialization error: %w", err)
		}
		return &i2c.Addressable{Bus: bridge, Context: ctx}, nil, nil
	case config.BackendSim:
		sim := i2c.NewSim(byte(s.Sim))
		sim.SetRegister(simChipIDReg, simChipID)
		return sim, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", s.Backend)
	}
}

func gobotConnector(name string) (gobot.Connector, func() error, error) {
	switch name {
	case config.AdaptorNanoPi:
		npi := nanopi.NewNeoAdaptor()
		if err := npi.I2cBusAdaptor.Connect(); err != nil {
			return nil, nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		return npi, npi.I2cBusAdaptor.Finalize, nil
	case config.AdaptorRaspi:
		pi := raspi.NewAdaptor()
		if err := pi.Connect(); err != nil {
			return nil, nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		return pi, pi.Finalize, nil
	default:
		return nil, nil, fmt.Errorf("unknown gobot adaptor %q", name)
	}
}
