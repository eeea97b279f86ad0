package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tempsense/cmd/tempsense/console"
	"github.com/mklimuk/tempsense/pkg/config"
)

var commit string
var date string

// cfg is loaded once before any command runs.
var cfg = config.Default()

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	app := newApp()
	err := app.Run(args)
	if err != nil {
		var exerr cli.ExitCoder
		if errors.As(err, &exerr) {
			if msg := exerr.Error(); msg != "" {
				console.Errorf("%s", msg)
			}
			return exerr.ExitCode()
		}
		log.Printf("unexpected error: %v", err)
		return 1
	}
	return 0
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "tempsense"
	app.EnableBashCompletion = true
	app.Version = fmt.Sprintf("%s-%s-%s", config.Version, date, commit)
	app.Usage = "BME280 bus tool"
	// exit codes are handled by run
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable verbose logging and transfer dumps",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML config file",
		},
		&cli.StringFlag{
			Name:  "env",
			Value: ".env",
			Usage: "dotenv file with TEMPSENSE_* variables",
		},
	}
	app.Before = func(c *cli.Context) error {
		charm := chlog.NewWithOptions(os.Stderr, chlog.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		})
		charm.SetColorProfile(termenv.TrueColor)
		charm.SetLevel(chlog.InfoLevel)
		if c.Bool("verbose") {
			charm.SetLevel(chlog.DebugLevel)
		}
		slog.SetDefault(slog.New(charm))

		loaded, err := config.Load(c.String("config"), c.String("env"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("configuration error: %s", err), 1)
		}
		cfg = loaded
		return nil
	}
	app.Commands = cli.Commands{
		&probeCmd,
		&readCmd,
		&writeCmd,
		&shellCmd,
		&usbCmd,
		&mcp2221Cmd,
	}
	return app
}
