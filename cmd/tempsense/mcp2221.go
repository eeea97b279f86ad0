package main

import (
	"context"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/tempsense/adapter"
	"github.com/mklimuk/tempsense/busctx"
	"github.com/mklimuk/tempsense/cmd/tempsense/console"
)

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "MCP2221 bridge maintenance",
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
	},
}

var mcp2221StatusCmd = cli.Command{
	Name:  "status",
	Usage: "print the bridge I2C engine status",
	Action: func(c *cli.Context) error {
		return mcp2221Report(c, (*adapter.MCP2221).Status)
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel the current transfer and release the bus",
	Action: func(c *cli.Context) error {
		return mcp2221Report(c, (*adapter.MCP2221).ReleaseBus)
	},
}

func mcp2221Report(c *cli.Context, call func(*adapter.MCP2221, context.Context) (*adapter.MCP2221Status, error)) error {
	a := adapter.NewMCP2221()
	if err := a.Init(); err != nil {
		return console.Exit(1, "adapter initialization error: %s", console.Red(err))
	}
	ctx := busctx.SetVerbose(c.Context, c.Bool("verbose"))
	status, err := call(a, ctx)
	if err != nil {
		return console.Exit(1, "adapter communication error: %s", console.Red(err))
	}
	enc := yaml.NewEncoder(console.Output())
	defer func() { _ = enc.Close() }()
	if err := enc.Encode(status); err != nil {
		return console.Exit(1, "encoding error: %s", console.Red(err))
	}
	return nil
}
