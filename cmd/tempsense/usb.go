package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/karalabe/hid"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tempsense/adapter"
	"github.com/mklimuk/tempsense/cmd/tempsense/console"
)

// bridges lists the USB to I2C bridges the mcp2221 backend can drive.
var bridges = map[string][2]uint16{
	"MCP2221": {adapter.VendorID, adapter.ProductID},
}

var usbCmd = cli.Command{
	Name:  "usb",
	Usage: "inspect USB HID devices",
	Subcommands: cli.Commands{
		&usbLsCmd,
		&usbDetectCmd,
	},
}

var usbLsCmd = cli.Command{
	Name:  "ls",
	Usage: "list HID devices",
	Flags: []cli.Flag{
		&cli.UintFlag{Name: "vendor", Usage: "only list devices of this vendor id"},
	},
	Action: func(c *cli.Context) error {
		if !hid.Supported() {
			return console.Exit(1, "HID is not supported on this platform")
		}
		devices := hid.Enumerate(uint16(c.Uint("vendor")), 0)
		w := tabwriter.NewWriter(os.Stdout, 24, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "PATH\tSERIAL\tVENDOR\tPRODUCT ID\tMANUFACTURER\tPRODUCT\n")
		for _, dev := range devices {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%#x\t%#x\t%s\t%s\n",
				dev.Path, dev.Serial, dev.VendorID, dev.ProductID, dev.Manufacturer, dev.Product)
		}
		_ = w.Flush()
		return nil
	},
}

var usbDetectCmd = cli.Command{
	Name:  "detect",
	Usage: "list attached I2C bridges",
	Action: func(c *cli.Context) error {
		w := tabwriter.NewWriter(os.Stdout, 24, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "VENDOR\tPRODUCT\tBRIDGE\tPATH\n")
		found := 0
		for name, codes := range bridges {
			for _, dev := range hid.Enumerate(codes[0], codes[1]) {
				_, _ = fmt.Fprintf(w, "%#x\t%#x\t%s\t%s\n", dev.VendorID, dev.ProductID, name, dev.Path)
				found++
			}
		}
		_ = w.Flush()
		if found == 0 {
			console.PInfof(console.PictoGhost, "no bridge attached")
		}
		return nil
	},
}
