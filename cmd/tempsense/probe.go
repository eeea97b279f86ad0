package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/tempsense/bme280"
	"github.com/mklimuk/tempsense/cmd/tempsense/console"
)

type probeResult struct {
	Bus     int    `yaml:"bus"`
	Address string `yaml:"address"`
	Intf    string `yaml:"intf"`
	State   string `yaml:"state"`
	ChipID  string `yaml:"chip_id"`
	Status  string `yaml:"status"`
}

var probeCmd = cli.Command{
	Name:  "probe",
	Usage: "find the sensor at the primary or secondary address and identify it",
	Flags: busFlags(),
	Action: func(c *cli.Context) error {
		ctx, sess, err := openSession(c, bme280.Identify)
		if err != nil {
			return initError(err)
		}
		defer closeSession(sess)
		id, err := bme280.ChipID(ctx, &sess.dev)
		if err != nil {
			return console.ExitStatus(err, "could not read chip id")
		}
		enc := yaml.NewEncoder(console.Output())
		defer func() { _ = enc.Close() }()
		err = enc.Encode(probeResult{
			Bus:     sess.bus,
			Address: fmt.Sprintf("%#x", sess.dev.ID),
			Intf:    sess.dev.Intf.String(),
			State:   sess.adapter.State().String(),
			ChipID:  fmt.Sprintf("%#x", id),
			Status:  bme280.StatusOK.String(),
		})
		if err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return nil
	},
}
