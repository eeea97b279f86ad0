package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tempsense/cmd/tempsense/console"
)

const maxReadLen = 32

var readCmd = cli.Command{
	Name:      "read",
	Usage:     "read LEN bytes starting at register REG",
	ArgsUsage: "REG [LEN]",
	Flags:     busFlags(),
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return console.Exit(1, "missing register")
		}
		reg, err := parseByte(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "invalid register: %s", console.Red(err))
		}
		length := 1
		if c.NArg() > 1 {
			length, err = parseLength(c.Args().Get(1))
			if err != nil {
				return console.Exit(1, "invalid length: %s", console.Red(err))
			}
		}
		ctx, sess, err := openSession(c, nil)
		if err != nil {
			return initError(err)
		}
		defer closeSession(sess)
		buf := make([]byte, length)
		err = sess.dev.Bus.Read(ctx, sess.dev.ID, reg, buf)
		if err != nil {
			return console.ExitStatus(err, "read error")
		}
		console.Printf("%s", hex.Dump(buf))
		return nil
	},
}

var writeCmd = cli.Command{
	Name:      "write",
	Usage:     "write bytes starting at register REG",
	ArgsUsage: "REG BYTE...",
	Flags: append(busFlags(), &cli.BoolFlag{
		Name:    "yes",
		Aliases: []string{"y"},
		Usage:   "do not ask for confirmation",
	}),
	Action: func(c *cli.Context) error {
		if c.NArg() < 2 {
			return console.Exit(1, "usage: write REG BYTE...")
		}
		reg, err := parseByte(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "invalid register: %s", console.Red(err))
		}
		data, err := parseBytes(c.Args().Slice()[1:])
		if err != nil {
			return console.Exit(1, "invalid data: %s", console.Red(err))
		}
		if !c.Bool("yes") {
			answer, err := console.YesOrNo(fmt.Sprintf("write %s to register %#x?", hex.EncodeToString(data), reg))
			if err != nil {
				return console.Exit(1, "prompt error: %s", console.Red(err))
			}
			if answer != console.Yes {
				console.PInfof(console.PictoStop, "aborted")
				return nil
			}
		}
		ctx, sess, err := openSession(c, nil)
		if err != nil {
			return initError(err)
		}
		defer closeSession(sess)
		err = sess.dev.Bus.Write(ctx, sess.dev.ID, reg, data)
		if err != nil {
			return console.ExitStatus(err, "write error")
		}
		console.PInfof(console.PictoPin, "wrote %s to %s at %s",
			console.White(hex.EncodeToString(data)), console.White(fmt.Sprintf("%#x", reg)), console.White(fmt.Sprintf("%#x", sess.dev.ID)))
		return nil
	},
}

func closeSession(sess *session) {
	if err := sess.Close(); err != nil {
		slog.Warn("could not close bus", "error", err)
	}
}

// parseByte accepts decimal, 0x hex and 0b binary values.
func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

func parseBytes(args []string) ([]byte, error) {
	data := make([]byte, 0, len(args))
	for _, arg := range args {
		b, err := parseByte(arg)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", arg, err)
		}
		data = append(data, b)
	}
	return data, nil
}

func parseLength(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 || n > maxReadLen {
		return 0, fmt.Errorf("length %d out of range 1..%d", n, maxReadLen)
	}
	return n, nil
}
