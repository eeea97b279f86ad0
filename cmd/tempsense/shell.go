package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tempsense/bme280"
	"github.com/mklimuk/tempsense/cmd/tempsense/console"
)

var errQuit = errors.New("quit")

const shellHelp = `r REG [LEN]    read LEN bytes from REG
w REG BYTE...  write bytes to REG
d MS           delay MS milliseconds
id             read the chip id
q              quit`

var shellCmd = cli.Command{
	Name:  "shell",
	Usage: "interactive register shell",
	Flags: append(busFlags(), &cli.StringFlag{
		Name:  "history",
		Usage: "history file",
	}),
	Action: func(c *cli.Context) error {
		ctx, sess, err := openSession(c, nil)
		if err != nil {
			return initError(err)
		}
		defer closeSession(sess)
		rl, err := console.Shell(fmt.Sprintf("bme280@%#x> ", sess.dev.ID), c.String("history"))
		if err != nil {
			return console.Exit(1, "could not start shell: %s", console.Red(err))
		}
		defer func() { _ = rl.Close() }()
		for {
			line, err := rl.Readline()
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return console.Exit(1, "shell error: %s", console.Red(err))
			}
			err = execLine(ctx, &sess.dev, line, rl.Stdout())
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				console.Errorf("%s", describeError(err))
			}
		}
	},
}

// describeError appends the driver status to bus errors only.
func describeError(err error) string {
	if errors.Is(err, bme280.ErrCommFail) || errors.Is(err, bme280.ErrDeviceNotFound) {
		return fmt.Sprintf("%s (%s)", err, bme280.StatusOf(err))
	}
	return err.Error()
}

// execLine runs a single shell command against dev and writes its output to out.
func execLine(ctx context.Context, dev *bme280.Device, line string, out io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	args := fields[1:]
	switch fields[0] {
	case "q", "quit", "exit":
		return errQuit
	case "h", "help", "?":
		_, _ = fmt.Fprintln(out, shellHelp)
		return nil
	case "r", "read":
		if len(args) < 1 || len(args) > 2 {
			return errors.New("usage: r REG [LEN]")
		}
		reg, err := parseByte(args[0])
		if err != nil {
			return fmt.Errorf("invalid register: %w", err)
		}
		length := 1
		if len(args) == 2 {
			if length, err = parseLength(args[1]); err != nil {
				return fmt.Errorf("invalid length: %w", err)
			}
		}
		buf := make([]byte, length)
		if err := dev.Bus.Read(ctx, dev.ID, reg, buf); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "%#x: %s\n", reg, hex.EncodeToString(buf))
		return nil
	case "w", "write":
		if len(args) < 2 {
			return errors.New("usage: w REG BYTE...")
		}
		reg, err := parseByte(args[0])
		if err != nil {
			return fmt.Errorf("invalid register: %w", err)
		}
		data, err := parseBytes(args[1:])
		if err != nil {
			return fmt.Errorf("invalid data: %w", err)
		}
		return dev.Bus.Write(ctx, dev.ID, reg, data)
	case "d", "delay":
		if len(args) != 1 {
			return errors.New("usage: d MS")
		}
		ms, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid delay: %w", err)
		}
		dev.Bus.Delay(ctx, uint32(ms))
		return nil
	case "id":
		id, err := bme280.ChipID(ctx, dev)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "chip id %#x\n", id)
		return nil
	default:
		return fmt.Errorf("unknown command %q, try help", fields[0])
	}
}
