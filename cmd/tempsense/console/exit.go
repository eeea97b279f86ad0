package console

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tempsense/bme280"
)

func Exit(code int, msg string, args ...interface{}) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(msg, args...), code)
}

// ExitStatus exits with the negated driver status of err, so COMM_FAIL
// exits with 4 and DEV_NOT_FOUND with 2.
func ExitStatus(err error, msg string) cli.ExitCoder {
	return Exit(-int(bme280.StatusOf(err)), "%s: %s", msg, Red(err))
}
