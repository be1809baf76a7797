package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// newNumCommand prints the jail's rule counts.
func newNumCommand(env *Env) *Command {
	return &Command{
		Flags: flag.NewFlagSet("num", flag.ContinueOnError),
		Usage: "num",
		Short: "Show live rule counts for the jail",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			c, err := env.Dial()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			counts, err := c.NumRules()
			if err != nil {
				return err
			}

			o.Printf("total:        %d\n", counts.Total)
			o.Printf("integriforce: %d\n", counts.Integriforce)
			o.Printf("pax:          %d\n", counts.PaX)

			return nil
		},
	}
}
