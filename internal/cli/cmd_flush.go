package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// newFlushCommand drops every live rule in the target jail.
func newFlushCommand(env *Env) *Command {
	return &Command{
		Flags: flag.NewFlagSet("flush", flag.ContinueOnError),
		Usage: "flush",
		Short: "Drop all live rules in the jail",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			c, err := env.Dial()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err := c.FlushRuleset(); err != nil {
				return err
			}

			o.Println("ruleset flushed")

			return nil
		},
	}
}
