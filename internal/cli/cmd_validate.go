package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/hardenedlabs/secadm/internal/ruleset"
)

// newValidateCommand checks a ruleset file without contacting the daemon.
func newValidateCommand(env *Env) *Command {
	return &Command{
		Flags: flag.NewFlagSet("validate", flag.ContinueOnError),
		Usage: "validate <file>",
		Short: "Validate a ruleset file locally",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return errFileRequired
			}

			rules, err := ruleset.Load(env.FS, args[0])
			if err != nil {
				return err
			}

			o.Printf("%s: %d rules ok\n", args[0], len(rules))

			return nil
		},
	}
}
