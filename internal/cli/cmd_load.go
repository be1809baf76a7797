package cli

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/hardenedlabs/secadm/internal/ruleset"
)

var errFileRequired = errors.New("ruleset file is required")

// newLoadCommand stages a ruleset file and commits it as the live ruleset.
func newLoadCommand(env *Env) *Command {
	flags := flag.NewFlagSet("load", flag.ContinueOnError)
	stageOnly := flags.BoolP("stage", "n", false, "Stage the ruleset without committing")

	return &Command{
		Flags: flags,
		Usage: "load <file> [flags]",
		Short: "Load a ruleset file",
		Long: "Load parses a HuJSON ruleset file, stages every rule, and commits\n" +
			"the staged set as the jail's live ruleset in one atomic swap.\n" +
			"Nothing is staged if any entry fails validation.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return errFileRequired
			}

			rules, err := ruleset.Load(env.FS, args[0])
			if err != nil {
				return err
			}

			c, err := env.Dial()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err := c.LoadRuleset(rules); err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}

			if *stageOnly {
				o.Printf("staged %d rules\n", len(rules))
				return nil
			}

			if err := c.Commit(); err != nil {
				return fmt.Errorf("commit %s: %w", args[0], err)
			}

			o.Printf("loaded %d rules\n", len(rules))

			return nil
		},
	}
}
