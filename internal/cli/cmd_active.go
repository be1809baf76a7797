package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// newEnableCommand reactivates a disabled rule.
func newEnableCommand(env *Env) *Command {
	return &Command{
		Flags: flag.NewFlagSet("enable", flag.ContinueOnError),
		Usage: "enable <id>",
		Short: "Mark a live rule active",
		Exec:  setActiveExec(env, true),
	}
}

// newDisableCommand deactivates a rule without removing it.
func newDisableCommand(env *Env) *Command {
	return &Command{
		Flags: flag.NewFlagSet("disable", flag.ContinueOnError),
		Usage: "disable <id>",
		Short: "Mark a live rule inactive",
		Exec:  setActiveExec(env, false),
	}
}

func setActiveExec(env *Env, active bool) func(context.Context, *IO, []string) error {
	return func(_ context.Context, o *IO, args []string) error {
		id, err := parseRuleID(args)
		if err != nil {
			return err
		}

		c, err := env.Dial()
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		if active {
			err = c.EnableRule(id)
		} else {
			err = c.DisableRule(id)
		}

		if err != nil {
			return err
		}

		if active {
			o.Printf("rule %d enabled\n", id)
		} else {
			o.Printf("rule %d disabled\n", id)
		}

		return nil
	}
}
