package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	flag "github.com/spf13/pflag"
)

var errIDRequired = errors.New("rule id is required")

func parseRuleID(args []string) (uint32, error) {
	if len(args) != 1 {
		return 0, errIDRequired
	}

	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("rule id %q: %w", args[0], err)
	}

	return uint32(id), nil
}

// newDelCommand removes one live rule.
func newDelCommand(env *Env) *Command {
	return &Command{
		Flags: flag.NewFlagSet("del", flag.ContinueOnError),
		Usage: "del <id>",
		Short: "Delete a live rule by id",
		Exec: func(_ context.Context, o *IO, args []string) error {
			id, err := parseRuleID(args)
			if err != nil {
				return err
			}

			c, err := env.Dial()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err := c.DelRule(id); err != nil {
				return err
			}

			o.Printf("rule %d deleted\n", id)

			return nil
		},
	}
}
