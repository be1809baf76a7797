package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/hardenedlabs/secadm/internal/engine"
	"github.com/hardenedlabs/secadm/internal/ruleset"
	"github.com/hardenedlabs/secadm/internal/wire"
)

// newGetCommand fetches and prints one rule record.
func newGetCommand(env *Env) *Command {
	return &Command{
		Flags: flag.NewFlagSet("get", flag.ContinueOnError),
		Usage: "get <id>",
		Short: "Show a live rule by id",
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

			rule, err := c.GetRule(id)
			if err != nil {
				return err
			}

			printRule(o, rule)

			return nil
		},
	}
}

func printRule(o *IO, r wire.Rule) {
	state := "active"
	if !r.Active {
		state = "inactive"
	}

	o.Printf("rule %d (%s, %s)\n", r.ID, r.Kind, state)
	o.Printf("  path:  %s\n", r.Path)
	o.Printf("  file:  %s inode %d\n", r.MountPoint, r.FileID)

	switch r.Kind {
	case engine.KindIntegriforce:
		o.Printf("  hash:  %s\n", ruleset.FormatDigest(r.HashKind, r.Hash))
	case engine.KindPaX:
		printPaXFlags(o, r.Flags)
	case engine.KindExtended:
	}
}

func printPaXFlags(o *IO, flags engine.PaXFlags) {
	if flags&engine.ASLREnable != 0 {
		o.Println("  aslr:  enabled")
	}

	if flags&engine.ASLRDisable != 0 {
		o.Println("  aslr:  disabled")
	}

	if flags&engine.SegvguardEnable != 0 {
		o.Println("  segvguard: enabled")
	}

	if flags&engine.SegvguardDisable != 0 {
		o.Println("  segvguard: disabled")
	}
}
