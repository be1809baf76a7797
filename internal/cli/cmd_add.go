package cli

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/hardenedlabs/secadm/internal/engine"
	"github.com/hardenedlabs/secadm/internal/ruleset"
	"github.com/hardenedlabs/secadm/internal/wire"
)

// Add command errors.
var (
	errPathRequired   = errors.New("--path is required")
	errHashRequired   = errors.New("--hash is required for integriforce rules")
	errNoFeatures     = errors.New("pax rules need at least one of --aslr/--segvguard")
	errUnknownType    = errors.New("unknown rule type (want integriforce or pax)")
	errHashNotAllowed = errors.New("--hash only applies to integriforce rules")
)

// newAddCommand inserts one rule directly into the live ruleset.
func newAddCommand(env *Env) *Command {
	flags := flag.NewFlagSet("add", flag.ContinueOnError)
	ruleType := flags.StringP("type", "t", "integriforce", "Rule `type`: integriforce or pax")
	path := flags.StringP("path", "p", "", "Absolute `path` of the target file")
	hash := flags.String("hash", "", "Expected `digest` as algo:hex (integriforce)")
	aslr := flags.Bool("aslr", false, "ASLR toggle for the binary (pax)")
	segvguard := flags.Bool("segvguard", false, "Segvguard toggle for the binary (pax)")

	return &Command{
		Flags: flags,
		Usage: "add -p <path> [flags]",
		Short: "Add a single live rule",
		Long: "Add inserts one rule into the jail's live ruleset and prints the\n" +
			"assigned rule id. Integriforce rules take --hash; pax rules take\n" +
			"--aslr and/or --segvguard.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			if *path == "" {
				return errPathRequired
			}

			rule, err := buildRule(*ruleType, *path, *hash, flags, *aslr, *segvguard)
			if err != nil {
				return err
			}

			c, err := env.Dial()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			id, err := c.AddRule(rule)
			if err != nil {
				return err
			}

			o.Printf("rule %d added\n", id)

			return nil
		},
	}
}

func buildRule(ruleType, path, hash string, flags *flag.FlagSet, aslr, segvguard bool) (wire.Rule, error) {
	switch ruleType {
	case "integriforce":
		if hash == "" {
			return wire.Rule{}, errHashRequired
		}

		kind, digest, err := ruleset.ParseDigest(hash)
		if err != nil {
			return wire.Rule{}, err
		}

		return wire.Rule{
			Kind:     engine.KindIntegriforce,
			Active:   true,
			Path:     path,
			HashKind: kind,
			Hash:     digest,
		}, nil

	case "pax":
		if hash != "" {
			return wire.Rule{}, errHashNotAllowed
		}

		var paxFlags engine.PaXFlags

		if flags.Changed("aslr") {
			if aslr {
				paxFlags |= engine.ASLREnable
			} else {
				paxFlags |= engine.ASLRDisable
			}
		}

		if flags.Changed("segvguard") {
			if segvguard {
				paxFlags |= engine.SegvguardEnable
			} else {
				paxFlags |= engine.SegvguardDisable
			}
		}

		if paxFlags == 0 {
			return wire.Rule{}, errNoFeatures
		}

		return wire.Rule{
			Kind:   engine.KindPaX,
			Active: true,
			Path:   path,
			Flags:  paxFlags,
		}, nil

	default:
		return wire.Rule{}, fmt.Errorf("%w: %q", errUnknownType, ruleType)
	}
}
