package cli

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/hardenedlabs/secadm/internal/engine"
	"github.com/hardenedlabs/secadm/internal/fsx"
	"github.com/hardenedlabs/secadm/internal/ruleset"
)

var errUnknownAlgo = errors.New("unknown digest algorithm (want sha1 or sha256)")

// newHashCommand digests a local file in the format ruleset files expect.
func newHashCommand(env *Env) *Command {
	flags := flag.NewFlagSet("hash", flag.ContinueOnError)
	algo := flags.StringP("algo", "a", "sha256", "Digest `algorithm`: sha1 or sha256")

	return &Command{
		Flags: flags,
		Usage: "hash <file> [flags]",
		Short: "Print a file digest for use in ruleset files",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return errFileRequired
			}

			var kind engine.HashKind

			switch *algo {
			case "sha1":
				kind = engine.HashSHA1
			case "sha256":
				kind = engine.HashSHA256
			default:
				return fmt.Errorf("%w: %q", errUnknownAlgo, *algo)
			}

			sum, err := fsx.DigestFile(env.FS, args[0], kind.New())
			if err != nil {
				return err
			}

			o.Printf("%s  %s\n", ruleset.FormatDigest(kind, sum), args[0])

			return nil
		},
	}
}
