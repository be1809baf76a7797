package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/hardenedlabs/secadm/internal/client"
	"github.com/hardenedlabs/secadm/internal/fsx"
)

// Env carries everything a command needs from its surroundings, so tests
// can run commands against an in-process daemon.
type Env struct {
	// SocketPath is the daemon's control socket.
	SocketPath string

	// JailID is sent with every command. Zero targets the host jail.
	JailID uint32

	// FS is the filesystem used by commands that read local files.
	FS fsx.FS

	// DialFunc overrides how commands reach the daemon. Nil dials
	// SocketPath over a unix socket.
	DialFunc func() (*client.Client, error)
}

// Dial connects to the daemon using the environment's dial function.
func (e *Env) Dial() (*client.Client, error) {
	if e.DialFunc != nil {
		return e.DialFunc()
	}

	return client.Dial(e.SocketPath, client.Options{JailID: e.JailID})
}

// DefaultSocketPath is where the daemon listens unless overridden.
const DefaultSocketPath = "/var/run/secadmd.sock"

// Run is the main entry point. Returns exit code.
func Run(out io.Writer, errOut io.Writer, args []string) int {
	globalFlags := flag.NewFlagSet("secadm", flag.ContinueOnError)
	globalFlags.SetInterspersed(false)
	globalFlags.Usage = func() {}
	globalFlags.SetOutput(&strings.Builder{})
	flagHelp := globalFlags.BoolP("help", "h", false, "Show help")
	flagSocket := globalFlags.StringP("socket", "s", DefaultSocketPath, "Control `socket` path")
	flagJail := globalFlags.Uint32P("jail", "j", 0, "Target jail `id` (0 = host)")

	if err := globalFlags.Parse(args[1:]); err != nil {
		fprintln(errOut, "error:", err)
		printGlobalOptions(errOut)

		return 1
	}

	env := &Env{
		SocketPath: *flagSocket,
		JailID:     *flagJail,
		FS:         fsx.NewReal(),
	}

	commands := allCommands(env)

	commandMap := make(map[string]*Command, len(commands))
	for _, cmd := range commands {
		commandMap[cmd.Name()] = cmd
	}

	commandAndArgs := globalFlags.Args()

	// Show help: explicit --help or bare `secadm` with no args
	if *flagHelp || (len(commandAndArgs) == 0 && globalFlags.NFlag() == 0) {
		printUsage(out, commands)

		return 0
	}

	// Flags provided but no command: `secadm -j 4`
	if len(commandAndArgs) == 0 {
		fprintln(errOut, "error: no command provided")
		printUsage(errOut, commands)

		return 1
	}

	cmdName := commandAndArgs[0]

	cmd, ok := commandMap[cmdName]
	if !ok {
		fprintln(errOut, "error: unknown command:", cmdName)
		printUsage(errOut, commands)

		return 1
	}

	return cmd.Run(context.Background(), NewIO(out, errOut), commandAndArgs[1:])
}

// allCommands builds every command against the given environment.
func allCommands(env *Env) []*Command {
	return []*Command{
		newLoadCommand(env),
		newFlushCommand(env),
		newAddCommand(env),
		newDelCommand(env),
		newEnableCommand(env),
		newDisableCommand(env),
		newGetCommand(env),
		newNumCommand(env),
		newValidateCommand(env),
		newHashCommand(env),
	}
}

func printUsage(w io.Writer, commands []*Command) {
	fprintln(w, "Usage: secadm [global flags] <command> [args]")
	fprintln(w)
	fprintln(w, "Commands:")

	for _, cmd := range commands {
		fprintln(w, cmd.HelpLine())
	}

	fprintln(w)
	printGlobalOptions(w)
}

func printGlobalOptions(w io.Writer) {
	fprintln(w, "Global flags:")
	fprintln(w, "  -s, --socket path   Control socket path (default", DefaultSocketPath+")")
	fprintln(w, "  -j, --jail id       Target jail id (default 0)")
	fprintln(w, "  -h, --help          Show help")
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}
