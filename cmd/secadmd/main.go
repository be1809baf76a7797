// Package main provides secadmd, the daemon hosting the policy engine and
// its control channel.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/hardenedlabs/secadm/internal/control"
	"github.com/hardenedlabs/secadm/internal/engine"
	"github.com/hardenedlabs/secadm/internal/fsx"
)

const lockAcquireTimeout = 5 * time.Second

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	flags := flag.NewFlagSet("secadmd", flag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "Config `file` (HuJSON)")
	socketPath := flags.StringP("socket", "s", "", "Control `socket` path (overrides config)")
	logLevel := flags.String("log-level", "", "Log `level`: debug, info, warn, error (overrides config)")

	if err := flags.Parse(args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)

		return 1
	}

	filesystem := fsx.NewReal()

	cfg, err := control.LoadConfig(filesystem, *configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)

		return 1
	}

	if *socketPath != "" {
		cfg.SocketPath = *socketPath
	}

	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: invalid log level:", cfg.LogLevel)

		return 1
	}

	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	if err := serve(filesystem, cfg, log); err != nil {
		log.Error().Err(err).Msg("daemon failed")

		return 1
	}

	return 0
}

func serve(filesystem fsx.FS, cfg control.Config, log zerolog.Logger) error {
	lock, err := control.AcquireInstanceLock(filesystem, cfg.LockPath, lockAcquireTimeout)
	if err != nil {
		return fmt.Errorf("another secadmd may be running: %w", err)
	}
	defer func() { _ = lock.Release() }()

	pidPath := cfg.LockPath + ".pid"
	if err := filesystem.WriteFileAtomic(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer func() { _ = filesystem.Remove(pidPath) }()

	// A stale socket from a crashed daemon blocks the listener; the
	// instance lock already proved nobody is serving it.
	_ = filesystem.Remove(cfg.SocketPath)

	listener, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.SocketPath, err)
	}
	defer func() { _ = filesystem.Remove(cfg.SocketPath) }()

	if err := os.Chmod(cfg.SocketPath, 0o600); err != nil {
		return fmt.Errorf("restrict %s: %w", cfg.SocketPath, err)
	}

	eng := engine.New(engine.Options{FS: filesystem, Logger: &log})
	defer eng.Close()

	server := control.NewServer(control.NewDispatcher(eng, log), log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("socket", cfg.SocketPath).Msg("secadmd listening")

	err = server.Serve(ctx, listener)

	log.Info().Msg("secadmd shutting down")

	return err
}
