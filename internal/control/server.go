package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hardenedlabs/secadm/internal/wire"
)

// Server runs a [Dispatcher] behind a stream listener. Each connection is
// served by its own goroutine; commands on one connection are processed in
// order, which is what gives a client's load-then-commit sequence its
// meaning.
type Server struct {
	dispatcher *Dispatcher
	log        zerolog.Logger
}

// NewServer wires a server to a dispatcher.
func NewServer(dispatcher *Dispatcher, log zerolog.Logger) *Server {
	return &Server{dispatcher: dispatcher, log: log}
}

// Serve accepts connections until ctx is canceled or the listener fails.
// In-flight commands run to completion before Serve returns; a command is
// never abandoned mid-dispatch.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	var wg sync.WaitGroup

	// Closing the listener is the only way to unblock Accept.
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	for {
		conn, err := l.Accept()
		if err != nil {
			wg.Wait()

			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("control server accept: %w", err)
		}

		wg.Add(1)

		go func() {
			defer wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	// Drop the connection once shutdown begins so serveConn's read loop
	// cannot outlive Serve indefinitely.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		cmd, err := wire.ReadCommand(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.log.Debug().Err(err).Msg("control: connection read failed")
			}

			return
		}

		rp := s.dispatcher.Dispatch(cmd)

		if err := wire.WriteReply(conn, rp); err != nil {
			if ctx.Err() == nil {
				s.log.Debug().Err(err).Msg("control: connection write failed")
			}

			return
		}
	}
}
