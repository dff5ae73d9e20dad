// Starts a framed echo server on a free local port and runs a bounded client
// against it: ten request/reply cycles of the payload [0, 1, 2, 3], which the
// codec pads to a full ten-byte frame. Whichever side finishes first stops
// the other.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/polachok/framed"
)

const quota = 10

func main() {
	server, err := framed.NewServer("127.0.0.1:0")
	if err != nil {
		slog.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutting down...")
		cancel()
	}()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Serve(ctx, framed.NewEchoHandler())
	}()

	client, err := framed.Dial(server.Addr().String(), quota, []byte{0, 1, 2, 3})
	if err != nil {
		slog.Error("client failed to connect", "error", err)
		cancel()
		<-serverDone
		os.Exit(1)
	}

	if err := client.Run(ctx); err != nil {
		slog.Error("client error", "error", err)
	}

	// First one done wins: the client finishing shuts the server down too.
	cancel()
	if err := <-serverDone; err != nil && ctx.Err() == nil {
		slog.Error("server error", "error", err)
	}
}
