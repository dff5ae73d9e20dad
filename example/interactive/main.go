// Interactive echo session: starts a framed echo server on a free local port
// and bridges standard input to it. Every line you type is sent as one
// ten-byte frame (padded or truncated) and the echoed frame is printed back.
// Type "exit" or close stdin (Ctrl+D) to stop.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/polachok/framed"
)

// readLines bridges blocking stdin reads onto a channel so the rest of the
// program can select over input. The channel is closed on EOF or read error.
func readLines() <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			slog.Error("stdin read error", "error", err)
		}
	}()
	return lines
}

func main() {
	server, err := framed.NewServer("127.0.0.1:0")
	if err != nil {
		slog.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		handler := framed.NewEchoHandler(framed.IdleTimeoutOption(time.Hour))
		if err := server.Serve(ctx, handler); err != nil && ctx.Err() == nil {
			slog.Error("server error", "error", err)
		}
	}()

	raw, err := net.Dial("tcp", server.Addr().String())
	if err != nil {
		slog.Error("failed to connect", "error", err)
		os.Exit(1)
	}

	conn, err := framed.NewConn(raw,
		framed.OnFrameOption(func(frame []byte) error {
			fmt.Printf("echo: %q\n", frame)
			return nil
		}),
		// Humans type slowly; don't let the idle timeout cut the session.
		framed.IdleTimeoutOption(time.Hour),
	)
	if err != nil {
		slog.Error("failed to set up connection", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := conn.Run(ctx); err != nil {
			slog.Error("connection error", "error", err)
		}
		cancel()
	}()

	fmt.Println(`Type a line to echo it, "exit" or Ctrl+D to quit.`)
	lines := readLines()
	for {
		select {
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "exit" {
				conn.Close()
				fmt.Printf("sent %d frames, received %d replies\n", conn.Sent(), conn.Received())
				return
			}
			if err := conn.WriteBlocking(ctx, []byte(line)); err != nil {
				slog.Error("send failed", "error", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
