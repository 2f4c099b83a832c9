// Command mongofront-inspect runs a mongofrontd server and a live terminal
// inspector attached to its event broker in a single process, for local
// development and demos — no separate client/server wiring is needed since
// the TUI subscribes to the broker in-process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/solatis/mongofront/router"
	"github.com/solatis/mongofront/server"
	"github.com/solatis/mongofront/session"
	"github.com/solatis/mongofront/storage"
	"github.com/solatis/mongofront/tap"
	"github.com/solatis/mongofront/tui"
	"github.com/solatis/mongofront/wire"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("mongofront-inspect", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "mongofront-inspect — run mongofrontd with a live command inspector\n\nUsage:\n  mongofront-inspect [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	listen := fs.String("listen", "127.0.0.1:27017", "client listen address")
	maxMessageBytes := fs.Int("max-message-bytes", int(wire.DefaultMaxMessageBytes), "maximum accepted wire message size in bytes")
	idleTimeout := fs.Duration("idle-timeout", session.DefaultIdleTimeout, "session idle timeout")
	showVersion := fs.Bool("version", false, "show version and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("mongofront-inspect %s\n", version)
		return
	}

	if err := run(*listen, int32(*maxMessageBytes), *idleTimeout); err != nil {
		log.Fatal(err)
	}
}

func run(addr string, maxMessageBytes int32, idleTimeout time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := storage.NewStore()
	sessions := session.NewManager(idleTimeout, 0)
	defer sessions.Close()

	b := tap.New(256)

	host, err := os.Hostname()
	if err != nil {
		host = "mongofront-inspect"
	}

	r := router.New(store, sessions, version, host, maxMessageBytes)
	r.Broker = b

	srv := server.New(server.Config{Addr: addr, MaxMessageBytes: maxMessageBytes}, r)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx)
	}()

	p := tea.NewProgram(tui.New(b), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		stop()
		return fmt.Errorf("mongofront-inspect: tui: %w", err)
	}

	stop()
	if err := <-errCh; err != nil {
		return fmt.Errorf("mongofront-inspect: serve: %w", err)
	}
	return nil
}
