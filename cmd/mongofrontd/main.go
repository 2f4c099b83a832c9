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

	"github.com/solatis/mongofront/router"
	"github.com/solatis/mongofront/server"
	"github.com/solatis/mongofront/session"
	"github.com/solatis/mongofront/storage"
	"github.com/solatis/mongofront/tap"
	"github.com/solatis/mongofront/wire"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("mongofrontd", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "mongofrontd — a generative MongoDB-wire-protocol server\n\nUsage:\n  mongofrontd [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	listen := fs.String("listen", "127.0.0.1:27017", "client listen address")
	maxConns := fs.Int("max-conns", 0, "maximum concurrent connections (0 = unbounded)")
	maxMessageBytes := fs.Int("max-message-bytes", int(wire.DefaultMaxMessageBytes), "maximum accepted wire message size in bytes")
	idleTimeout := fs.Duration("idle-timeout", session.DefaultIdleTimeout, "session idle timeout")
	absoluteTimeout := fs.Duration("absolute-timeout", session.DefaultAbsoluteTimeout, "session absolute timeout")
	hostname := fs.String("hostname", "", "hostname reported by hello/isMaster (defaults to os.Hostname)")
	tapBuffer := fs.Int("tap-buffer", 256, "buffered event slots per tap subscriber")
	showVersion := fs.Bool("version", false, "show version and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("mongofrontd %s\n", version)
		return
	}

	host := *hostname
	if host == "" {
		if h, err := os.Hostname(); err == nil {
			host = h
		} else {
			host = "mongofrontd"
		}
	}

	cfg := server.Config{
		Addr:            *listen,
		MaxConns:        *maxConns,
		MaxMessageBytes: int32(*maxMessageBytes),
	}

	if err := run(cfg, host, *idleTimeout, *absoluteTimeout, *tapBuffer); err != nil {
		log.Fatal(err)
	}
}

func run(cfg server.Config, host string, idleTimeout, absoluteTimeout time.Duration, tapBuffer int) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := storage.NewStore()
	sessions := session.NewManager(idleTimeout, absoluteTimeout)
	defer sessions.Close()

	b := tap.New(tapBuffer)

	r := router.New(store, sessions, version, host, cfg.MaxMessageBytes)
	r.Broker = b

	srv := server.New(cfg, r)

	log.Printf("mongofrontd %s listening on %s", version, cfg.Addr)
	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("mongofrontd: serve: %w", err)
	}
	return nil
}
