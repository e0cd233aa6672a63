package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"golang.org/x/term"

	"github.com/Clark-Hu/movies-db/internal/client"
)

const ClientVersion = "0.1.0"

const dialTimeout = 10 * time.Second

var Err = log.New(os.Stderr, "", log.Ldate|log.Ltime)

func main() {
	usage := `Movie collection client.

Commands are read from stdin, one per line. Type help for the list.

Usage:
    moviectl <host> <port>
    moviectl -h | --help
    moviectl --version

Options:
    -h --help     Show this screen.
    --version     Show version.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], ClientVersion)
	if err != nil {
		panic(err)
	}
	host, _ := opts.String("<host>")
	port, err := opts.Int("<port>")
	if err != nil || port <= 0 || port > 65535 {
		Err.Printf("port must be a number between 1 and 65535")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	p := client.NewProcessor(os.Stdin, os.Stdout, interactive)

	for {
		err := run(ctx, host, port, p)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			os.Exit(1)
		}
		Err.Printf("connection to %s failed: %v", client.SessionURL(host, port), err)
		if !p.Confirm("retry") {
			os.Exit(1)
		}
	}
}

func run(ctx context.Context, host string, port int, p *client.Processor) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	c, err := client.Dial(dialCtx, host, port)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := p.Run(ctx, c); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}
