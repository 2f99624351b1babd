// Command usersites runs the multi-tenant personal-homepage server.
//
// Usage: usersites <port> [<upstream-prefix>]
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/dexgs/user-sites/internal/config"
	"github.com/dexgs/user-sites/internal/wiring"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: usersites <port> [<upstream-prefix>]")
	}

	port, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", args[0], err)
	}

	upstream := ""
	if len(args) > 1 {
		upstream = args[1]
	}

	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading ambient config: %w", err)
	}
	cfg.Port = port
	cfg.Upstream = upstream

	server := wiring.Build(cfg)
	defer server.Stop(context.Background())

	return server.Start(context.Background())
}
