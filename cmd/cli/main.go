package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/kitchensink/internal/client/cli"
	"github.com/dmitrijs2005/kitchensink/internal/client/config"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cfg, rest, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		stop()
		os.Exit(2)
	}

	code := cli.NewApp(cfg).Run(ctx, rest)
	stop()
	os.Exit(code)

}
