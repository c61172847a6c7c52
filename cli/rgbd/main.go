// Package main is the rgbd command itself.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"go.viam.com/rgbd/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		//nolint:gocritic
		os.Exit(1)
	}
}
