// Package main is the eco bot server entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/app"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/config"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "eco-ekb-bot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	application, err := app.Initialize(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return application.Run()
}
