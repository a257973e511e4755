package main

import (
	"context"
	"log"
	"os"

	"github.com/fieldstock/shiftledger/internal/client/cli"
	"github.com/fieldstock/shiftledger/internal/client/config"
	"github.com/fieldstock/shiftledger/internal/logging"
)

func main() {
	cfg := config.LoadConfig()
	logger := logging.NewJSON(os.Stderr)

	ctx := context.Background()
	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)
}
