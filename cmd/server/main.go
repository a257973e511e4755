package main

import (
	"context"
	"log"
	"os"

	"github.com/fieldstock/shiftledger/internal/logging"
	"github.com/fieldstock/shiftledger/internal/server"
	"github.com/fieldstock/shiftledger/internal/server/config"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSON(os.Stdout)

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	app.Run(ctx)
}
