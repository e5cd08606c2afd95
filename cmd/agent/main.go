package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/edgekeeper/internal/agent"
	"github.com/dmitrijs2005/edgekeeper/internal/buildinfo"
	"github.com/dmitrijs2005/edgekeeper/internal/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx := context.Background()
	app, err := agent.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}
