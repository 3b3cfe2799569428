package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/authgate/internal/buildinfo"
	"github.com/dmitrijs2005/authgate/internal/client/cli"
	"github.com/dmitrijs2005/authgate/internal/client/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app := cli.NewApp(cfg)

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
