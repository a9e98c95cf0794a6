package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/config"
)

// envFile records what LoadDotEnv did so it can be logged once a logger exists.
type envFile struct {
	path string
	err  error
}

func main() {
	var env envFile
	env.path, env.err = config.LoadDotEnv()

	app := &cli.App{
		Name:  "plateshare",
		Usage: "Food donation listings and request allocation API.",
		Flags: config.Flags(),
		Commands: []*cli.Command{
			serveCommand(env),
			migrateCommand(),
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
