package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "trimfit",
		Usage: "Tailor resumes to job descriptions",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "dotenv files to load before reading the environment",
			},
		},
		Commands: []*cli.Command{
			serveCmd(),
			migrateCmd(),
			userCmd(),
			tailorCmd(),
		},
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Error().Err(err).Msg("trimfit failed")
		cancel()
		os.Exit(1)
	}
}
