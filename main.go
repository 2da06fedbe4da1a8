package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tclemos/cosmos-bench/cmd"
)

func main() {
	// Default to pretty console logger until the configured format is applied
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("cosmos-bench failed")
		os.Exit(1)
	}
}
