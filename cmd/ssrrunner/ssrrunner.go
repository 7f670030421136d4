package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stumble/v8ssr/internal/config"
	"github.com/stumble/v8ssr/internal/info"
	"github.com/stumble/v8ssr/pkg/runner"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
	maxHeap := flag.Uint("max-heap", cfg.MaxHeapMB, "max heap size in MB")
	recycleAfter := flag.Int("recycle-after", cfg.RecycleAfter, "reset the render context every N requests, 0 to never reset")
	logLevel := flag.String("log-level", cfg.LogLevel, "log level")
	flag.Parse()
	cfg.LogLevel = *logLevel

	// stdout carries the render protocol, logs go to stderr
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	lvl, err := cfg.Level()
	if err != nil {
		log.Fatal().Err(err).Msg("bad config")
	}
	zerolog.SetGlobalLevel(lvl)

	log.Info().Str("version", info.GetVersion()).Uint("maxHeapMB", *maxHeap).Msg("ssrrunner starting")
	r, err := runner.NewStdioRunner(*maxHeap)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create runner")
	}
	r.RecycleAfter = *recycleAfter
	err = r.Process()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to process")
	}
}
