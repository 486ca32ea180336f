// Command fft fingerprints every regular file under a directory and writes
// the (xxhash64, file_path) table to an SQLite file.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	internal "github.com/BenEdridge/fast-file-tracker/fft"
	"github.com/BenEdridge/fast-file-tracker/fft/config"
	"github.com/BenEdridge/fast-file-tracker/fft/filesystem/common"
	"github.com/BenEdridge/fast-file-tracker/fft/pipeline"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet(internal.DefaultAppCMDShortCut, pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <root>\n\n", internal.DefaultAppCMDShortCut)
		flags.PrintDefaults()
	}

	configPath := flags.String("config", "", "config file (default: ./config.yaml, ~/.config/fft/config.yaml)")
	flags.StringP("output", "o", internal.DefaultOutputPath, "snapshot destination")
	flags.IntP("workers", "w", internal.DefaultHashWorkers(), "hashing workers")
	flags.String("hash-errors", internal.DefaultHashPolicy, "on unreadable files: skip or abort")
	flags.StringArray("exclude", nil, "gitignore-style pattern to exclude, repeatable")
	flags.String("log-level", internal.DefaultLogLevel, "debug, info, warn or error")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return exitUsage
	}
	if flags.NArg() > 1 {
		flags.Usage()
		return exitUsage
	}

	v := viper.New()
	for key, flag := range map[string]string{
		"tracker.outputPath":      "output",
		"tracker.workers":         "workers",
		"tracker.hashErrorPolicy": "hash-errors",
		"tracker.excludes":        "exclude",
		"tracker.logLevel":        "log-level",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "bind flag %s: %v\n", flag, err)
			return exitUsage
		}
	}

	cfg, err := config.LoadConfigWith(v, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return exitUsage
	}

	tracker := cfg.Tracker
	if flags.NArg() == 1 {
		tracker.RootDir = flags.Arg(0)
	}

	log := internal.NewLogger(zerolog.ConsoleWriter{Out: os.Stderr}, tracker.LogLevel)

	driver, err := pipeline.NewDriver(tracker, log)
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := driver.Run(ctx, tracker.RootDir, tracker.OutputPath)
	if err != nil {
		if errors.Is(err, common.ErrBadRoot) {
			return exitUsage
		}
		return exitFailure
	}

	if err := res.WriteReport(os.Stdout); err != nil {
		log.Error().Err(err).Msg("write report")
		return exitFailure
	}
	return 0
}
