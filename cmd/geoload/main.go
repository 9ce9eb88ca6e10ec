package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/torosent/geoload/internal/config"
)

func main() {
	cmd := newRootCmd(config.NewLoader(), os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(loader *config.Loader, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "geoload",
		Short:         "Load and smoke testing for a caching geo API proxy",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	load := &cobra.Command{
		Use:   "load",
		Short: "Drive randomized directions traffic with simulated users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loader.LoadFlags(cmd.Flags())
			if err != nil {
				return err
			}
			setupLogger(stderr, cfg.Verbose)
			return runLoad(cmd.Context(), cfg, stdout, stderr)
		},
	}
	config.RegisterLoadFlags(load)

	smoke := &cobra.Command{
		Use:   "smoke",
		Short: "Send a few sequential requests and print the X-Cache header of each",
	}
	for _, kind := range []config.SmokeKind{config.SmokeDirections, config.SmokeDistanceMatrix} {
		smoke.AddCommand(newSmokeCmd(loader, kind, stdout, stderr))
	}

	root.AddCommand(load, smoke)
	return root
}

func newSmokeCmd(loader *config.Loader, kind config.SmokeKind, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: fmt.Sprintf("Probe the %s endpoint", kind),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loader.LoadSmokeFlags(kind, cmd.Flags())
			if err != nil {
				return err
			}
			setupLogger(stderr, cfg.Verbose)
			return runSmoke(cmd.Context(), cfg, stdout)
		},
	}
	config.RegisterSmokeFlags(cmd)
	return cmd
}

func setupLogger(w io.Writer, verbose bool) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
}
