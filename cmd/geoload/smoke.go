package main

import (
	"context"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/torosent/geoload/internal/config"
	"github.com/torosent/geoload/internal/httpclient"
	"github.com/torosent/geoload/internal/smoke"
)

func runSmoke(ctx context.Context, cfg *config.SmokeConfig, stdout io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	var probe smoke.Probe
	switch cfg.Kind {
	case config.SmokeDistanceMatrix:
		probe = smoke.DistanceMatrixProbe(cfg.URL, cfg.APIKey)
	default:
		probe = smoke.DirectionsProbe(cfg.URL, cfg.APIKey)
	}
	probe.Requests = cfg.Requests

	log.Debug().Str("probe", probe.Name).Str("url", probe.URL).Int("requests", probe.Requests).Msg("starting smoke probe")
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := smoke.Run(ctx, httpclient.NewClient(cfg.Timeout), probe, stdout)
	return err
}
