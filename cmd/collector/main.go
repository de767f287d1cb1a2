/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/carverauto/hostwatch/pkg/collector"
	"github.com/carverauto/hostwatch/pkg/config"
	"github.com/carverauto/hostwatch/pkg/console"
	"github.com/carverauto/hostwatch/pkg/events"
	"github.com/carverauto/hostwatch/pkg/lifecycle"
	"github.com/carverauto/hostwatch/pkg/logger"
	"github.com/carverauto/hostwatch/pkg/metrics"
	"github.com/carverauto/hostwatch/pkg/registry"
	"github.com/carverauto/hostwatch/pkg/version"
)

const (
	serviceName  = "hostwatch-collector"
	flushTimeout = 5 * time.Second
)

var errFailedToLoadConfig = errors.New("failed to load config")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to collector config file (defaults only when empty)")
	noConsole := flag.Bool("no-console", false, "Run without the interactive console")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(serviceName, version.GetFullVersion())

		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := collector.DefaultConfig()
	if err := config.NewConfig(nil).LoadAndValidate(ctx, *configPath, cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = logger.DefaultConfig()

		// stdout belongs to the console
		if !*noConsole {
			logConfig.Output = "stderr"
		}
	}

	if err := lifecycle.InitializeLogger(logConfig); err != nil {
		return err
	}

	collectorLogger, err := lifecycle.CreateComponentLogger("collector", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	var regOpts []registry.Option

	if cfg.Events.Enabled {
		publisher, nc, err := events.Connect(ctx, cfg.Events, collectorLogger)
		if err != nil {
			collectorLogger.Warn().Err(err).Msg("Registry events disabled")
		} else {
			defer nc.Close()
			defer closePublisher(publisher, collectorLogger)

			regOpts = append(regOpts, registry.WithObserver(publisher))
		}
	}

	reg := registry.New(collectorLogger, regOpts...)

	recorder, err := setupMetrics(ctx, cfg, reg, collectorLogger)
	if err != nil {
		return err
	}

	defer shutdownMetrics(recorder, collectorLogger)

	server := collector.NewServer(cfg, reg, collectorLogger, collector.WithRecorder(recorder))

	if !*noConsole {
		con := console.New(reg, cancel, os.Stdin, os.Stdout, collectorLogger)

		go func() {
			if err := con.Run(ctx); err != nil {
				collectorLogger.Warn().Err(err).Msg("Console stopped")
			}
		}()
	}

	return lifecycle.RunService(ctx, &lifecycle.ServiceOptions{
		ServiceName: serviceName,
		Service:     server,
		Logger:      collectorLogger,
	})
}

// setupMetrics installs the OTLP exporter when configured. Instruments are
// always created; without an exporter they record into the no-op provider.
func setupMetrics(
	ctx context.Context, cfg *collector.Config, reg *registry.Registry, log logger.Logger,
) (*metrics.CollectorMetrics, error) {
	if cfg.Metrics.ServiceName == "" {
		cfg.Metrics.ServiceName = serviceName
	}

	_, err := metrics.InitializeMetrics(ctx, cfg.Metrics, version.GetVersion())

	switch {
	case errors.Is(err, metrics.ErrOTelMetricsDisabled):
		log.Debug().Msg("OTel metrics export disabled")
	case err != nil:
		log.Warn().Err(err).Msg("Failed to initialize OTel metrics, continuing without export")
	default:
		log.Info().Str("endpoint", cfg.Metrics.OTel.Endpoint).Msg("OTel metrics export enabled")
	}

	recorder, err := metrics.NewCollectorMetrics(otel.Meter(metrics.MeterName), reg.Len)
	if err != nil {
		return nil, fmt.Errorf("failed to create collector metrics: %w", err)
	}

	return recorder, nil
}

func shutdownMetrics(recorder *metrics.CollectorMetrics, log logger.Logger) {
	if err := recorder.Close(); err != nil {
		log.Debug().Err(err).Msg("Failed to unregister metrics callback")
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := metrics.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to flush metrics")
	}
}

func closePublisher(p *events.Publisher, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := p.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("Registry events not fully flushed")
	}

	published, dropped := p.Stats()
	log.Info().Uint64("published", published).Uint64("dropped", dropped).Msg("Registry event publisher closed")
}
