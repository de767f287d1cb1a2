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

	"github.com/carverauto/hostwatch/pkg/agent"
	"github.com/carverauto/hostwatch/pkg/config"
	"github.com/carverauto/hostwatch/pkg/lifecycle"
	"github.com/carverauto/hostwatch/pkg/sysinfo"
	"github.com/carverauto/hostwatch/pkg/version"
)

const serviceName = "hostwatch-agent"

var errFailedToLoadConfig = errors.New("failed to load config")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to agent config file (defaults only when empty)")
	collectorAddr := flag.String("collector", "", "Collector host, overrides collector_address")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(serviceName, version.GetFullVersion())

		return nil
	}

	ctx := context.Background()

	cfg := agent.DefaultConfig()
	if err := config.NewConfig(nil).LoadAndValidate(ctx, *configPath, cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	if *collectorAddr != "" {
		cfg.CollectorAddress = *collectorAddr
	}

	if err := lifecycle.InitializeLogger(cfg.Logging); err != nil {
		return err
	}

	agentLogger, err := lifecycle.CreateComponentLogger("agent", cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	agentLogger.Info().
		Str("version", version.GetFullVersion()).
		Str("collector", cfg.CollectorEndpoint()).
		Msg("Starting hostwatch agent")

	a, err := agent.New(cfg, sysinfo.NewCollector(cfg.DiskPath, agentLogger), agentLogger)
	if err != nil {
		return err
	}

	return lifecycle.RunService(ctx, &lifecycle.ServiceOptions{
		ServiceName: serviceName,
		Service:     a,
		Logger:      agentLogger,
	})
}
