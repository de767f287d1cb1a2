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

package collector

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/carverauto/hostwatch/pkg/events"
	"github.com/carverauto/hostwatch/pkg/logger"
	"github.com/carverauto/hostwatch/pkg/metrics"
	"github.com/carverauto/hostwatch/pkg/models"
)

const (
	defaultBindAddress         = "0.0.0.0"
	defaultBindPort            = 5551
	defaultPollInterval        = 10 * time.Second
	defaultPollTimeout         = 5 * time.Second
	defaultRegistrationTimeout = 15 * time.Second
	defaultWriteTimeout        = 10 * time.Second
	defaultMaxMissedPolls      = 6
	defaultMaxIOErrors         = 3
)

// Config represents collector configuration.
type Config struct {
	BindAddress         string          `json:"bind_address"`
	BindPort            int             `json:"bind_port"`
	PollInterval        models.Duration `json:"poll_interval"`
	PollTimeout         models.Duration `json:"poll_timeout"`
	RegistrationTimeout models.Duration `json:"registration_timeout"`
	WriteTimeout        models.Duration `json:"write_timeout"`
	// MaxMissedPolls ends a session after this many consecutive unanswered
	// polls. Zero keeps silent clients registered indefinitely.
	MaxMissedPolls int `json:"max_missed_polls"`
	// MaxIOErrors ends a session after this many consecutive failed replies.
	MaxIOErrors int            `json:"max_io_errors"`
	Logging     *logger.Config `json:"logging,omitempty"`
	Events      events.Config  `json:"events"`
	Metrics     metrics.Config `json:"metrics"`
}

// DefaultConfig returns the configuration used for any field a config source leaves out.
func DefaultConfig() *Config {
	return &Config{
		BindAddress:         defaultBindAddress,
		BindPort:            defaultBindPort,
		PollInterval:        models.Duration(defaultPollInterval),
		PollTimeout:         models.Duration(defaultPollTimeout),
		RegistrationTimeout: models.Duration(defaultRegistrationTimeout),
		WriteTimeout:        models.Duration(defaultWriteTimeout),
		MaxMissedPolls:      defaultMaxMissedPolls,
		MaxIOErrors:         defaultMaxIOErrors,
		Events:              events.DefaultConfig(),
	}
}

// Validate implements config.Validator interface.
func (c *Config) Validate() error {
	if c.BindAddress == "" {
		c.BindAddress = defaultBindAddress
	}

	if c.BindPort < 0 || c.BindPort > 65535 {
		return fmt.Errorf("%w: %d", errInvalidPort, c.BindPort)
	}

	if c.PollInterval < 0 || c.PollTimeout < 0 || c.RegistrationTimeout < 0 || c.WriteTimeout < 0 {
		return errNegativeDuration
	}

	if time.Duration(c.PollInterval) == 0 {
		c.PollInterval = models.Duration(defaultPollInterval)
	}

	if time.Duration(c.PollTimeout) == 0 {
		c.PollTimeout = models.Duration(defaultPollTimeout)
	}

	if time.Duration(c.RegistrationTimeout) == 0 {
		c.RegistrationTimeout = models.Duration(defaultRegistrationTimeout)
	}

	if time.Duration(c.WriteTimeout) == 0 {
		c.WriteTimeout = models.Duration(defaultWriteTimeout)
	}

	if c.PollTimeout >= c.PollInterval {
		return fmt.Errorf("%w (poll_timeout=%s poll_interval=%s)", errPollTimeoutTooLarge, c.PollTimeout, c.PollInterval)
	}

	if c.MaxMissedPolls < 0 {
		return errNegativeMaxMissed
	}

	if c.MaxIOErrors < 1 {
		return errInvalidMaxIOErrors
	}

	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events: %w", err)
	}

	return nil
}

// ListenAddress returns the host:port the collector binds.
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.BindPort))
}
