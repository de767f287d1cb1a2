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

package agent

import (
	"fmt"
	"net"
	"runtime"
	"strconv"
	"time"

	"github.com/carverauto/hostwatch/pkg/logger"
	"github.com/carverauto/hostwatch/pkg/models"
)

const (
	defaultCollectorAddress = "127.0.0.1"
	defaultCollectorPort    = 5551
	defaultReconnectBackoff = 5 * time.Second
	defaultConnectTimeout   = 15 * time.Second
	defaultReceiveTimeout   = 15 * time.Second
	defaultMaxIdle          = 2 * time.Minute
	defaultCollectTimeout   = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
)

// Config represents agent configuration.
type Config struct {
	CollectorAddress string          `json:"collector_address"`
	CollectorPort    int             `json:"collector_port"`
	ReconnectBackoff models.Duration `json:"reconnect_backoff"`
	ConnectTimeout   models.Duration `json:"connect_timeout"`
	ReceiveTimeout   models.Duration `json:"receive_timeout"`
	// MaxIdle ends a session when nothing arrives from the collector for this
	// long. Zero waits forever.
	MaxIdle        models.Duration `json:"max_idle"`
	CollectTimeout models.Duration `json:"collect_timeout"`
	WriteTimeout   models.Duration `json:"write_timeout"`
	// DiskPath is the filesystem whose free space is reported.
	DiskPath string         `json:"disk_path"`
	Logging  *logger.Config `json:"logging,omitempty"`
}

// DefaultConfig returns the configuration used for any field a config source leaves out.
func DefaultConfig() *Config {
	return &Config{
		CollectorAddress: defaultCollectorAddress,
		CollectorPort:    defaultCollectorPort,
		ReconnectBackoff: models.Duration(defaultReconnectBackoff),
		ConnectTimeout:   models.Duration(defaultConnectTimeout),
		ReceiveTimeout:   models.Duration(defaultReceiveTimeout),
		MaxIdle:          models.Duration(defaultMaxIdle),
		CollectTimeout:   models.Duration(defaultCollectTimeout),
		WriteTimeout:     models.Duration(defaultWriteTimeout),
		DiskPath:         DefaultDiskPath(),
	}
}

// DefaultDiskPath is the root of the system drive.
func DefaultDiskPath() string {
	if runtime.GOOS == "windows" {
		return `C:\`
	}

	return "/"
}

// Validate implements config.Validator interface.
func (c *Config) Validate() error {
	if c.CollectorAddress == "" {
		return errAddressRequired
	}

	if c.CollectorPort < 1 || c.CollectorPort > 65535 {
		return fmt.Errorf("%w: %d", errInvalidPort, c.CollectorPort)
	}

	for _, d := range []models.Duration{
		c.ReconnectBackoff, c.ConnectTimeout, c.ReceiveTimeout, c.MaxIdle, c.CollectTimeout, c.WriteTimeout,
	} {
		if d < 0 {
			return errNegativeDuration
		}
	}

	if c.ReconnectBackoff == 0 {
		c.ReconnectBackoff = models.Duration(defaultReconnectBackoff)
	}

	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = models.Duration(defaultConnectTimeout)
	}

	if c.ReceiveTimeout == 0 {
		c.ReceiveTimeout = models.Duration(defaultReceiveTimeout)
	}

	if c.CollectTimeout == 0 {
		c.CollectTimeout = models.Duration(defaultCollectTimeout)
	}

	if c.WriteTimeout == 0 {
		c.WriteTimeout = models.Duration(defaultWriteTimeout)
	}

	if c.DiskPath == "" {
		c.DiskPath = DefaultDiskPath()
	}

	return nil
}

// CollectorEndpoint returns the collector's host:port.
func (c *Config) CollectorEndpoint() string {
	return net.JoinHostPort(c.CollectorAddress, strconv.Itoa(c.CollectorPort))
}
