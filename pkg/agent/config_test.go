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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/hostwatch/pkg/models"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:5551", cfg.CollectorEndpoint())
	assert.Equal(t, models.Duration(5*time.Second), cfg.ReconnectBackoff)
	assert.Equal(t, models.Duration(15*time.Second), cfg.ReceiveTimeout)
	assert.Equal(t, models.Duration(2*time.Minute), cfg.MaxIdle)
	assert.NotEmpty(t, cfg.DiskPath)
}

func TestConfigFromJSON(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, json.Unmarshal([]byte(`{
		"collector_address": "collector.example.net",
		"collector_port": 7000,
		"max_idle": "0s",
		"reconnect_backoff": 1000000000
	}`), cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "collector.example.net:7000", cfg.CollectorEndpoint())
	assert.Equal(t, models.Duration(0), cfg.MaxIdle)
	assert.Equal(t, models.Duration(time.Second), cfg.ReconnectBackoff)
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{name: "missing address", mutate: func(c *Config) { c.CollectorAddress = "" }, want: errAddressRequired},
		{name: "port zero", mutate: func(c *Config) { c.CollectorPort = 0 }, want: errInvalidPort},
		{name: "port too large", mutate: func(c *Config) { c.CollectorPort = 65536 }, want: errInvalidPort},
		{
			name:   "negative backoff",
			mutate: func(c *Config) { c.ReconnectBackoff = models.Duration(-time.Second) },
			want:   errNegativeDuration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)

			require.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestConfigValidateFillsDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{CollectorAddress: "10.0.0.1", CollectorPort: 5551}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, models.Duration(defaultConnectTimeout), cfg.ConnectTimeout)
	assert.Equal(t, models.Duration(defaultCollectTimeout), cfg.CollectTimeout)
	assert.Equal(t, DefaultDiskPath(), cfg.DiskPath)
	assert.Equal(t, models.Duration(0), cfg.MaxIdle)
}
