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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/hostwatch/pkg/models"
)

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0:5551", cfg.ListenAddress())
	assert.Equal(t, models.Duration(10*time.Second), cfg.PollInterval)
	assert.Equal(t, models.Duration(5*time.Second), cfg.PollTimeout)
	assert.Equal(t, 6, cfg.MaxMissedPolls)
	assert.Equal(t, 3, cfg.MaxIOErrors)
}

func TestConfigJSONOverridesDefaults(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, json.Unmarshal([]byte(`{
		"bind_port": 6000,
		"poll_interval": "30s",
		"max_missed_polls": 0
	}`), cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 6000, cfg.BindPort)
	assert.Equal(t, models.Duration(30*time.Second), cfg.PollInterval)
	assert.Equal(t, models.Duration(5*time.Second), cfg.PollTimeout)
	assert.Equal(t, 0, cfg.MaxMissedPolls)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{
			name:   "poll timeout equal to interval",
			mutate: func(c *Config) { c.PollTimeout = c.PollInterval },
			want:   errPollTimeoutTooLarge,
		},
		{
			name:   "port out of range",
			mutate: func(c *Config) { c.BindPort = 70000 },
			want:   errInvalidPort,
		},
		{
			name:   "negative duration",
			mutate: func(c *Config) { c.RegistrationTimeout = models.Duration(-time.Second) },
			want:   errNegativeDuration,
		},
		{
			name:   "zero io errors",
			mutate: func(c *Config) { c.MaxIOErrors = 0 },
			want:   errInvalidMaxIOErrors,
		},
		{
			name:   "negative missed polls",
			mutate: func(c *Config) { c.MaxMissedPolls = -1 },
			want:   errNegativeMaxMissed,
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

func TestConfigValidateFillsZeroDurations(t *testing.T) {
	t.Parallel()

	cfg := &Config{MaxIOErrors: 1}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, defaultBindAddress, cfg.BindAddress)
	assert.Equal(t, models.Duration(defaultPollInterval), cfg.PollInterval)
	assert.Equal(t, models.Duration(defaultRegistrationTimeout), cfg.RegistrationTimeout)
	assert.Equal(t, models.Duration(defaultWriteTimeout), cfg.WriteTimeout)
}
