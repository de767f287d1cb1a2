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

package logger

import (
	"os"
	"strconv"
)

// DefaultConfig builds a Config from HOSTWATCH_LOG_* environment variables,
// falling back to info-level JSON on stdout.
func DefaultConfig() *Config {
	return &Config{
		Level:      envString("HOSTWATCH_LOG_LEVEL", "info"),
		Debug:      envBool("HOSTWATCH_DEBUG"),
		Output:     envString("HOSTWATCH_LOG_OUTPUT", "stdout"),
		TimeFormat: envString("HOSTWATCH_LOG_TIME_FORMAT", ""),
	}
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}

	return fallback
}

// envBool accepts anything strconv.ParseBool does plus yes/on.
func envBool(key string) bool {
	v := os.Getenv(key)

	switch v {
	case "yes", "on", "YES", "ON":
		return true
	}

	b, err := strconv.ParseBool(v)

	return err == nil && b
}

// InitWithDefaults initializes the global logger from DefaultConfig.
func InitWithDefaults() error {
	return Init(DefaultConfig())
}
