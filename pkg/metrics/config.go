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

package metrics

import "github.com/carverauto/hostwatch/pkg/models"

// Config captures the information required to initialise the OTel metrics pipeline.
type Config struct {
	ServiceName string      `json:"service_name,omitempty"`
	OTel        *OTelConfig `json:"otel,omitempty"`
	// ExportInterval controls how often metric data is flushed to the OTLP collector.
	// When zero, the default interval of 15 seconds is used.
	ExportInterval models.Duration `json:"export_interval,omitempty"`
}

// OTelConfig describes the OTLP gRPC endpoint metrics are exported to.
type OTelConfig struct {
	Enabled  bool              `json:"enabled"`
	Endpoint string            `json:"endpoint"`
	Headers  map[string]string `json:"headers,omitempty"`
	Insecure bool              `json:"insecure"`
	TLS      *TLSConfig        `json:"tls,omitempty"`
}

type TLSConfig struct {
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`
	CAFile   string `json:"ca_file,omitempty"`
}

// Enabled reports whether an exporter should be installed.
func (c *Config) Enabled() bool {
	return c != nil && c.OTel != nil && c.OTel.Enabled && c.OTel.Endpoint != ""
}
