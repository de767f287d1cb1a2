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

package events

import (
	"errors"
	"time"

	"github.com/carverauto/hostwatch/pkg/models"
)

const (
	defaultURL            = "nats://127.0.0.1:4222"
	defaultStream         = "HOSTWATCH_EVENTS"
	defaultSubjectPrefix  = "hostwatch.clients"
	defaultQueueSize      = 256
	defaultPublishTimeout = 5 * time.Second
)

var (
	errURLRequired      = errors.New("events url is required when events are enabled")
	errTLSFilesRequired = errors.New("events tls requires cert_file, key_file and ca_file")
)

// Config controls publication of client lifecycle events to NATS JetStream.
type Config struct {
	Enabled        bool            `json:"enabled"`
	URL            string          `json:"url"`
	Domain         string          `json:"domain,omitempty"`
	Stream         string          `json:"stream"`
	SubjectPrefix  string          `json:"subject_prefix"`
	QueueSize      int             `json:"queue_size"`
	PublishTimeout models.Duration `json:"publish_timeout"`
	// TLS enables mutual TLS to the NATS server when set.
	TLS *TLSConfig `json:"tls,omitempty"`
}

// TLSConfig holds client certificate paths. Relative paths resolve against CertDir.
type TLSConfig struct {
	CertDir    string `json:"cert_dir,omitempty"`
	CertFile   string `json:"cert_file"`
	KeyFile    string `json:"key_file"`
	CAFile     string `json:"ca_file"`
	ServerName string `json:"server_name,omitempty"`
}

// DefaultConfig returns a disabled configuration with default endpoints.
func DefaultConfig() Config {
	return Config{
		URL:            defaultURL,
		Stream:         defaultStream,
		SubjectPrefix:  defaultSubjectPrefix,
		QueueSize:      defaultQueueSize,
		PublishTimeout: models.Duration(defaultPublishTimeout),
	}
}

// Validate implements config.Validator interface.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.URL == "" {
		return errURLRequired
	}

	if c.TLS != nil && (c.TLS.CertFile == "" || c.TLS.KeyFile == "" || c.TLS.CAFile == "") {
		return errTLSFilesRequired
	}

	if c.Stream == "" {
		c.Stream = defaultStream
	}

	if c.SubjectPrefix == "" {
		c.SubjectPrefix = defaultSubjectPrefix
	}

	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}

	if c.PublishTimeout <= 0 {
		c.PublishTimeout = models.Duration(defaultPublishTimeout)
	}

	return nil
}

// Subjects returns the subjects bound to the events stream.
func (c *Config) Subjects() []string {
	return []string{c.SubjectPrefix + ".>"}
}
