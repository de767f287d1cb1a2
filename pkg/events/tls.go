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
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrCAParsingFailed is returned when the CA bundle holds no usable certificate.
var ErrCAParsingFailed = errors.New("failed to parse CA certificate")

// clientTLS builds the mTLS client configuration for the NATS connection.
func clientTLS(cfg *TLSConfig) (*tls.Config, error) {
	certFile := resolvePath(cfg.CertDir, cfg.CertFile)
	keyFile := resolvePath(cfg.CertDir, cfg.KeyFile)
	caFile := resolvePath(cfg.CertDir, cfg.CAFile)

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load NATS client certificate: %w", err)
	}

	caPEM, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read NATS CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, ErrCAParsingFailed
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		ServerName:   cfg.ServerName,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

func resolvePath(dir, file string) string {
	if dir == "" || filepath.IsAbs(file) {
		return file
	}

	return filepath.Join(dir, file)
}
