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
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/hostwatch/pkg/logger"
)

// writeTestPKI writes a CA and a client certificate signed by it into dir.
func writeTestPKI(t *testing.T, dir string) {
	t.Helper()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "hostwatch test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}

	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	require.NoError(t, err)

	clientKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	clientTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "collector"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}

	clientDER, err := x509.CreateCertificate(rand.Reader, clientTmpl, caTmpl, &clientKey.PublicKey, caKey)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(clientKey)
	require.NoError(t, err)

	writePEM(t, filepath.Join(dir, "root.pem"), "CERTIFICATE", caDER)
	writePEM(t, filepath.Join(dir, "client.pem"), "CERTIFICATE", clientDER)
	writePEM(t, filepath.Join(dir, "client-key.pem"), "EC PRIVATE KEY", keyDER)
}

func writePEM(t *testing.T, path, blockType string, der []byte) {
	t.Helper()

	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestClientTLSResolvesCertDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeTestPKI(t, dir)

	cfg, err := clientTLS(&TLSConfig{
		CertDir:    dir,
		CertFile:   "client.pem",
		KeyFile:    "client-key.pem",
		CAFile:     filepath.Join(dir, "root.pem"),
		ServerName: "nats.internal",
	})
	require.NoError(t, err)

	assert.Len(t, cfg.Certificates, 1)
	assert.NotNil(t, cfg.RootCAs)
	assert.Equal(t, "nats.internal", cfg.ServerName)
	assert.Equal(t, uint16(tls.VersionTLS13), cfg.MinVersion)
}

func TestClientTLSErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeTestPKI(t, dir)

	_, err := clientTLS(&TLSConfig{CertDir: dir, CertFile: "missing.pem", KeyFile: "client-key.pem", CAFile: "root.pem"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client certificate")

	_, err = clientTLS(&TLSConfig{CertDir: dir, CertFile: "client.pem", KeyFile: "client-key.pem", CAFile: "nope.pem"})
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.pem"), []byte("not a certificate"), 0o600))

	_, err = clientTLS(&TLSConfig{CertDir: dir, CertFile: "client.pem", KeyFile: "client-key.pem", CAFile: "garbage.pem"})
	require.ErrorIs(t, err, ErrCAParsingFailed)
}

func TestConnectFailsOnBadTLSBeforeDialing(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.URL = "nats://127.0.0.1:1"
	cfg.TLS = &TLSConfig{CertDir: t.TempDir(), CertFile: "c.pem", KeyFile: "k.pem", CAFile: "ca.pem"}

	pub, nc, err := Connect(context.Background(), cfg, logger.NewTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client certificate")
	assert.Nil(t, pub)
	assert.Nil(t, nc)
}
