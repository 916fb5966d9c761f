// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

// Package tls issues and loads the certificates tokengate uses to serve
// HTTPS during local development, where Secure session cookies would
// otherwise never reach the browser.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	cryptotls "crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"
)

// File names written by Save.
const (
	CACertFile     = "root-ca.crt"
	CAKeyFile      = "root-ca.key"
	ServerCertFile = "server.crt"
	ServerKeyFile  = "server.key"
)

const (
	organization   = "Tokengate"
	caValidity     = 10 * 365 * 24 * time.Hour
	serverValidity = 365 * 24 * time.Hour
)

// CA holds a certificate authority certificate and private key.
type CA struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// ServerCert holds a server certificate and private key.
type ServerCert struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// GenerateCA creates a root CA named commonName.
func GenerateCA(commonName string) (*CA, error) {
	key, serial, err := newKeyAndSerial()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{organization},
			CommonName:   commonName,
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(caValidity),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
	}

	cert, err := sign(template, template, &key.PublicKey, key)
	if err != nil {
		return nil, oops.Code("TLS_CA_FAILED").With("common_name", commonName).Wrap(err)
	}
	return &CA{Certificate: cert, PrivateKey: key}, nil
}

// GenerateServerCert creates a server certificate signed by ca. Each host
// becomes an IP SAN if it parses as an IP, otherwise a DNS SAN.
func GenerateServerCert(ca *CA, hosts []string) (*ServerCert, error) {
	if len(hosts) == 0 {
		return nil, oops.Code("TLS_SERVER_CERT_FAILED").Errorf("at least one host is required")
	}

	key, serial, err := newKeyAndSerial()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{organization},
			CommonName:   hosts[0],
		},
		NotBefore:   now.Add(-time.Minute),
		NotAfter:    now.Add(serverValidity),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	cert, err := sign(template, ca.Certificate, &key.PublicKey, ca.PrivateKey)
	if err != nil {
		return nil, oops.Code("TLS_SERVER_CERT_FAILED").With("hosts", hosts).Wrap(err)
	}
	return &ServerCert{Certificate: cert, PrivateKey: key}, nil
}

type pemFile struct {
	name  string
	block func() (*pem.Block, error)
}

// Save writes the CA and, when non-nil, the server certificate to dir.
func Save(dir string, ca *CA, server *ServerCert) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return oops.Code("TLS_SAVE_FAILED").With("dir", dir).Wrap(err)
	}

	files := []pemFile{
		{CACertFile, certBlock(ca.Certificate)},
		{CAKeyFile, keyBlock(ca.PrivateKey)},
	}
	if server != nil {
		files = append(files,
			pemFile{ServerCertFile, certBlock(server.Certificate)},
			pemFile{ServerKeyFile, keyBlock(server.PrivateKey)},
		)
	}

	for _, f := range files {
		block, err := f.block()
		if err != nil {
			return oops.Code("TLS_SAVE_FAILED").With("file", f.name).Wrap(err)
		}
		if err := writePEM(filepath.Join(dir, f.name), block); err != nil {
			return oops.Code("TLS_SAVE_FAILED").With("file", f.name).Wrap(err)
		}
	}
	return nil
}

// LoadCA reads a CA previously written by Save.
func LoadCA(dir string) (*CA, error) {
	cert, err := readCertificate(filepath.Join(dir, CACertFile))
	if err != nil {
		return nil, oops.Code("TLS_LOAD_FAILED").With("dir", dir).Wrap(err)
	}

	keyPEM, err := os.ReadFile(filepath.Clean(filepath.Join(dir, CAKeyFile)))
	if err != nil {
		return nil, oops.Code("TLS_LOAD_FAILED").With("dir", dir).Wrap(err)
	}
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, oops.Code("TLS_LOAD_FAILED").With("file", CAKeyFile).Errorf("no PEM block in CA key")
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, oops.Code("TLS_LOAD_FAILED").With("file", CAKeyFile).Wrap(err)
	}

	return &CA{Certificate: cert, PrivateKey: key}, nil
}

// LoadServerTLS builds a server TLS config from a PEM certificate and key.
func LoadServerTLS(certFile, keyFile string) (*cryptotls.Config, error) {
	pair, err := cryptotls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, oops.Code("TLS_LOAD_FAILED").
			With("cert_file", certFile).
			With("key_file", keyFile).
			Wrap(err)
	}
	return &cryptotls.Config{
		Certificates: []cryptotls.Certificate{pair},
		MinVersion:   cryptotls.VersionTLS12,
	}, nil
}

func newKeyAndSerial() (*ecdsa.PrivateKey, *big.Int, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, oops.Code("TLS_KEY_FAILED").Wrap(err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, oops.Code("TLS_KEY_FAILED").With("operation", "serial").Wrap(err)
	}
	return key, serial, nil
}

func sign(template, parent *x509.Certificate, pub *ecdsa.PublicKey, signer *ecdsa.PrivateKey) (*x509.Certificate, error) {
	der, err := x509.CreateCertificate(rand.Reader, template, parent, pub, signer)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers attach codes
	}
	return x509.ParseCertificate(der) //nolint:wrapcheck // callers attach codes
}

func certBlock(cert *x509.Certificate) func() (*pem.Block, error) {
	return func() (*pem.Block, error) {
		return &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}, nil
	}
}

func keyBlock(key *ecdsa.PrivateKey) func() (*pem.Block, error) {
	return func() (*pem.Block, error) {
		der, err := x509.MarshalECPrivateKey(key)
		if err != nil {
			return nil, err //nolint:wrapcheck // Save attaches codes
		}
		return &pem.Block{Type: "EC PRIVATE KEY", Bytes: der}, nil
	}
}

func writePEM(path string, block *pem.Block) error {
	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err //nolint:wrapcheck // Save attaches codes
	}
	if err := pem.Encode(f, block); err != nil {
		_ = f.Close()
		return err //nolint:wrapcheck // Save attaches codes
	}
	return f.Close() //nolint:wrapcheck // Save attaches codes
}

func readCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err //nolint:wrapcheck // callers attach codes
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, oops.With("file", path).Errorf("no PEM block in certificate")
	}
	return x509.ParseCertificate(block.Bytes) //nolint:wrapcheck // callers attach codes
}
